package httputil

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRespondWithSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithSuccess(c, map[string]string{"id": "1"})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["status"])
	assert.Nil(t, body["error"])
	assert.Equal(t, "1", body["result"].(map[string]interface{})["id"])
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"conflict rule", errors.ConflictRule("slot already confirmed"), http.StatusBadRequest, "slot already confirmed"},
		{"forbidden", errors.Forbidden("not your appointment"), http.StatusForbidden, "not your appointment"},
		{"internal hides detail", errors.Internal(stderrors.New("pq: password")), http.StatusInternalServerError, "internal server error"},
		{"untyped", stderrors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/appointments", nil)

			RespondWithError(c, tt.err)

			assert.Equal(t, tt.code, w.Code)
			body := decode(t, w)
			assert.Equal(t, false, body["status"])
			assert.Nil(t, body["result"])
			assert.Equal(t, tt.message, body["error"])
		})
	}
}
