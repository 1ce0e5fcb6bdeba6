package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		path   string
		checks map[string]Check
		want   int
		body   string
	}{
		{name: "live", path: "/health/live", want: http.StatusOK, body: `"UP"`},
		{name: "ready", path: "/health/ready", checks: map[string]Check{"database": ok, "redis": ok}, want: http.StatusOK, body: `"database":"UP"`},
		{name: "not ready", path: "/health/ready", checks: map[string]Check{"database": ok, "redis": down}, want: http.StatusServiceUnavailable, body: `"redis":"DOWN"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			NewHandler(tt.checks).RegisterRoutes(engine)

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}
