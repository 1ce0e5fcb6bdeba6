package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad date", nil), http.StatusBadRequest},
		{"conflict rule", ConflictRule("slot taken"), http.StatusBadRequest},
		{"not found", NotFound("appointment", nil), http.StatusNotFound},
		{"forbidden", Forbidden("not yours"), http.StatusForbidden},
		{"unauthorized", Unauthorized(nil), http.StatusUnauthorized},
		{"internal", Internal(stderrors.New("db down")), http.StatusInternalServerError},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", Forbidden("no")), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("no rows")
	err := NotFound("appointment", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "appointment not found: no rows", err.Error())
	assert.True(t, HasCode(err, ErrNotFound))
	assert.False(t, HasCode(nil, ErrNotFound))
}
