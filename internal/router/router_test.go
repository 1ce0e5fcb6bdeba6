package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/handler/health"
	prommw "github.com/jwalitptl/clinic-scheduler/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/pkg/auth"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) { httputil.RespondWithSuccess(c, "pong") })
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	jwtSvc := auth.NewJWTService("secret", "")
	token, err := jwtSvc.IssueToken(uuid.New(), model.RoleStaff, time.Hour)
	require.NoError(t, err)

	r := NewRouter(
		RouterConfig{Mode: gin.TestMode, RateLimit: 100, RateBurst: 100, BodyLimit: 1 << 20, CORSConfig: middleware.DefaultCORSConfig()},
		middleware.NewAuthMiddleware(jwtSvc),
		prommw.New(reg, reg, "test"),
		health.NewHandler(map[string]health.Check{"database": func(context.Context) error { return nil }}),
		pingHandler{},
	)

	serve := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, req)
		return w
	}

	w := serve("/health/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusUnauthorized, serve("/api/v1/ping", "").Code)

	w = serve("/api/v1/ping", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":true,"result":"pong","error":null}`, w.Body.String())

	w = serve("/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",path="/api/v1/ping",status="200"} 1`)
}
