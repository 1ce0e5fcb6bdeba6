package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type Handler struct {
	checks  map[string]Check
	timeout time.Duration
}

func NewHandler(checks map[string]Check) *Handler {
	return &Handler{
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{"status": "UP"})
}

// ReadinessCheck runs every dependency check and answers 503 if any fails.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = "DOWN"
			ready = false
			continue
		}
		results[name] = "UP"
	}

	if !ready {
		message := "dependencies unavailable"
		c.JSON(http.StatusServiceUnavailable, httputil.Response{
			Status: false,
			Result: gin.H{"status": "DOWN", "checks": results},
			Error:  &message,
		})
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"status": "UP", "checks": results})
}
