package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	prommw "github.com/jwalitptl/clinic-scheduler/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
)

type Handler interface {
	RegisterRoutes(gin.IRouter)
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	BodyLimit      int64
	RequestTimeout time.Duration
	CORSConfig     middleware.CORSConfig
}

type Router struct {
	engine *gin.Engine
}

// NewRouter mounts health and metrics at the root and the API handlers under /api/v1
// behind authentication.
func NewRouter(
	config RouterConfig,
	auth *middleware.AuthMiddleware,
	metrics *prommw.Handler,
	health Handler,
	apiHandlers ...Handler,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		metrics.Middleware(),
		middleware.SecurityHeaders(),
		middleware.CORS(config.CORSConfig),
	)

	health.RegisterRoutes(engine)
	engine.GET("/metrics", metrics.Handler())

	api := engine.Group("/api/v1")
	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		api.Use(limiter.RateLimit())
	}
	api.Use(
		middleware.BodyLimit(config.BodyLimit),
		middleware.Timeout(config.RequestTimeout),
		auth.Authenticate(),
	)
	for _, h := range apiHandlers {
		h.RegisterRoutes(api)
	}

	return &Router{engine: engine}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
