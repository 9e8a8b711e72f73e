package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"golang.org/x/time/rate"

	"vpinscope.com/pkg/middleware"
	"vpinscope.com/pkg/ratelimit"
)

// NewRouter wires the middleware chain and routes. The /metrics endpoint
// is registered by the gin-prometheus plugin before the chain, so it is
// not rate limited.
func NewRouter(ctx context.Context, h *Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	p := ginprometheus.NewPrometheus("vpin")
	p.Use(r)

	store := ratelimit.NewStore(rate.Limit(50), 100, 10*time.Minute)
	store.StartJanitor(ctx, time.Minute)

	r.Use(middleware.ReqId(), cors.Default(), middleware.Recover(), middleware.RateLimit(store))

	r.GET("/stream/status", h.Status)
	r.POST("/stream/start", h.Start)
	r.POST("/stream/stop", h.Stop)
	r.POST("/system/reset", h.Reset)
	r.GET("/readings", h.Readings)
	r.GET("/agent/brief", h.Brief)
	r.GET("/ws", h.WS)

	return r
}

// NewServer wraps the router in an http.Server ready for graceful
// shutdown by the caller.
func NewServer(ctx context.Context, addr string, h *Handlers) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(ctx, h),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
