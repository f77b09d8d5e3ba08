// Package router wires handlers and middleware onto echo.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/config"
	"github.com/iliyamo/ticket-funnel/internal/handler"
	"github.com/iliyamo/ticket-funnel/internal/middleware"
)

// Deps is everything the routes need.  Redis may be nil; the limiter and
// cache then pass requests straight through.
type Deps struct {
	Health    *handler.HealthHandler
	Sessions  *handler.SessionHandler
	Listings  *handler.ListingHandler
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
	Log       *zap.Logger
}

// RegisterRoutes registers the probes, which take no middleware.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Live)
	e.GET("/readyz", h.Ready)
}

// RegisterListings registers the cached catalog reads.
func RegisterListings(e *echo.Echo, h *handler.ListingHandler, cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) {
	g := e.Group("/v1/listings", middleware.NewRedisCache(cfg, rdb, log))
	g.GET("/:id", h.Get)
}

// Register wires every route of the service.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.Health)
	RegisterListings(e, d.Listings, d.Cache, d.Redis, d.Log)
	RegisterSessions(e, d.Sessions, d.JWTSecret, d.RateLimit, d.Redis, d.Log)
}
