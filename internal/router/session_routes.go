package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/config"
	"github.com/iliyamo/ticket-funnel/internal/handler"
	"github.com/iliyamo/ticket-funnel/internal/middleware"
)

// RegisterSessions registers the booking session endpoints under
// /v1/sessions.  A customer token is optional everywhere; guests browse
// and buy too.  Event, navigation and payment calls share one token
// bucket per session.
func RegisterSessions(e *echo.Echo, h *handler.SessionHandler, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) {
	g := e.Group("/v1/sessions", middleware.OptionalCustomer(jwtSecret))
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/ticket.png", h.Ticket)

	limited := g.Group("/:id", middleware.NewTokenBucket(rl, rdb, log))
	limited.POST("/events", h.Event)
	limited.POST("/navigate", h.Navigate)
	limited.POST("/payment", h.Payment)
}
