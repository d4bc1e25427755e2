package router // package router wires handlers and middleware onto the Echo instance

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-gate/internal/config"
	"github.com/iliyamo/ticket-gate/internal/handler"
	"github.com/iliyamo/ticket-gate/internal/middleware"
)

// Handlers bundles everything the route table needs.
type Handlers struct {
	Auth    *handler.AuthHandler
	Events  *handler.EventHandler
	Tickets *handler.TicketHandler
	Seats   *handler.SeatHandler
	Scans   *handler.ScanHandler
}

// Register attaches all routes.  Everything except the health check
// and login sits behind JWT auth with a STAFF or ADMIN role.  The scan
// route additionally carries the Redis token bucket, and the report
// reads carry the short-TTL response cache; both degrade to
// pass-through when rdb is nil.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)
	e.POST("/v1/auth/login", h.Auth.Login)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(cfg.JWTSecret))
	v1.Use(middleware.RequireRole("STAFF", "ADMIN"))

	v1.GET("/me", h.Auth.Me)
	v1.POST("/staff", h.Auth.CreateStaff, middleware.RequireRole("ADMIN"))

	v1.GET("/events/:id", h.Events.Get)

	v1.POST("/bookings/:id/tickets", h.Tickets.Issue)
	v1.GET("/bookings/:id/tickets", h.Tickets.List)
	v1.POST("/bookings/:id/seats", h.Seats.Allocate)
	v1.DELETE("/bookings/:id/seats", h.Seats.Release)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	v1.POST("/events/:id/scan", h.Scans.Scan, limiter)

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	v1.GET("/events/:id/scans", h.Scans.ListScans, cache)
	v1.GET("/events/:id/attendance", h.Scans.Attendance, cache)
}
