// Package server exposes the coordination core over HTTP: JSON endpoints for
// mutations and lookups, and an SSE stream for live broadcast events.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the Echo instance.
type Server struct {
	e *echo.Echo
}

// New creates the HTTP server with logging, recovery and the operational
// endpoints wired in.
func New(logger *slog.Logger, db Pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/readyz", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "database unreachable"})
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{e: e}
}

// Register attaches the API routes.
func (s *Server) Register(h *Handlers) {
	h.RegisterRoutes(s.e)
}

// Start runs the HTTP server until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
