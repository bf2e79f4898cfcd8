// Package statusapi exposes a small HTTP surface on the processor so
// operators can check liveness without storage credentials.
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/blobbridge/blobbridge/internal/metrics"
	"github.com/blobbridge/blobbridge/internal/processor"
)

// StatusSource yields a point-in-time processor snapshot.
type StatusSource interface {
	Snapshot() processor.Status
}

// Server serves /healthz and /status.
type Server struct {
	echo   *echo.Echo
	source StatusSource
}

// New creates the status server for the given snapshot source.
func New(source StatusSource) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(metrics.EchoMiddleware())

	s := &Server{echo: e, source: source}
	e.GET("/healthz", s.handleHealthz)
	e.GET("/status", s.handleStatus)
	return s
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.source.Snapshot())
}

// Start begins serving on addr. It blocks until the server stops.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
