// Package server exposes the HTTP endpoint Telegram delivers webhook
// updates to, plus a health check.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/edgard/askbot/internal/config"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wraps the echo instance serving webhook updates.
type Server struct {
	echo            *echo.Echo
	addr            string
	shutdownTimeout time.Duration
	log             *slog.Logger
}

// New builds the server. webhook receives POST requests on webhookPath;
// it is typically (*bot.Bot).WebhookHandler().
func New(cfg config.ServerConfig, webhookPath string, webhook http.Handler, db Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "http_server")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", c.Path(),
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				log.ErrorContext(c.Request().Context(), "Request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			log.DebugContext(c.Request().Context(), "Request handled", attrs...)
			return nil
		},
	}))

	if webhook != nil {
		// Bot tokens contain ':', which echo would read as a path parameter,
		// so the path is matched exactly inside a wildcard route.
		e.POST(path.Dir(webhookPath)+"/*", webhookHandler(webhookPath, webhook))
	}
	e.GET("/healthz", healthHandler(db))

	return &Server{
		echo:            e,
		addr:            cfg.Addr(),
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             log,
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.addr)
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.log.Info("Shutting down HTTP server")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

func webhookHandler(webhookPath string, webhook http.Handler) echo.HandlerFunc {
	wrapped := echo.WrapHandler(webhook)
	return func(c echo.Context) error {
		if c.Request().URL.Path != webhookPath {
			return echo.ErrNotFound
		}
		return wrapped(c)
	}
}

func healthHandler(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			if err := db.Ping(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
