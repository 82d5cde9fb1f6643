package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// RequestRecorder counts admin API requests
type RequestRecorder interface {
	AdminRequest(method, route string, code int)
}

// ServerConfig wires the shared middleware of the HTTP server
type ServerConfig struct {
	ServiceName    string
	Tracing        bool
	RequestTimeout time.Duration
	Gatherer       prometheus.Gatherer
	Recorder       RequestRecorder
	// Ready reports whether the service can serve traffic, e.g. a database ping
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
}

// NewServer creates the echo server with health, metrics and the shared middleware
func NewServer(cfg ServerConfig) *echo.Echo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(SecurityHeaders())
	if cfg.Tracing {
		e.Use(otelecho.Middleware(cfg.ServiceName))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/healthz" || path == "/metrics"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			if cfg.Recorder != nil {
				cfg.Recorder.AdminRequest(v.Method, c.Path(), v.Status)
			}
			if v.Error == nil {
				logger.InfoContext(ctx, "HTTP request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				logger.WarnContext(ctx, "HTTP request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(cfg.RequestTimeout))
	}

	e.GET("/healthz", func(c echo.Context) error {
		if cfg.Ready != nil {
			if err := cfg.Ready(c.Request().Context()); err != nil {
				logger.Warn("Health check failed", "error", err)
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return e
}

// SecurityHeaders adds security-related HTTP headers to all responses.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
