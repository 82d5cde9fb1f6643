package bootstrap

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"greader-sync/config"
	"greader-sync/handler"
	"greader-sync/security"
)

const adminIssuer = "greader-sync"

// NewHTTPServer creates the echo server with health, metrics and, when an
// admin secret is configured, the admin API. stop releases the rate limiter.
func NewHTTPServer(deps *Dependencies, tracing bool) (e *echo.Echo, stop func(), err error) {
	cfg := deps.Config
	e = handler.NewServer(handler.ServerConfig{
		ServiceName:    cfg.ServiceName,
		Tracing:        tracing,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Gatherer:       deps.Registry,
		Recorder:       deps.Metrics,
		Ready:          deps.Ping,
		Logger:         deps.Logger,
	})

	if cfg.HTTP.AdminSecret == "" {
		deps.Logger.Warn("ADMIN_TOKEN_SECRET not set, admin API disabled")
		return e, func() {}, nil
	}

	auth, err := NewAuthenticator(cfg, deps.Logger)
	if err != nil {
		return nil, nil, err
	}
	limiter := security.NewMemoryRateLimiter(cfg.HTTP.AdminRateLimit, deps.Logger)

	accounts := make([]handler.AccountSyncer, 0, len(deps.Accounts))
	for _, a := range deps.Accounts {
		accounts = append(accounts, a.Sync)
	}
	admin := handler.NewAdminHandler(accounts, deps.Runs, deps.Logger)
	admin.SetCycleTimeout(cfg.Sync.CycleTimeout)
	for _, a := range deps.Accounts {
		if a.Tokens != nil {
			admin.SetTokenManager(a.Config.ID, a.Tokens, cfg.HTTP.OAuthRedirectURL)
		}
	}
	admin.Register(e, limiter.Middleware(), auth.Middleware())

	return e, limiter.Stop, nil
}

// NewAuthenticator returns the admin token authenticator for the configured secret
func NewAuthenticator(cfg *config.Config, log *slog.Logger) (*security.TokenAuthenticator, error) {
	return security.NewTokenAuthenticator(cfg.HTTP.AdminSecret, adminIssuer, log)
}
