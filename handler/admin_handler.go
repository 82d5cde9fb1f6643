// ABOUTME: Admin HTTP API for triggering syncs, editing message state and managing OAuth tokens
// ABOUTME: Routes are registered on echo behind admin token auth and a per-client rate limit

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v4"

	"greader-sync/models"
	"greader-sync/repository"
	"greader-sync/security"
	"greader-sync/service"
	"greader-sync/utils"
)

const (
	defaultRunsLimit    = 20
	defaultCycleTimeout = 10 * time.Minute
)

// AccountSyncer is the per-account sync surface the API drives
type AccountSyncer interface {
	AccountID() string
	RunCycle(ctx context.Context, feedIDs ...string) (*service.CycleReport, error)
	LastReport() *service.CycleReport
	BreakerStats() utils.CircuitBreakerStats
	MarkRead(ctx context.Context, read bool, ids []string) error
	MarkStarred(ctx context.Context, starred bool, ids []string) error
}

// TokenManager manages the OAuth token of one bearer-auth account
type TokenManager interface {
	AuthCodeURL(state, redirectURL string) string
	Exchange(ctx context.Context, code, redirectURL string) (*models.OAuth2Token, error)
	Status(ctx context.Context) (service.TokenStatus, error)
	Metrics() service.TokenMetrics
	Revoke(ctx context.Context) error
}

// AccountSummary is one entry of the accounts listing
type AccountSummary struct {
	AccountID  string                    `json:"account_id"`
	LastReport *service.CycleReport      `json:"last_report,omitempty"`
	Breaker    utils.CircuitBreakerStats `json:"breaker"`
	OAuth      *service.TokenStatus      `json:"oauth,omitempty"`
}

// AdminHandler serves the admin API
type AdminHandler struct {
	accounts    map[string]AccountSyncer
	tokens      map[string]TokenManager
	runs        repository.SyncRunRepository
	states      *OAuthStateStore
	validator   *security.RequestValidator
	redirectURL string
	// cycleTimeout bounds manual syncs, which outlive the request
	cycleTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewAdminHandler creates the handler; runs may be nil when no history is kept
func NewAdminHandler(accounts []AccountSyncer, runs repository.SyncRunRepository, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	byID := make(map[string]AccountSyncer, len(accounts))
	for _, account := range accounts {
		byID[account.AccountID()] = account
	}
	return &AdminHandler{
		accounts:     byID,
		tokens:       map[string]TokenManager{},
		runs:         runs,
		states:       NewOAuthStateStore(10 * time.Minute),
		validator:    security.NewRequestValidator(),
		cycleTimeout: defaultCycleTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// SetCycleTimeout bounds manual sync cycles
func (h *AdminHandler) SetCycleTimeout(timeout time.Duration) {
	if timeout > 0 {
		h.cycleTimeout = timeout
	}
}

// SetTokenManager enables the OAuth endpoints for accountID
func (h *AdminHandler) SetTokenManager(accountID string, tokens TokenManager, redirectURL string) {
	h.tokens[accountID] = tokens
	h.redirectURL = redirectURL
}

// Register mounts the API under /api/v1 behind the given middleware.
// The OAuth callback stays outside the auth group; the state parameter protects it.
func (h *AdminHandler) Register(e *echo.Echo, middleware ...echo.MiddlewareFunc) {
	if e.Validator == nil {
		e.Validator = h.validator
	}
	api := e.Group("/api/v1", middleware...)
	api.GET("/accounts", h.ListAccounts)

	account := api.Group("/accounts/:account", h.requireAccount)
	account.POST("/sync", h.TriggerSync)
	account.GET("/runs", h.ListRuns)
	account.POST("/messages/state", h.UpdateMessageState)
	account.GET("/oauth/authorize", h.AuthorizeURL)
	account.GET("/oauth/status", h.TokenStatus)
	account.DELETE("/oauth/token", h.RevokeToken)

	e.GET("/oauth/callback", h.OAuthCallback)
}

// requireAccount resolves :account and checks the caller may act on it
func (h *AdminHandler) requireAccount(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID := c.Param("account")
		if err := h.validator.ValidateAccountID(accountID); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if claims := security.ClaimsFrom(c); claims != nil && !claims.CanAccess(accountID) {
			return echo.NewHTTPError(http.StatusForbidden, "account not permitted for this token")
		}
		if _, ok := h.accounts[accountID]; !ok {
			return echo.NewHTTPError(http.StatusNotFound, "unknown account")
		}
		return next(c)
	}
}

func (h *AdminHandler) ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, models.AdminAPIResponse{
		Success:   true,
		Data:      data,
		Timestamp: h.now().UTC(),
	})
}

// ListAccounts returns every account the caller may see
func (h *AdminHandler) ListAccounts(c echo.Context) error {
	claims := security.ClaimsFrom(c)
	ids := make([]string, 0, len(h.accounts))
	for id := range h.accounts {
		if claims == nil || claims.CanAccess(id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	summaries := make([]AccountSummary, 0, len(ids))
	for _, id := range ids {
		account := h.accounts[id]
		summary := AccountSummary{
			AccountID:  id,
			LastReport: account.LastReport(),
			Breaker:    account.BreakerStats(),
		}
		if tokens, ok := h.tokens[id]; ok {
			if status, err := tokens.Status(c.Request().Context()); err == nil {
				summary.OAuth = &status
			} else {
				h.logger.Warn("Failed to read token status", "account", id, "error", err)
			}
		}
		summaries = append(summaries, summary)
	}
	return h.ok(c, summaries)
}

// TriggerSync runs one cycle, optionally for the feeds named in the body, and
// returns its report. A client disconnect does not abort the cycle half way.
func (h *AdminHandler) TriggerSync(c echo.Context) error {
	account := h.accounts[c.Param("account")]

	var req models.SyncRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.cycleTimeout)
	defer cancel()
	report, err := account.RunCycle(ctx, req.Feeds...)
	if err != nil {
		httpErr := mapSyncError(err)
		h.logger.Warn("Manual sync failed",
			"account", account.AccountID(),
			"status", httpErr.Code,
			"error", err)
		return c.JSON(httpErr.Code, models.AdminAPIResponse{
			Success:   false,
			Error:     err.Error(),
			Data:      report,
			Timestamp: h.now().UTC(),
		})
	}
	return h.ok(c, report)
}

// ListRuns returns the newest runs of the account
func (h *AdminHandler) ListRuns(c echo.Context) error {
	var query models.RunsQuery
	if err := c.Bind(&query); err != nil {
		return err
	}
	if err := c.Validate(&query); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if query.Limit == 0 {
		query.Limit = defaultRunsLimit
	}
	if h.runs == nil {
		return h.ok(c, []*models.SyncRun{})
	}

	runs, err := h.runs.ListRecent(c.Request().Context(), c.Param("account"), query.Limit)
	if err != nil {
		h.logger.Error("Failed to list sync runs", "account", c.Param("account"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list sync runs")
	}
	return h.ok(c, runs)
}

// UpdateMessageState marks messages read/unread or starred/unstarred on the server
func (h *AdminHandler) UpdateMessageState(c echo.Context) error {
	var req models.MessageStateRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	account := h.accounts[c.Param("account")]
	ctx := c.Request().Context()
	var err error
	if req.Flag == models.FlagStarred {
		err = account.MarkStarred(ctx, *req.Value, req.IDs)
	} else {
		err = account.MarkRead(ctx, *req.Value, req.IDs)
	}
	if err != nil {
		h.logger.Warn("Message state change failed",
			"account", account.AccountID(),
			"flag", req.Flag,
			"count", len(req.IDs),
			"error", err)
		return mapSyncError(err)
	}
	return h.ok(c, map[string]any{"updated": len(req.IDs), "flag": req.Flag, "value": *req.Value})
}

func (h *AdminHandler) tokenManager(c echo.Context) (TokenManager, error) {
	tokens, ok := h.tokens[c.Param("account")]
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "account does not use OAuth")
	}
	return tokens, nil
}

// AuthorizeURL starts the consent flow and returns the provider URL to visit
func (h *AdminHandler) AuthorizeURL(c echo.Context) error {
	tokens, err := h.tokenManager(c)
	if err != nil {
		return err
	}
	if h.redirectURL == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "OAuth redirect URL is not configured")
	}
	state := h.states.Issue(c.Param("account"))
	return h.ok(c, map[string]string{
		"authorize_url": tokens.AuthCodeURL(state, h.redirectURL),
		"state":         state,
	})
}

// OAuthCallback completes the consent flow started by AuthorizeURL
func (h *AdminHandler) OAuthCallback(c echo.Context) error {
	var req models.OAuthCallbackRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Error != "" {
		h.logger.Warn("Provider refused authorization", "error", security.SanitizeString(req.Error))
		return echo.NewHTTPError(http.StatusBadRequest, "authorization was refused by the provider")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	accountID, ok := h.states.Consume(req.State)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown or expired OAuth state")
	}
	tokens, ok := h.tokens[accountID]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "account does not use OAuth")
	}

	token, err := tokens.Exchange(c.Request().Context(), req.Code, h.redirectURL)
	if err != nil {
		h.logger.Error("OAuth code exchange failed", "account", accountID, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "failed to exchange authorization code")
	}
	h.logger.Info("Account authorized", "account", accountID, "expires_at", token.ExpiresAt)
	return h.ok(c, map[string]any{"account_id": accountID, "expires_at": token.ExpiresAt})
}

// TokenStatus reports the stored token state and token counters
func (h *AdminHandler) TokenStatus(c echo.Context) error {
	tokens, err := h.tokenManager(c)
	if err != nil {
		return err
	}
	status, err := tokens.Status(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to read token status", "account", c.Param("account"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read token status")
	}
	return h.ok(c, map[string]any{"status": status, "metrics": tokens.Metrics()})
}

// RevokeToken deletes the stored token; the account needs to be authorized again
func (h *AdminHandler) RevokeToken(c echo.Context) error {
	tokens, err := h.tokenManager(c)
	if err != nil {
		return err
	}
	if err := tokens.Revoke(c.Request().Context()); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no token stored")
		}
		h.logger.Error("Failed to revoke token", "account", c.Param("account"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke token")
	}
	h.logger.Info("Token revoked", "account", c.Param("account"))
	return h.ok(c, nil)
}
