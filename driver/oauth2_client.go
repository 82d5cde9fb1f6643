package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"greader-sync/models"
)

const inoreaderOAuthBaseURL = "https://www.inoreader.com"

// OAuth2 specific error types for better error handling
var (
	ErrNoToken             = errors.New("no OAuth2 token configured")
	ErrInvalidRefreshToken = errors.New("refresh token is invalid or expired")
	ErrRateLimited         = errors.New("OAuth2 API rate limit exceeded")
	ErrTokenRevoked        = errors.New("refresh token has been revoked")
	ErrTemporaryFailure    = errors.New("temporary OAuth2 service failure")
)

// TokenSaver persists tokens after the provider rotated them
type TokenSaver interface {
	SaveToken(ctx context.Context, token *models.OAuth2Token) error
}

// OAuth2Client keeps a bearer token alive for one account through golang.org/x/oauth2
type OAuth2Client struct {
	config     *oauth2.Config
	httpClient *http.Client
	saver      TokenSaver
	logger     *slog.Logger

	mu      sync.Mutex
	source  oauth2.TokenSource
	current *oauth2.Token
}

// NewOAuth2Client creates a client against the Inoreader OAuth2 endpoints.
// baseURL may point at a test server; empty means production.
func NewOAuth2Client(clientID, clientSecret, baseURL string, logger *slog.Logger) *OAuth2Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = inoreaderOAuthBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OAuth2Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/oauth2/auth",
				TokenURL:  baseURL + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"read", "write"},
		},
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
			},
		},
		logger: logger,
	}
}

// SetHTTPClient allows injecting a custom HTTP client (useful for testing)
func (c *OAuth2Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetTokenSaver registers where rotated tokens are written
func (c *OAuth2Client) SetTokenSaver(saver TokenSaver) {
	c.saver = saver
}

// SetToken installs a stored token; the next Bearer call refreshes it if expired
func (c *OAuth2Client) SetToken(token *models.OAuth2Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token == nil {
		c.source = nil
		c.current = nil
		return
	}
	tok := token.ToOAuth2()
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	c.source = c.config.TokenSource(ctx, tok)
	c.current = tok
}

// Reset drops the held token, forcing the caller to provide a new one
func (c *OAuth2Client) Reset() {
	c.SetToken(nil)
}

// AuthCodeURL returns the consent page URL the user opens to authorize the account
func (c *OAuth2Client) AuthCodeURL(state, redirectURL string) string {
	cfg := *c.config
	cfg.RedirectURL = redirectURL
	return cfg.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token and persists it
func (c *OAuth2Client) Exchange(ctx context.Context, code, redirectURL string) (*models.OAuth2Token, error) {
	cfg := *c.config
	cfg.RedirectURL = redirectURL
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, classifyOAuthError(err)
	}

	stored := models.NewOAuth2Token(tok, "")
	c.SetToken(stored)
	if c.saver != nil {
		if err := c.saver.SaveToken(ctx, stored); err != nil {
			return stored, fmt.Errorf("failed to save exchanged token: %w", err)
		}
	}
	return stored, nil
}

// Bearer returns a valid access token, refreshing it through the token endpoint when needed
func (c *OAuth2Client) Bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source == nil {
		return "", ErrNoToken
	}

	tok, err := c.source.Token()
	if err != nil {
		c.logger.Error("OAuth2 token refresh failed", "error", err)
		return "", classifyOAuthError(err)
	}

	if c.current == nil || tok.AccessToken != c.current.AccessToken {
		previousRefresh := ""
		if c.current != nil {
			previousRefresh = c.current.RefreshToken
		}
		c.logger.Info("OAuth2 refresh successful",
			"access_token_length", len(tok.AccessToken),
			"expires_at", tok.Expiry,
			"has_new_refresh_token", tok.RefreshToken != "" && tok.RefreshToken != previousRefresh)

		stored := models.NewOAuth2Token(tok, previousRefresh)
		c.current = stored.ToOAuth2()
		if c.saver != nil {
			if err := c.saver.SaveToken(ctx, stored); err != nil {
				// the refreshed token is still usable for this process
				c.logger.Error("failed to persist refreshed token", "error", err)
			}
		}
	}

	return tok.AccessToken, nil
}

func classifyOAuthError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %v", ErrTemporaryFailure, err)
	}

	if retrieveErr.ErrorCode == "invalid_grant" {
		return fmt.Errorf("%w: %s", ErrInvalidRefreshToken, retrieveErr.ErrorDescription)
	}

	status := 0
	if retrieveErr.Response != nil {
		status = retrieveErr.Response.StatusCode
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusBadRequest:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidRefreshToken, status)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrTokenRevoked, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: retry after %s", ErrRateLimited, retrieveErr.Response.Header.Get("Retry-After"))
	default:
		return fmt.Errorf("%w: HTTP %d", ErrTemporaryFailure, status)
	}
}
