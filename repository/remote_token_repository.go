// ABOUTME: Read-only OAuth2TokenRepository backed by an external token broker
// ABOUTME: Used when another service owns the refresh flow for an account

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"greader-sync/models"
)

// RemoteTokenRepository fetches tokens from GET <broker>/api/token?account=<id>
type RemoteTokenRepository struct {
	brokerURL string
	accountID string
	client    *http.Client
	logger    *slog.Logger
}

type remoteTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// NewRemoteTokenRepository creates a repository reading the token of accountID from brokerURL
func NewRemoteTokenRepository(brokerURL, accountID string, logger *slog.Logger) *RemoteTokenRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteTokenRepository{
		brokerURL: brokerURL,
		accountID: accountID,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// GetCurrentToken retrieves the current OAuth2 token from the broker
func (r *RemoteTokenRepository) GetCurrentToken(ctx context.Context) (*models.OAuth2Token, error) {
	endpoint := r.brokerURL + "/api/token?account=" + url.QueryEscape(r.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token from broker: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrTokenNotFound
	default:
		return nil, fmt.Errorf("token broker returned status: %d", resp.StatusCode)
	}

	var body remoteTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return nil, ErrTokenNotFound
	}

	return &models.OAuth2Token{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    body.ExpiresAt,
		TokenType:    body.TokenType,
	}, nil
}

// SaveToken is a no-op; the broker owns the token
func (r *RemoteTokenRepository) SaveToken(ctx context.Context, token *models.OAuth2Token) error {
	r.logger.Warn("SaveToken called on read-only remote token repository, ignoring", "account_id", r.accountID)
	return nil
}

// DeleteToken is a no-op; the broker owns the token
func (r *RemoteTokenRepository) DeleteToken(ctx context.Context) error {
	r.logger.Warn("DeleteToken called on read-only remote token repository, ignoring", "account_id", r.accountID)
	return nil
}
