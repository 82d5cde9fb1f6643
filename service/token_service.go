// ABOUTME: OAuth2 token lifecycle for bearer-auth accounts
// ABOUTME: Loads the stored token once, lets x/oauth2 refresh it and persists rotations

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"greader-sync/driver"
	"greader-sync/models"
	"greader-sync/repository"
)

// ErrTokenNotAuthorized means no token was stored yet; the account needs the OAuth consent flow
var ErrTokenNotAuthorized = errors.New("no OAuth2 token stored - authorize the account first")

// TokenMetrics tracks token operations of one account
type TokenMetrics struct {
	Loads            int64     `json:"loads"`
	BearerRequests   int64     `json:"bearer_requests"`
	Failures         int64     `json:"failures"`
	Invalidations    int64     `json:"invalidations"`
	LastFailureAt    time.Time `json:"last_failure_at,omitempty"`
	LastFailureError string    `json:"last_failure_error,omitempty"`
}

// TokenStatus describes the stored token without exposing it
type TokenStatus struct {
	Authorized   bool      `json:"authorized"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	NeedsRefresh bool      `json:"needs_refresh"`
	HasRefresh   bool      `json:"has_refresh_token"`
}

// TokenService implements TokenProvider on top of a token repository
type TokenService struct {
	repo          repository.OAuth2TokenRepository
	client        *driver.OAuth2Client
	refreshBuffer time.Duration
	logger        *slog.Logger

	loadGroup singleflight.Group
	mu        sync.Mutex
	loaded    bool

	loads, bearers, failures, invalidations atomic.Int64
	lastFailure                             atomic.Value
}

type failureRecord struct {
	at  time.Time
	err string
}

// NewTokenService wires client to persist refreshed tokens into repo
func NewTokenService(repo repository.OAuth2TokenRepository, client *driver.OAuth2Client, logger *slog.Logger) *TokenService {
	if logger == nil {
		logger = slog.Default()
	}
	client.SetTokenSaver(repo)
	return &TokenService{
		repo:          repo,
		client:        client,
		refreshBuffer: 10 * time.Minute,
		logger:        logger,
	}
}

// Bearer returns a usable access token, refreshing it when expired
func (s *TokenService) Bearer(ctx context.Context) (string, error) {
	s.bearers.Add(1)

	if err := s.ensureLoaded(ctx); err != nil {
		s.recordFailure(err)
		return "", err
	}

	token, err := s.client.Bearer(ctx)
	if err != nil {
		s.recordFailure(err)
		if errors.Is(err, driver.ErrInvalidRefreshToken) || errors.Is(err, driver.ErrTokenRevoked) {
			// another replica may have rotated the refresh token; reload next time
			s.Invalidate()
		}
		return "", err
	}
	return token, nil
}

func (s *TokenService) ensureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}

	_, err, _ := s.loadGroup.Do("load", func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.loaded {
			return nil, nil
		}

		token, err := s.repo.GetCurrentToken(ctx)
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrTokenNotAuthorized
		}
		if err != nil {
			return nil, fmt.Errorf("token storage access failed: %w", err)
		}

		s.loads.Add(1)
		s.client.SetToken(token)
		s.loaded = true
		s.logger.Info("Loaded OAuth2 token from storage",
			"expires_at", token.ExpiresAt,
			"needs_refresh", token.NeedsRefresh(s.refreshBuffer))
		return nil, nil
	})
	return err
}

// Invalidate drops the in-memory token so the next Bearer call reloads storage
func (s *TokenService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.client.Reset()
	s.invalidations.Add(1)
}

// OnAuthFailure is the AuthSession hook for a rejected bearer
func (s *TokenService) OnAuthFailure(err error) {
	s.logger.Warn("Bearer token rejected, reloading from storage", "error", err)
	s.Invalidate()
}

// AuthCodeURL returns the consent URL for the account
func (s *TokenService) AuthCodeURL(state, redirectURL string) string {
	return s.client.AuthCodeURL(state, redirectURL)
}

// Exchange completes the consent flow and stores the issued token
func (s *TokenService) Exchange(ctx context.Context, code, redirectURL string) (*models.OAuth2Token, error) {
	token, err := s.client.Exchange(ctx, code, redirectURL)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
	return token, nil
}

// Revoke deletes the stored token
func (s *TokenService) Revoke(ctx context.Context) error {
	if err := s.repo.DeleteToken(ctx); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Status reports whether a token is stored and when it expires
func (s *TokenService) Status(ctx context.Context) (TokenStatus, error) {
	token, err := s.repo.GetCurrentToken(ctx)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return TokenStatus{}, nil
	}
	if err != nil {
		return TokenStatus{}, err
	}
	return TokenStatus{
		Authorized:   token.AccessToken != "",
		ExpiresAt:    token.ExpiresAt,
		NeedsRefresh: token.NeedsRefresh(s.refreshBuffer),
		HasRefresh:   token.RefreshToken != "",
	}, nil
}

// Metrics returns a snapshot of the counters
func (s *TokenService) Metrics() TokenMetrics {
	m := TokenMetrics{
		Loads:          s.loads.Load(),
		BearerRequests: s.bearers.Load(),
		Failures:       s.failures.Load(),
		Invalidations:  s.invalidations.Load(),
	}
	if rec, ok := s.lastFailure.Load().(failureRecord); ok {
		m.LastFailureAt = rec.at
		m.LastFailureError = rec.err
	}
	return m
}

func (s *TokenService) recordFailure(err error) {
	s.failures.Add(1)
	s.lastFailure.Store(failureRecord{at: time.Now(), err: err.Error()})
}
