//go:generate mockgen -source=auth_session.go -destination=../mocks/auth_session_mock.go -package=mocks TokenProvider

// ABOUTME: Holds per-account credentials and performs Google Reader ClientLogin
// ABOUTME: Bearer-token providers delegate token lifecycle to a TokenProvider

package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/sync/singleflight"

	"greader-sync/driver"
	"greader-sync/models"
)

// TokenProvider supplies OAuth bearer tokens; refresh is its responsibility
type TokenProvider interface {
	Bearer(ctx context.Context) (string, error)
}

var placeholderValue = regexp.MustCompile(`^(NA|unused|none|null)$`)

// AuthSessionConfig configures an AuthSession
type AuthSessionConfig struct {
	Spec     models.ProviderSpec
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// AuthSession is the login state of one account
type AuthSession struct {
	spec      models.ProviderSpec
	endpoints Endpoints
	transport driver.Transport
	tokens    TokenProvider
	username  string
	password  string
	timeout   time.Duration
	logger    *slog.Logger

	mu        sync.RWMutex
	sid       string
	auth      string
	editToken string
	bearer    string

	loginGroup    singleflight.Group
	onAuthFailure func(error)
}

// NewAuthSession creates a logged-out session. tokens may be nil for credential providers.
func NewAuthSession(cfg AuthSessionConfig, transport driver.Transport, tokens TokenProvider, logger *slog.Logger) *AuthSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthSession{
		spec:      cfg.Spec,
		endpoints: NewEndpoints(cfg.Spec, cfg.BaseURL),
		transport: transport,
		tokens:    tokens,
		username:  cfg.Username,
		password:  cfg.Password,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// SetOnAuthFailure registers the relogin hook invoked when the bearer is unusable
func (s *AuthSession) SetOnAuthFailure(fn func(error)) {
	s.onAuthFailure = fn
}

// EnsureLogin makes sure credentials are held, logging in if necessary
func (s *AuthSession) EnsureLogin(ctx context.Context) error {
	if s.spec.UsesOAuth() {
		return s.ensureBearer(ctx)
	}

	s.mu.RLock()
	held := s.sid != "" || s.auth != ""
	s.mu.RUnlock()
	if held {
		return nil
	}

	_, err, shared := s.loginGroup.Do("client_login", func() (interface{}, error) {
		return nil, s.clientLogin(ctx)
	})
	if err != nil {
		s.logger.Error("login failed", "provider", s.spec.Provider.String(), "shared_result", shared, "error", err)
		return err
	}
	s.logger.Debug("login successful", "provider", s.spec.Provider.String(), "shared_result", shared)
	return nil
}

func (s *AuthSession) ensureBearer(ctx context.Context) error {
	if s.tokens == nil {
		return newSyncError(ErrorKindAuth, "bearer", "", ErrNoBearer)
	}

	bearer, err := s.tokens.Bearer(ctx)
	if err == nil && bearer == "" {
		err = ErrNoBearer
	}
	if err == nil && bearerExpired(bearer, time.Now()) {
		err = fmt.Errorf("%w: token expired", ErrNoBearer)
	}
	if err != nil {
		s.mu.Lock()
		s.bearer = ""
		s.mu.Unlock()
		s.logger.Error("bearer token unavailable", "provider", s.spec.Provider.String(), "error", err)
		if s.onAuthFailure != nil {
			s.onAuthFailure(err)
		}
		return newSyncError(ErrorKindAuth, "bearer", "", err)
	}

	s.mu.Lock()
	s.bearer = bearer
	s.mu.Unlock()
	return nil
}

// bearerExpired reports a JWT bearer whose exp claim is in the past.
// Opaque tokens are never considered expired here.
func bearerExpired(bearer string, now time.Time) bool {
	if strings.Count(bearer, ".") != 2 {
		return false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(bearer, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(now)
}

func (s *AuthSession) clientLogin(ctx context.Context) error {
	body := fmt.Sprintf("Email=%s&Passwd=%s", percentEncode(s.username), percentEncode(s.password))
	resp, err := s.transport.PerformRequest(ctx, &driver.Request{
		URL:     s.endpoints.ClientLogin(),
		Method:  http.MethodPost,
		Body:    []byte(body),
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Timeout: s.timeout,
	})
	if err != nil {
		return newSyncError(ErrorKindAuth, "client_login", "", fmt.Errorf("%w: %v", ErrLoginFailed, err))
	}
	if !resp.OK() {
		return newSyncError(ErrorKindAuth, "client_login", "",
			fmt.Errorf("%w: %w %d", ErrLoginFailed, ErrUnexpectedStatus, resp.StatusCode))
	}

	sid, auth := parseClientLogin(string(resp.Body))
	if auth == "" {
		s.ClearCredentials()
		return newSyncError(ErrorKindAuth, "client_login", "", ErrEmptyAuth)
	}

	s.mu.Lock()
	s.sid = sid
	s.auth = auth
	s.mu.Unlock()

	if s.spec.NeedsEditToken {
		return s.fetchEditToken(ctx)
	}
	return nil
}

func (s *AuthSession) fetchEditToken(ctx context.Context) error {
	name, value := s.AuthHeader()
	resp, err := s.transport.PerformRequest(ctx, &driver.Request{
		URL:     s.endpoints.Token(),
		Method:  http.MethodGet,
		Headers: map[string]string{name: value},
		Timeout: s.timeout,
	})
	if err == nil && !resp.OK() {
		err = fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if err != nil {
		s.ClearCredentials()
		return newSyncError(ErrorKindAuth, "edit_token", "", fmt.Errorf("%w: %v", ErrEditToken, err))
	}

	s.mu.Lock()
	s.editToken = strings.TrimSpace(string(resp.Body))
	s.mu.Unlock()
	return nil
}

// parseClientLogin extracts SID and Auth from KEY=VALUE lines
func parseClientLogin(body string) (sid, auth string) {
	body = strings.ReplaceAll(body, "\r", "")
	for _, line := range strings.Split(body, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found || key == "" {
			continue
		}
		switch key {
		case "SID":
			sid = value
		case "Auth":
			auth = value
		}
	}
	if placeholderValue.MatchString(sid) {
		sid = ""
	}
	if placeholderValue.MatchString(auth) {
		auth = ""
	}
	return sid, auth
}

// AuthHeader returns the Authorization header for the current credentials
func (s *AuthSession) AuthHeader() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.spec.UsesOAuth() {
		return "Authorization", "Bearer " + s.bearer
	}
	return "Authorization", "GoogleLogin auth=" + s.auth
}

// Headers returns the auth header as a request header map
func (s *AuthSession) Headers() map[string]string {
	name, value := s.AuthHeader()
	return map[string]string{name: value}
}

// EditToken returns the T= token required by some providers for edit-tag
func (s *AuthSession) EditToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editToken
}

// LoggedIn reports whether credentials are currently held
func (s *AuthSession) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.spec.UsesOAuth() {
		return s.bearer != ""
	}
	return s.sid != "" || s.auth != ""
}

// ClearCredentials forgets every held token
func (s *AuthSession) ClearCredentials() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sid = ""
	s.auth = ""
	s.editToken = ""
	s.bearer = ""
}
