package driver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greader-sync/models"
)

type recordingSaver struct {
	mu     sync.Mutex
	tokens []*models.OAuth2Token
	err    error
}

func (s *recordingSaver) SaveToken(_ context.Context, token *models.OAuth2Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
	return s.err
}

func TestNewOAuth2Client(t *testing.T) {
	client := NewOAuth2Client("test_client_id", "test_client_secret", "", nil)

	assert.Equal(t, "test_client_id", client.config.ClientID)
	assert.Equal(t, "https://www.inoreader.com/oauth2/token", client.config.Endpoint.TokenURL)
	assert.Equal(t, "https://www.inoreader.com/oauth2/auth", client.config.Endpoint.AuthURL)
	assert.NotNil(t, client.httpClient)
}

func TestOAuth2Client_Bearer(t *testing.T) {
	tests := map[string]struct {
		token       *models.OAuth2Token
		handler     http.HandlerFunc
		expectToken string
		expectErr   error
		expectSaves int
	}{
		"valid_token_no_refresh": {
			token: &models.OAuth2Token{
				AccessToken:  "still_valid",
				RefreshToken: "refresh",
				TokenType:    "Bearer",
				ExpiresAt:    time.Now().Add(time.Hour),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				t.Error("token endpoint must not be called")
			},
			expectToken: "still_valid",
		},
		"expired_token_refreshed": {
			token: &models.OAuth2Token{
				AccessToken:  "old",
				RefreshToken: "valid_refresh_token",
				TokenType:    "Bearer",
				ExpiresAt:    time.Now().Add(-time.Hour),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
				assert.Equal(t, "valid_refresh_token", r.Form.Get("refresh_token"))
				assert.Equal(t, "test_client_id", r.Form.Get("client_id"))
				assert.Equal(t, "test_client_secret", r.Form.Get("client_secret"))

				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"access_token":  "new_access_token_123",
					"token_type":    "Bearer",
					"expires_in":    3600,
					"refresh_token": "new_refresh_token_456",
				})
			},
			expectToken: "new_access_token_123",
			expectSaves: 1,
		},
		"invalid_grant": {
			token: &models.OAuth2Token{
				AccessToken:  "old",
				RefreshToken: "revoked",
				ExpiresAt:    time.Now().Add(-time.Hour),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":             "invalid_grant",
					"error_description": "Invalid refresh token",
				})
			},
			expectErr: ErrInvalidRefreshToken,
		},
		"server_error": {
			token: &models.OAuth2Token{
				AccessToken:  "old",
				RefreshToken: "refresh",
				ExpiresAt:    time.Now().Add(-time.Hour),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			expectErr: ErrTemporaryFailure,
		},
		"no_token": {
			handler:   func(w http.ResponseWriter, r *http.Request) {},
			expectErr: ErrNoToken,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			saver := &recordingSaver{}
			client := NewOAuth2Client("test_client_id", "test_client_secret", server.URL, nil)
			client.SetHTTPClient(server.Client())
			client.SetTokenSaver(saver)
			client.SetToken(tc.token)

			bearer, err := client.Bearer(context.Background())
			if tc.expectErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectToken, bearer)
			assert.Len(t, saver.tokens, tc.expectSaves)
			if tc.expectSaves > 0 {
				assert.Equal(t, "new_refresh_token_456", saver.tokens[0].RefreshToken)
			}
		})
	}
}

func TestOAuth2Client_Reset(t *testing.T) {
	client := NewOAuth2Client("id", "secret", "", nil)
	client.SetToken(&models.OAuth2Token{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)})

	bearer, err := client.Bearer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", bearer)

	client.Reset()
	_, err = client.Bearer(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestOAuth2Client_AuthCodeURL(t *testing.T) {
	client := NewOAuth2Client("id", "secret", "", nil)

	u := client.AuthCodeURL("state123", "http://localhost/callback")
	assert.Contains(t, u, "https://www.inoreader.com/oauth2/auth?")
	assert.Contains(t, u, "state=state123")
	assert.Contains(t, u, "client_id=id")
}
