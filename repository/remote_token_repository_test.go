package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteTokenRepository_GetCurrentToken(t *testing.T) {
	tests := map[string]struct {
		status  int
		body    string
		wantErr error
		errText string
		want    string
	}{
		"ok": {
			status: http.StatusOK,
			body:   `{"access_token":"abc","refresh_token":"r","token_type":"Bearer","expires_at":"2025-01-01T00:00:00Z"}`,
			want:   "abc",
		},
		"not_found":    {status: http.StatusNotFound, wantErr: ErrTokenNotFound},
		"empty_token":  {status: http.StatusOK, body: `{"access_token":""}`, wantErr: ErrTokenNotFound},
		"server_error": {status: http.StatusBadGateway, errText: "status: 502"},
		"bad_json":     {status: http.StatusOK, body: `{`, errText: "decode"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/token", r.URL.Path)
				assert.Equal(t, "my account", r.URL.Query().Get("account"))
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			repo := NewRemoteTokenRepository(srv.URL, "my account", nil)
			token, err := repo.GetCurrentToken(context.Background())
			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case tc.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.want, token.AccessToken)
				assert.Equal(t, 2025, token.ExpiresAt.Year())
			}
		})
	}
}

func TestRemoteTokenRepository_WritesAreIgnored(t *testing.T) {
	repo := NewRemoteTokenRepository("http://127.0.0.1:1", "a", nil)
	assert.NoError(t, repo.SaveToken(context.Background(), nil))
	assert.NoError(t, repo.DeleteToken(context.Background()))
}
