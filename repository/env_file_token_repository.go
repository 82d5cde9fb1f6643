// ABOUTME: .env file-based OAuth2TokenRepository for local and single-user setups
// ABOUTME: Token fields live under account-prefixed keys; other keys in the file are preserved

package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"greader-sync/models"
)

// EnvFileTokenRepository implements OAuth2TokenRepository using .env file storage
type EnvFileTokenRepository struct {
	filePath string
	prefix   string
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewEnvFileTokenRepository stores the token of accountID in filePath
func NewEnvFileTokenRepository(filePath, accountID string, logger *slog.Logger) *EnvFileTokenRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnvFileTokenRepository{
		filePath: filePath,
		prefix:   envKeyPrefix(accountID),
		logger:   logger,
	}
}

// envKeyPrefix turns an account id into an env-safe key prefix, e.g. "my-inoreader" -> "GREADER_MY_INOREADER_"
func envKeyPrefix(accountID string) string {
	upper := strings.ToUpper(accountID)
	var b strings.Builder
	b.WriteString("GREADER_")
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	b.WriteString("_")
	return b.String()
}

func (r *EnvFileTokenRepository) key(name string) string {
	return r.prefix + name
}

func (r *EnvFileTokenRepository) read() (map[string]string, error) {
	values, err := godotenv.Read(r.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	return values, nil
}

func (r *EnvFileTokenRepository) write(values map[string]string) error {
	if dir := filepath.Dir(r.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for .env file: %w", err)
		}
	}
	if err := godotenv.Write(values, r.filePath); err != nil {
		return fmt.Errorf("failed to write .env file: %w", err)
	}
	return os.Chmod(r.filePath, 0o600)
}

// GetCurrentToken retrieves the current OAuth2 token from the .env file
func (r *EnvFileTokenRepository) GetCurrentToken(ctx context.Context) (*models.OAuth2Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	values, err := r.read()
	if err != nil {
		return nil, err
	}

	access, ok := values[r.key("ACCESS_TOKEN")]
	if !ok || access == "" {
		return nil, ErrTokenNotFound
	}

	token := &models.OAuth2Token{
		AccessToken:  access,
		RefreshToken: values[r.key("REFRESH_TOKEN")],
		TokenType:    values[r.key("TOKEN_TYPE")],
	}
	if raw := values[r.key("EXPIRES_AT")]; raw != "" {
		expiresAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", r.key("EXPIRES_AT"), err)
		}
		token.ExpiresAt = expiresAt
	}
	return token, nil
}

// SaveToken writes the token keys and keeps every unrelated key
func (r *EnvFileTokenRepository) SaveToken(ctx context.Context, token *models.OAuth2Token) error {
	if token == nil || token.AccessToken == "" {
		return ErrInvalidToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		return err
	}

	values[r.key("ACCESS_TOKEN")] = token.AccessToken
	values[r.key("REFRESH_TOKEN")] = token.RefreshToken
	values[r.key("TOKEN_TYPE")] = token.TokenType
	if token.ExpiresAt.IsZero() {
		delete(values, r.key("EXPIRES_AT"))
	} else {
		values[r.key("EXPIRES_AT")] = token.ExpiresAt.UTC().Format(time.RFC3339)
	}

	if err := r.write(values); err != nil {
		return err
	}
	r.logger.Info("OAuth2 token saved to .env file", "file_path", r.filePath)
	return nil
}

// DeleteToken removes the token keys of the account from the file
func (r *EnvFileTokenRepository) DeleteToken(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		return err
	}
	for key := range values {
		if strings.HasPrefix(key, r.prefix) {
			delete(values, key)
		}
	}
	return r.write(values)
}
