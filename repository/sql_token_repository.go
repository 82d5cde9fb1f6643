// ABOUTME: SQL OAuth2TokenRepository sharing the database of the message state store
// ABOUTME: Works with both the lib/pq and the modernc.org/sqlite drivers

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"greader-sync/models"
)

// SQLTokenRepository implements OAuth2TokenRepository on the greader_oauth_tokens table
type SQLTokenRepository struct {
	db         *sql.DB
	driverName string
	accountID  string
	logger     *slog.Logger
}

// NewSQLTokenRepository creates a repository scoped to accountID
func NewSQLTokenRepository(db *sql.DB, driverName, accountID string, logger *slog.Logger) *SQLTokenRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLTokenRepository{db: db, driverName: driverName, accountID: accountID, logger: logger}
}

// GetCurrentToken retrieves the current OAuth2 token of the account
func (r *SQLTokenRepository) GetCurrentToken(ctx context.Context) (*models.OAuth2Token, error) {
	var (
		token     models.OAuth2Token
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, rebind(r.driverName, `
		SELECT access_token, refresh_token, token_type, expires_at, issued_at
		FROM greader_oauth_tokens WHERE account_id = ?`), r.accountID).
		Scan(&token.AccessToken, &token.RefreshToken, &token.TokenType, &expiresAt, &token.IssuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if expiresAt.Valid {
		token.ExpiresAt = expiresAt.Time
	}
	return &token, nil
}

// SaveToken upserts the token of the account
func (r *SQLTokenRepository) SaveToken(ctx context.Context, token *models.OAuth2Token) error {
	if token == nil || token.AccessToken == "" {
		return ErrInvalidToken
	}

	expiresAt := sql.NullTime{Time: token.ExpiresAt.UTC(), Valid: !token.ExpiresAt.IsZero()}
	issuedAt := token.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, rebind(r.driverName, `
		INSERT INTO greader_oauth_tokens (account_id, access_token, refresh_token, token_type, expires_at, issued_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (account_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			issued_at = excluded.issued_at,
			updated_at = CURRENT_TIMESTAMP`),
		r.accountID, token.AccessToken, token.RefreshToken, token.TokenType, expiresAt, issuedAt.UTC())
	if err != nil {
		r.logger.Error("Failed to save token", "account_id", r.accountID, "error", err)
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (r *SQLTokenRepository) DeleteToken(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, rebind(r.driverName, `DELETE FROM greader_oauth_tokens WHERE account_id = ?`), r.accountID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
