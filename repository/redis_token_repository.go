// ABOUTME: Redis-backed OAuth2TokenRepository shared by replicas of the sync service
// ABOUTME: The token is a JSON value whose TTL follows the refresh window

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"greader-sync/models"
)

// RedisTokenRepository implements OAuth2TokenRepository using a Redis key per account
type RedisTokenRepository struct {
	client    *redis.Client
	key       string
	retention time.Duration
	logger    *slog.Logger
}

// NewRedisTokenRepositoryWithURL connects with a redis:// URL
func NewRedisTokenRepositoryWithURL(url, accountID string, logger *slog.Logger) (*RedisTokenRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisTokenRepository(redis.NewClient(opts), accountID, logger), nil
}

// NewRedisTokenRepository stores the token of accountID under greader-sync:token:<account>
func NewRedisTokenRepository(client *redis.Client, accountID string, logger *slog.Logger) *RedisTokenRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisTokenRepository{
		client:    client,
		key:       "greader-sync:token:" + accountID,
		retention: 30 * 24 * time.Hour,
		logger:    logger,
	}
}

// GetCurrentToken retrieves the current OAuth2 token from Redis
func (r *RedisTokenRepository) GetCurrentToken(ctx context.Context) (*models.OAuth2Token, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token from redis: %w", err)
	}

	var token models.OAuth2Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token data in redis: %w", err)
	}
	return &token, nil
}

// SaveToken stores the token; the key outlives the access token so the refresh token survives
func (r *RedisTokenRepository) SaveToken(ctx context.Context, token *models.OAuth2Token) error {
	if token == nil || token.AccessToken == "" {
		return ErrInvalidToken
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.retention).Err(); err != nil {
		r.logger.Error("Failed to save token to redis", "key", r.key, "error", err)
		return fmt.Errorf("failed to save token to redis: %w", err)
	}
	return nil
}

func (r *RedisTokenRepository) DeleteToken(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisTokenRepository) Close() error {
	return r.client.Close()
}
