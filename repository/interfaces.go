// ABOUTME: Repository contracts for token storage and the local message state store
// ABOUTME: Every repository is scoped to one account at construction time

package repository

import (
	"context"
	"errors"

	"greader-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mocks/repository_mock.go -package=mocks

// OAuth2TokenRepository stores the bearer token of one account
type OAuth2TokenRepository interface {
	// GetCurrentToken returns ErrTokenNotFound when nothing was stored yet
	GetCurrentToken(ctx context.Context) (*models.OAuth2Token, error)
	SaveToken(ctx context.Context, token *models.OAuth2Token) error
	DeleteToken(ctx context.Context) error
}

// MessageStateRepository is the local store a sync cycle reads from and writes to
type MessageStateRepository interface {
	// SaveTree replaces the stored feeds and labels with the ones in tree
	SaveTree(ctx context.Context, tree *models.Tree) error
	ListFeeds(ctx context.Context) ([]models.Feed, error)
	// LoadLocalState returns the read, unread and starred ids of the given feeds
	LoadLocalState(ctx context.Context, feedIDs []string) (models.LocalState, error)
	// SaveMessages upserts messages and returns how many rows were written
	SaveMessages(ctx context.Context, messages []models.Message) (int, error)
	SetFeedStatus(ctx context.Context, feedID string, status models.FeedStatus) error
	// UpdateFlags applies a read or starred change made on the server to stored messages
	UpdateFlags(ctx context.Context, ids []string, flag MessageFlag, value bool) error
}

// SyncRunRepository keeps the history of sync cycles
type SyncRunRepository interface {
	Record(ctx context.Context, run *models.SyncRun) error
	// ListRecent returns the newest runs first
	ListRecent(ctx context.Context, accountID string, limit int) ([]*models.SyncRun, error)
	CleanupStale(ctx context.Context, retentionDays int) (int, error)
}

// MessageFlag selects the boolean column UpdateFlags changes
type MessageFlag int

const (
	FlagRead MessageFlag = iota
	FlagStarred
)

func (f MessageFlag) column() string {
	if f == FlagStarred {
		return "is_important"
	}
	return "is_read"
}

var (
	ErrTokenNotFound = errors.New("OAuth2 token not found in storage")
	ErrInvalidToken  = errors.New("invalid OAuth2 token provided")
)
