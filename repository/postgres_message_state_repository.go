// ABOUTME: PostgreSQL implementation of MessageStateRepository using lib/pq
// ABOUTME: Stores the feed tree, labels and messages of one account

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"greader-sync/models"
)

// PostgreSQLMessageStateRepository implements MessageStateRepository using PostgreSQL
type PostgreSQLMessageStateRepository struct {
	db        *sql.DB
	accountID string
	logger    *slog.Logger
}

// NewPostgreSQLMessageStateRepository creates a repository scoped to accountID
func NewPostgreSQLMessageStateRepository(db *sql.DB, accountID string, logger *slog.Logger) *PostgreSQLMessageStateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgreSQLMessageStateRepository{db: db, accountID: accountID, logger: logger}
}

// SaveTree upserts every feed and label of tree and deletes the ones no longer present
func (r *PostgreSQLMessageStateRepository) SaveTree(ctx context.Context, tree *models.Tree) error {
	feeds, labels := treeRows(tree)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	feedIDs := make([]string, 0, len(feeds))
	for _, f := range feeds {
		feedIDs = append(feedIDs, f.customID)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO greader_feeds (account_id, custom_id, title, category_id, source, icon, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (account_id, custom_id) DO UPDATE SET
				title = EXCLUDED.title,
				category_id = EXCLUDED.category_id,
				source = EXCLUDED.source,
				icon = COALESCE(EXCLUDED.icon, greader_feeds.icon),
				updated_at = NOW()`,
			r.accountID, f.customID, f.title, f.categoryID, f.source, f.icon)
		if err != nil {
			r.logger.Error("Failed to upsert feed", "feed_id", f.customID, "error", err)
			return fmt.Errorf("failed to upsert feed %s: %w", f.customID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM greader_feeds WHERE account_id = $1 AND NOT (custom_id = ANY($2))`,
		r.accountID, pq.Array(feedIDs)); err != nil {
		return fmt.Errorf("failed to delete removed feeds: %w", err)
	}

	labelIDs := make([]string, 0, len(labels))
	for _, l := range labels {
		labelIDs = append(labelIDs, l.customID)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO greader_labels (account_id, custom_id, title, color)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (account_id, custom_id) DO UPDATE SET title = EXCLUDED.title`,
			r.accountID, l.customID, l.title, l.color)
		if err != nil {
			return fmt.Errorf("failed to upsert label %s: %w", l.customID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM greader_labels WHERE account_id = $1 AND NOT (custom_id = ANY($2))`,
		r.accountID, pq.Array(labelIDs)); err != nil {
		return fmt.Errorf("failed to delete removed labels: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tree: %w", err)
	}

	r.logger.Debug("Saved feed tree", "account_id", r.accountID, "feeds", len(feeds), "labels", len(labels))
	return nil
}

// ListFeeds returns the stored feeds ordered by custom id
func (r *PostgreSQLMessageStateRepository) ListFeeds(ctx context.Context) ([]models.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT custom_id, title FROM greader_feeds WHERE account_id = $1 ORDER BY custom_id`,
		r.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		var f models.Feed
		if err := rows.Scan(&f.CustomID, &f.Title); err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// LoadLocalState groups stored message ids of the given feeds by state
func (r *PostgreSQLMessageStateRepository) LoadLocalState(ctx context.Context, feedIDs []string) (models.LocalState, error) {
	state := models.LocalState{}
	if len(feedIDs) == 0 {
		return state, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT feed_id, custom_id, is_read, is_important
		FROM greader_messages
		WHERE account_id = $1 AND feed_id = ANY($2)`,
		r.accountID, pq.Array(feedIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load local state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			feedID, customID    string
			isRead, isImportant bool
		)
		if err := rows.Scan(&feedID, &customID, &isRead, &isImportant); err != nil {
			return nil, fmt.Errorf("failed to scan message state: %w", err)
		}
		addToState(state, feedID, customID, isRead, isImportant)
	}
	return state, rows.Err()
}

// SaveMessages upserts messages in one transaction
func (r *PostgreSQLMessageStateRepository) SaveMessages(ctx context.Context, messages []models.Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO greader_messages (
			account_id, custom_id, feed_id, title, author, url, contents, created_at,
			is_read, is_important, labels, enclosures, raw_contents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (account_id, custom_id) DO UPDATE SET
			feed_id = EXCLUDED.feed_id,
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			url = EXCLUDED.url,
			contents = EXCLUDED.contents,
			created_at = EXCLUDED.created_at,
			is_read = EXCLUDED.is_read,
			is_important = EXCLUDED.is_important,
			labels = EXCLUDED.labels,
			enclosures = EXCLUDED.enclosures,
			raw_contents = EXCLUDED.raw_contents`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare message upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		labels := m.AssignedLabels
		if labels == nil {
			labels = []string{}
		}
		if _, err := stmt.ExecContext(ctx,
			r.accountID, m.CustomID, m.FeedID, m.Title, m.Author, m.URL, m.Contents, m.Created,
			m.IsRead, m.IsImportant, pq.Array(labels), encodeEnclosures(m.Enclosures), m.RawContents,
		); err != nil {
			r.logger.Error("Failed to upsert message", "custom_id", m.CustomID, "feed_id", m.FeedID, "error", err)
			return 0, fmt.Errorf("failed to upsert message %s: %w", m.CustomID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit messages: %w", err)
	}
	return len(messages), nil
}

// SetFeedStatus records the outcome of the last fetch of a feed
func (r *PostgreSQLMessageStateRepository) SetFeedStatus(ctx context.Context, feedID string, status models.FeedStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE greader_feeds SET status = $3, updated_at = NOW() WHERE account_id = $1 AND custom_id = $2`,
		r.accountID, feedID, status.String())
	if err != nil {
		return fmt.Errorf("failed to set feed status: %w", err)
	}
	return nil
}

// UpdateFlags sets the read or starred flag of stored messages
func (r *PostgreSQLMessageStateRepository) UpdateFlags(ctx context.Context, ids []string, flag MessageFlag, value bool) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE greader_messages SET %s = $3 WHERE account_id = $1 AND custom_id = ANY($2)`, flag.column())
	if _, err := r.db.ExecContext(ctx, query, r.accountID, pq.Array(ids), value); err != nil {
		return fmt.Errorf("failed to update message flags: %w", err)
	}
	return nil
}
