// ABOUTME: SQLite implementation of MessageStateRepository for single-user installs
// ABOUTME: Uses the pure Go modernc.org/sqlite driver; labels and enclosures are JSON text

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"greader-sync/models"
)

// SQLiteMessageStateRepository implements MessageStateRepository using SQLite
type SQLiteMessageStateRepository struct {
	db        *sql.DB
	accountID string
	logger    *slog.Logger
}

// NewSQLiteMessageStateRepository creates a repository scoped to accountID
func NewSQLiteMessageStateRepository(db *sql.DB, accountID string, logger *slog.Logger) *SQLiteMessageStateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteMessageStateRepository{db: db, accountID: accountID, logger: logger}
}

// inClause renders "(?, ?, ...)" and the matching arguments
func inClause(values []string) (string, []any) {
	args := make([]any, 0, len(values))
	for _, v := range values {
		args = append(args, v)
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ") + ")", args
}

func (r *SQLiteMessageStateRepository) deleteMissing(ctx context.Context, tx *sql.Tx, table string, keep []string) error {
	if len(keep) == 0 {
		_, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE account_id = ?`, r.accountID)
		return err
	}
	clause, args := inClause(keep)
	_, err := tx.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE account_id = ? AND custom_id NOT IN `+clause,
		append([]any{r.accountID}, args...)...)
	return err
}

// SaveTree upserts every feed and label of tree and deletes the ones no longer present
func (r *SQLiteMessageStateRepository) SaveTree(ctx context.Context, tree *models.Tree) error {
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
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (account_id, custom_id) DO UPDATE SET
				title = excluded.title,
				category_id = excluded.category_id,
				source = excluded.source,
				icon = COALESCE(excluded.icon, greader_feeds.icon),
				updated_at = CURRENT_TIMESTAMP`,
			r.accountID, f.customID, f.title, f.categoryID, f.source, f.icon)
		if err != nil {
			return fmt.Errorf("failed to upsert feed %s: %w", f.customID, err)
		}
	}
	if err := r.deleteMissing(ctx, tx, "greader_feeds", feedIDs); err != nil {
		return fmt.Errorf("failed to delete removed feeds: %w", err)
	}

	labelIDs := make([]string, 0, len(labels))
	for _, l := range labels {
		labelIDs = append(labelIDs, l.customID)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO greader_labels (account_id, custom_id, title, color)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (account_id, custom_id) DO UPDATE SET title = excluded.title`,
			r.accountID, l.customID, l.title, l.color)
		if err != nil {
			return fmt.Errorf("failed to upsert label %s: %w", l.customID, err)
		}
	}
	if err := r.deleteMissing(ctx, tx, "greader_labels", labelIDs); err != nil {
		return fmt.Errorf("failed to delete removed labels: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tree: %w", err)
	}
	r.logger.Debug("Saved feed tree", "account_id", r.accountID, "feeds", len(feeds), "labels", len(labels))
	return nil
}

// ListFeeds returns the stored feeds ordered by custom id
func (r *SQLiteMessageStateRepository) ListFeeds(ctx context.Context) ([]models.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT custom_id, title FROM greader_feeds WHERE account_id = ? ORDER BY custom_id`, r.accountID)
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
func (r *SQLiteMessageStateRepository) LoadLocalState(ctx context.Context, feedIDs []string) (models.LocalState, error) {
	state := models.LocalState{}
	if len(feedIDs) == 0 {
		return state, nil
	}

	clause, args := inClause(feedIDs)
	rows, err := r.db.QueryContext(ctx,
		`SELECT feed_id, custom_id, is_read, is_important FROM greader_messages
		 WHERE account_id = ? AND feed_id IN `+clause,
		append([]any{r.accountID}, args...)...)
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
func (r *SQLiteMessageStateRepository) SaveMessages(ctx context.Context, messages []models.Message) (int, error) {
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, custom_id) DO UPDATE SET
			feed_id = excluded.feed_id,
			title = excluded.title,
			author = excluded.author,
			url = excluded.url,
			contents = excluded.contents,
			created_at = excluded.created_at,
			is_read = excluded.is_read,
			is_important = excluded.is_important,
			labels = excluded.labels,
			enclosures = excluded.enclosures,
			raw_contents = excluded.raw_contents`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare message upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		labels := m.AssignedLabels
		if labels == nil {
			labels = []string{}
		}
		encodedLabels, err := json.Marshal(labels)
		if err != nil {
			return 0, fmt.Errorf("failed to encode labels: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.accountID, m.CustomID, m.FeedID, m.Title, m.Author, m.URL, m.Contents, m.Created,
			m.IsRead, m.IsImportant, string(encodedLabels), encodeEnclosures(m.Enclosures), m.RawContents,
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
func (r *SQLiteMessageStateRepository) SetFeedStatus(ctx context.Context, feedID string, status models.FeedStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE greader_feeds SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE account_id = ? AND custom_id = ?`,
		status.String(), r.accountID, feedID)
	if err != nil {
		return fmt.Errorf("failed to set feed status: %w", err)
	}
	return nil
}

// UpdateFlags sets the read or starred flag of stored messages
func (r *SQLiteMessageStateRepository) UpdateFlags(ctx context.Context, ids []string, flag MessageFlag, value bool) error {
	if len(ids) == 0 {
		return nil
	}
	clause, args := inClause(ids)
	query := fmt.Sprintf(`UPDATE greader_messages SET %s = ? WHERE account_id = ? AND custom_id IN %s`, flag.column(), clause)
	if _, err := r.db.ExecContext(ctx, query, append([]any{value, r.accountID}, args...)...); err != nil {
		return fmt.Errorf("failed to update message flags: %w", err)
	}
	return nil
}
