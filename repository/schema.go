package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS greader_feeds (
	account_id  TEXT NOT NULL,
	custom_id   TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	category_id TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	icon        BYTEA,
	status      TEXT NOT NULL DEFAULT 'normal',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (account_id, custom_id)
);
CREATE TABLE IF NOT EXISTS greader_labels (
	account_id TEXT NOT NULL,
	custom_id  TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	color      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (account_id, custom_id)
);
CREATE TABLE IF NOT EXISTS greader_messages (
	account_id   TEXT NOT NULL,
	custom_id    TEXT NOT NULL,
	feed_id      TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	contents     TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	is_read      BOOLEAN NOT NULL DEFAULT FALSE,
	is_important BOOLEAN NOT NULL DEFAULT FALSE,
	labels       TEXT[] NOT NULL DEFAULT '{}',
	enclosures   JSONB NOT NULL DEFAULT '[]',
	raw_contents TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (account_id, custom_id)
);
CREATE INDEX IF NOT EXISTS idx_greader_messages_feed ON greader_messages (account_id, feed_id);
CREATE TABLE IF NOT EXISTS greader_sync_runs (
	id             UUID PRIMARY KEY,
	account_id     TEXT NOT NULL,
	cycle_id       TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	global_fetch   BOOLEAN NOT NULL DEFAULT FALSE,
	feeds_total    INTEGER NOT NULL DEFAULT 0,
	feeds_failed   INTEGER NOT NULL DEFAULT 0,
	messages_saved INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'normal',
	error          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_greader_sync_runs_account ON greader_sync_runs (account_id, started_at);
CREATE TABLE IF NOT EXISTS greader_oauth_tokens (
	account_id    TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	token_type    TEXT NOT NULL DEFAULT 'Bearer',
	expires_at    TIMESTAMPTZ,
	issued_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS greader_feeds (
	account_id  TEXT NOT NULL,
	custom_id   TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	category_id TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	icon        BLOB,
	status      TEXT NOT NULL DEFAULT 'normal',
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (account_id, custom_id)
);
CREATE TABLE IF NOT EXISTS greader_labels (
	account_id TEXT NOT NULL,
	custom_id  TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	color      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (account_id, custom_id)
);
CREATE TABLE IF NOT EXISTS greader_messages (
	account_id   TEXT NOT NULL,
	custom_id    TEXT NOT NULL,
	feed_id      TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	contents     TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL,
	is_read      INTEGER NOT NULL DEFAULT 0,
	is_important INTEGER NOT NULL DEFAULT 0,
	labels       TEXT NOT NULL DEFAULT '[]',
	enclosures   TEXT NOT NULL DEFAULT '[]',
	raw_contents TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (account_id, custom_id)
);
CREATE INDEX IF NOT EXISTS idx_greader_messages_feed ON greader_messages (account_id, feed_id);
CREATE TABLE IF NOT EXISTS greader_sync_runs (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL,
	cycle_id       TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP NOT NULL,
	global_fetch   INTEGER NOT NULL DEFAULT 0,
	feeds_total    INTEGER NOT NULL DEFAULT 0,
	feeds_failed   INTEGER NOT NULL DEFAULT 0,
	messages_saved INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'normal',
	error          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_greader_sync_runs_account ON greader_sync_runs (account_id, started_at);
CREATE TABLE IF NOT EXISTS greader_oauth_tokens (
	account_id    TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	token_type    TEXT NOT NULL DEFAULT 'Bearer',
	expires_at    TIMESTAMP,
	issued_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// EnsureSchema creates the tables used by the SQL repositories.
// driverName is "postgres" or "sqlite".
func EnsureSchema(ctx context.Context, db *sql.DB, driverName string) error {
	schema := postgresSchema
	if driverName == "sqlite" {
		schema = sqliteSchema
	}

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %s schema: %w", driverName, err)
		}
	}
	return nil
}
