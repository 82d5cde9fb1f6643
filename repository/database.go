package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// OpenDatabase connects to driverName ("postgres" or "sqlite"), applies the
// schema and returns the pool
func OpenDatabase(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}

	if driverName == "sqlite" {
		// a single connection keeps :memory: databases shared and writes serialized
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set wal mode: %w", err)
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	if err := EnsureSchema(ctx, db, driverName); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewMessageStateRepository returns the store matching driverName
func NewMessageStateRepository(db *sql.DB, driverName, accountID string, logger *slog.Logger) MessageStateRepository {
	if driverName == "sqlite" {
		return NewSQLiteMessageStateRepository(db, accountID, logger)
	}
	return NewPostgreSQLMessageStateRepository(db, accountID, logger)
}

// rebind rewrites "?" placeholders to "$n" for postgres
func rebind(driverName, query string) string {
	if driverName == "sqlite" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
