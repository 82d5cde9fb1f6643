package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greader-sync/models"
)

func TestSQLSyncRunRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDatabase(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLSyncRunRepository(db, "sqlite", nil)
	now := time.Now().UTC().Truncate(time.Second)

	runs := []*models.SyncRun{
		{AccountID: "a", CycleID: "old", StartedAt: now.AddDate(0, 0, -40), FinishedAt: now.AddDate(0, 0, -40), Status: "normal"},
		{AccountID: "a", CycleID: "first", StartedAt: now.Add(-2 * time.Hour), FinishedAt: now.Add(-time.Hour), GlobalFetch: true, FeedsTotal: 10, MessagesSaved: 42, Status: "normal"},
		{AccountID: "a", CycleID: "second", StartedAt: now, FinishedAt: now.Add(time.Minute), FeedsTotal: 10, FeedsFailed: 2, Status: "network_error", Error: "boom"},
		{AccountID: "b", CycleID: "other", StartedAt: now, FinishedAt: now, Status: "normal"},
	}
	for _, run := range runs {
		require.NoError(t, repo.Record(ctx, run))
		assert.NotEqual(t, uuid.Nil, run.ID)
	}

	recent, err := repo.ListRecent(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].CycleID)
	assert.Equal(t, runs[2].ID, recent[0].ID)
	assert.Equal(t, 2, recent[0].FeedsFailed)
	assert.Equal(t, "boom", recent[0].Error)
	assert.Equal(t, time.Minute, recent[0].Duration())
	assert.Equal(t, "first", recent[1].CycleID)
	assert.True(t, recent[1].GlobalFetch)
	assert.Equal(t, 42, recent[1].MessagesSaved)

	deleted, err := repo.CleanupStale(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	recent, err = repo.ListRecent(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
