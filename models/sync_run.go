package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncRun is the persisted summary of one account sync cycle
type SyncRun struct {
	ID            uuid.UUID `json:"id"`
	AccountID     string    `json:"account_id"`
	CycleID       string    `json:"cycle_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	GlobalFetch   bool      `json:"global_fetch"`
	FeedsTotal    int       `json:"feeds_total"`
	FeedsFailed   int       `json:"feeds_failed"`
	MessagesSaved int       `json:"messages_saved"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}

// Duration returns how long the cycle ran
func (r SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
