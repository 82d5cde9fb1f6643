// ABOUTME: Runs one full sync cycle for an account: tree, local state, prefetch and per-feed updates
// ABOUTME: Persists results through the message state store and records every cycle

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"greader-sync/models"
	"greader-sync/repository"
	"greader-sync/utils"
)

const tracerName = "greader-sync/service"

var (
	ErrCycleInProgress = errors.New("sync cycle already running for this account")
	ErrTreeUnavailable = errors.New("feed tree could not be fetched")
	ErrEditFailed      = errors.New("message state change rejected")
)

// Cycle outcome labels stored with each run
const (
	CycleStatusNormal      = "normal"
	CycleStatusPartial     = "partial"
	CycleStatusCircuitOpen = "circuit_open"
	CycleStatusQuota       = "quota_exhausted"
)

// CycleRecorder receives per-cycle measurements
type CycleRecorder interface {
	CycleCompleted(account, status string, duration time.Duration)
	BreakerState(account string, state utils.CircuitBreakerState)
}

// CycleReport summarizes one sync cycle
type CycleReport struct {
	AccountID     string                       `json:"account_id"`
	CycleID       string                       `json:"cycle_id"`
	StartedAt     time.Time                    `json:"started_at"`
	FinishedAt    time.Time                    `json:"finished_at"`
	GlobalFetch   bool                         `json:"global_fetch"`
	FeedsTotal    int                          `json:"feeds_total"`
	FeedsFailed   int                          `json:"feeds_failed"`
	MessagesSaved int                          `json:"messages_saved"`
	Status        string                       `json:"status"`
	Error         string                       `json:"error,omitempty"`
	FeedStatuses  map[string]models.FeedStatus `json:"-"`
}

// Run converts the report into its persisted form
func (r *CycleReport) Run() *models.SyncRun {
	return &models.SyncRun{
		AccountID:     r.AccountID,
		CycleID:       r.CycleID,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		GlobalFetch:   r.GlobalFetch,
		FeedsTotal:    r.FeedsTotal,
		FeedsFailed:   r.FeedsFailed,
		MessagesSaved: r.MessagesSaved,
		Status:        r.Status,
		Error:         r.Error,
	}
}

// AccountSyncService drives the orchestrator of one account against its local store.
// Cycles never overlap; a second RunCycle while one is active fails fast.
type AccountSyncService struct {
	accountID    string
	wantIcons    bool
	orchestrator *SyncOrchestrator
	store        repository.MessageStateRepository
	runs         repository.SyncRunRepository
	quota        *QuotaGuard
	breaker      *utils.CircuitBreaker
	recorder     CycleRecorder
	tracer       trace.Tracer
	logger       *slog.Logger
	now          func() time.Time

	running sync.Mutex
	mu      sync.RWMutex
	last    *CycleReport
}

// NewAccountSyncService creates the cycle runner for accountID
func NewAccountSyncService(accountID string, orchestrator *SyncOrchestrator, store repository.MessageStateRepository, wantIcons bool, logger *slog.Logger) *AccountSyncService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("account", accountID)

	breakerCfg := utils.DefaultCircuitBreakerConfig()
	// content problems do not mean the server is unreachable
	breakerCfg.IsFailure = func(err error) bool {
		return KindOf(err) != ErrorKindOther
	}

	return &AccountSyncService{
		accountID:    accountID,
		wantIcons:    wantIcons,
		orchestrator: orchestrator,
		store:        store,
		breaker:      utils.NewCircuitBreaker("sync-"+accountID, breakerCfg, logger),
		tracer:       otel.Tracer(tracerName),
		logger:       logger,
		now:          time.Now,
	}
}

// SetRunRepository enables sync run history
func (s *AccountSyncService) SetRunRepository(runs repository.SyncRunRepository) {
	s.runs = runs
}

// SetQuotaGuard makes cycles wait for the provider quota to recover
func (s *AccountSyncService) SetQuotaGuard(quota *QuotaGuard) {
	s.quota = quota
}

func (s *AccountSyncService) SetRecorder(recorder CycleRecorder) {
	s.recorder = recorder
}

// SetBreaker replaces the default circuit breaker
func (s *AccountSyncService) SetBreaker(breaker *utils.CircuitBreaker) {
	s.breaker = breaker
}

func (s *AccountSyncService) AccountID() string {
	return s.accountID
}

// LastReport returns the report of the most recent cycle, or nil
func (s *AccountSyncService) LastReport() *CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// BreakerStats exposes the circuit breaker guarding this account
func (s *AccountSyncService) BreakerStats() utils.CircuitBreakerStats {
	return s.breaker.GetStats()
}

// RunCycle performs one sync cycle. With feedIDs only those stored feeds are
// updated and the fetch strategy weighs them against every feed of the
// account. The returned report is non-nil whenever a cycle was attempted,
// including failed ones.
func (s *AccountSyncService) RunCycle(ctx context.Context, feedIDs ...string) (*CycleReport, error) {
	if !s.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer s.running.Unlock()

	ctx, span := s.tracer.Start(ctx, "sync.cycle", trace.WithAttributes(attribute.String("account.id", s.accountID)))
	defer span.End()

	report := &CycleReport{
		AccountID:    s.accountID,
		StartedAt:    s.now(),
		FeedStatuses: make(map[string]models.FeedStatus),
	}

	var err error
	if s.quota != nil {
		err = s.quota.CheckAllowed()
	}
	if err == nil {
		err = s.breaker.Execute(ctx, func(ctx context.Context) error {
			return s.cycle(ctx, report, feedIDs)
		})
	}

	report.FinishedAt = s.now()
	report.Status = cycleStatus(report, err)
	if err != nil {
		report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, report.Status)
	}
	span.SetAttributes(
		attribute.String("sync.cycle_id", report.CycleID),
		attribute.Bool("sync.global_fetch", report.GlobalFetch),
		attribute.Int("sync.feeds_total", report.FeedsTotal),
		attribute.Int("sync.feeds_failed", report.FeedsFailed),
		attribute.Int("sync.messages_saved", report.MessagesSaved),
		attribute.String("sync.status", report.Status),
	)

	s.record(ctx, report)

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("sync cycle failed", "cycle_id", report.CycleID, "status", report.Status, "error", err)
		return report, err
	}
	s.logger.Info("sync cycle completed",
		"cycle_id", report.CycleID,
		"global_fetch", report.GlobalFetch,
		"feeds", report.FeedsTotal,
		"failed_feeds", report.FeedsFailed,
		"messages_saved", report.MessagesSaved,
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (s *AccountSyncService) cycle(ctx context.Context, report *CycleReport, feedIDs []string) error {
	tree, status := s.orchestrator.FetchTree(ctx, s.wantIcons)
	if status != models.FeedStatusNormal {
		return newSyncError(kindForStatus(status), "fetch_tree", "", ErrTreeUnavailable)
	}
	if err := s.store.SaveTree(ctx, tree); err != nil {
		return fmt.Errorf("save tree: %w", err)
	}

	feeds, err := s.store.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}
	storedIDs := make([]string, 0, len(feeds))
	for _, feed := range feeds {
		storedIDs = append(storedIDs, feed.CustomID)
	}
	local, err := s.store.LoadLocalState(ctx, storedIDs)
	if err != nil {
		return fmt.Errorf("load local state: %w", err)
	}

	selected := s.selectFeeds(feeds, feedIDs)
	prefetch := s.orchestrator.PrepareAccountFetch(ctx, selected, len(feeds), local)
	report.CycleID = s.orchestrator.CycleID()
	report.GlobalFetch = s.orchestrator.GlobalFetch()
	report.FeedsTotal = len(selected)

	for _, feed := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}

		messages, status := s.orchestrator.FetchFeedMessages(ctx, feed, local[feed.CustomID])
		if status == models.FeedStatusNormal && len(messages) > 0 {
			saved, err := s.store.SaveMessages(ctx, messages)
			if err != nil {
				return fmt.Errorf("save messages of %s: %w", feed.CustomID, err)
			}
			report.MessagesSaved += saved
		}
		if err := s.store.SetFeedStatus(ctx, feed.CustomID, status); err != nil {
			return fmt.Errorf("set status of %s: %w", feed.CustomID, err)
		}

		report.FeedStatuses[feed.CustomID] = status
		if status != models.FeedStatusNormal {
			report.FeedsFailed++
		}
	}

	if prefetch != models.FeedStatusNormal {
		return newSyncError(kindForStatus(prefetch), "prefetch", "", ErrPrefetchFailed)
	}
	return nil
}

// selectFeeds keeps the stored feeds named in feedIDs; no ids selects every feed
func (s *AccountSyncService) selectFeeds(feeds []models.Feed, feedIDs []string) []models.Feed {
	if len(feedIDs) == 0 {
		return feeds
	}
	wanted := models.NewIDSet(feedIDs...)
	selected := make([]models.Feed, 0, len(feedIDs))
	for _, feed := range feeds {
		if wanted.Has(feed.CustomID) {
			selected = append(selected, feed)
		}
	}
	if len(selected) < wanted.Len() {
		s.logger.Warn("requested feeds not in the feed tree",
			"requested", wanted.Len(),
			"found", len(selected))
	}
	return selected
}

func cycleStatus(report *CycleReport, err error) string {
	switch {
	case errors.Is(err, utils.ErrCircuitBreakerOpen):
		return CycleStatusCircuitOpen
	case errors.Is(err, ErrQuotaExhausted):
		return CycleStatusQuota
	case err != nil:
		return StatusFromError(err).String()
	case report.FeedsFailed > 0:
		return CycleStatusPartial
	default:
		return CycleStatusNormal
	}
}

func (s *AccountSyncService) record(ctx context.Context, report *CycleReport) {
	if s.recorder != nil {
		s.recorder.CycleCompleted(s.accountID, report.Status, report.FinishedAt.Sub(report.StartedAt))
		s.recorder.BreakerState(s.accountID, s.breaker.GetState())
	}
	if s.runs == nil {
		return
	}
	// the cycle context may already be cancelled
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.runs.Record(recordCtx, report.Run()); err != nil {
		s.logger.Warn("failed to record sync run", "error", err)
	}
}

// MarkRead changes the read state on the server, then in the local store
func (s *AccountSyncService) MarkRead(ctx context.Context, read bool, ids []string) error {
	return s.applyFlag(ctx, repository.FlagRead, read, ids, s.orchestrator.MarkMessagesRead)
}

// MarkStarred changes the starred state on the server, then in the local store
func (s *AccountSyncService) MarkStarred(ctx context.Context, starred bool, ids []string) error {
	return s.applyFlag(ctx, repository.FlagStarred, starred, ids, s.orchestrator.MarkMessagesStarred)
}

func (s *AccountSyncService) applyFlag(
	ctx context.Context,
	flag repository.MessageFlag,
	value bool,
	ids []string,
	edit func(context.Context, bool, []string) models.FeedStatus,
) error {
	if len(ids) == 0 {
		return nil
	}
	if status := edit(ctx, value, ids); status != models.FeedStatusNormal {
		return newSyncError(kindForStatus(status), "edit_tag", "", ErrEditFailed)
	}
	if err := s.store.UpdateFlags(ctx, ids, flag, value); err != nil {
		return fmt.Errorf("update local flags: %w", err)
	}
	return nil
}

// UserInfo returns the provider's account metadata
func (s *AccountSyncService) UserInfo(ctx context.Context) (map[string]any, error) {
	info, status := s.orchestrator.UserInfo(ctx)
	if status != models.FeedStatusNormal {
		return nil, newSyncError(kindForStatus(status), "user_info", "", ErrUnexpectedStatus)
	}
	return info, nil
}
