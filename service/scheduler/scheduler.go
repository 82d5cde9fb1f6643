package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"greader-sync/repository"
	"greader-sync/service"
)

// CycleRunner is one account the scheduler keeps in sync
type CycleRunner interface {
	AccountID() string
	RunCycle(ctx context.Context, feedIDs ...string) (*service.CycleReport, error)
}

// Result is the outcome of one account in a scheduled round
type Result struct {
	AccountID string               `json:"account_id"`
	Report    *service.CycleReport `json:"report,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Scheduler runs sync rounds over every account on a fixed interval
type Scheduler struct {
	accounts []CycleRunner
	runs     repository.SyncRunRepository
	logger   *slog.Logger

	mu            sync.Mutex
	syncTicker    *time.Ticker
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	done          chan struct{}
	isRunning     bool
	cfg           Config
}

// Config holds scheduler configuration
type Config struct {
	SyncInterval    time.Duration
	CleanupInterval time.Duration
	// RetentionDays of sync run history kept by the cleanup job
	RetentionDays int
	CycleTimeout  time.Duration
	// Parallelism bounds how many accounts sync at once
	Parallelism int
	RunOnStart  bool
}

// DefaultConfig returns the default configuration for the scheduler
func DefaultConfig() Config {
	return Config{
		SyncInterval:    30 * time.Minute,
		CleanupInterval: 24 * time.Hour,
		RetentionDays:   30,
		CycleTimeout:    10 * time.Minute,
		Parallelism:     2,
		RunOnStart:      true,
	}
}

// NewScheduler creates a scheduler; runs may be nil when no history is kept
func NewScheduler(accounts []CycleRunner, runs repository.SyncRunRepository, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		accounts: accounts,
		runs:     runs,
		logger:   logger,
	}
}

// Start starts the scheduling loop
func (s *Scheduler) Start(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.logger.Warn("Scheduler is already running")
		return
	}
	defaults := DefaultConfig()
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = defaults.SyncInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = defaults.CycleTimeout
	}

	s.logger.Info("Starting sync scheduler",
		"accounts", len(s.accounts),
		"sync_interval", cfg.SyncInterval,
		"cleanup_interval", cfg.CleanupInterval)

	s.cfg = cfg
	s.syncTicker = time.NewTicker(cfg.SyncInterval)
	s.cleanupTicker = time.NewTicker(cfg.CleanupInterval)
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.isRunning = true

	go s.runLoop(cfg, s.stopChan, s.done)
}

// Stop stops the scheduler and waits for the running round to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Stopping sync scheduler")
	close(s.stopChan)
	s.syncTicker.Stop()
	s.cleanupTicker.Stop()
	s.isRunning = false
	done := s.done
	s.mu.Unlock()

	<-done
}

// IsRunning reports whether the loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Scheduler) runLoop(cfg Config, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	if cfg.RunOnStart {
		s.SyncAll(ctx, cfg)
	}
	for {
		select {
		case <-stop:
			return
		case <-s.syncTicker.C:
			s.SyncAll(ctx, cfg)
		case <-s.cleanupTicker.C:
			s.cleanup(ctx, cfg.RetentionDays)
		}
	}
}

// SyncAll runs one cycle per account and returns the results in account order
func (s *Scheduler) SyncAll(ctx context.Context, cfg Config) []Result {
	results := make([]Result, len(s.accounts))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Parallelism > 0 {
		g.SetLimit(cfg.Parallelism)
	}
	for i, account := range s.accounts {
		g.Go(func() error {
			results[i] = s.syncAccount(gctx, cfg, account)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	s.logger.Info("Sync round completed", "accounts", len(results), "failed", failed)
	return results
}

// SyncAccount runs one cycle for accountID, limited to feedIDs when given.
// ok is false for unknown accounts.
func (s *Scheduler) SyncAccount(ctx context.Context, accountID string, feedIDs ...string) (Result, bool) {
	for _, account := range s.accounts {
		if account.AccountID() == accountID {
			return s.syncAccount(ctx, s.config(), account, feedIDs...), true
		}
	}
	return Result{}, false
}

func (s *Scheduler) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.CycleTimeout <= 0 {
		return DefaultConfig()
	}
	return s.cfg
}

func (s *Scheduler) syncAccount(ctx context.Context, cfg Config, account CycleRunner, feedIDs ...string) Result {
	timeout := cfg.CycleTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().CycleTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := Result{AccountID: account.AccountID()}
	report, err := account.RunCycle(ctx, feedIDs...)
	result.Report = report
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func (s *Scheduler) cleanup(ctx context.Context, retentionDays int) {
	if s.runs == nil || retentionDays <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	removed, err := s.runs.CleanupStale(ctx, retentionDays)
	if err != nil {
		s.logger.Error("Failed to clean up sync history", "error", err)
		return
	}
	s.logger.Info("Cleaned up sync history", "removed", removed, "retention_days", retentionDays)
}
