// ABOUTME: Tracks provider request quotas reported in response headers
// ABOUTME: Refuses new sync cycles once the read quota enters the safety buffer

package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"greader-sync/models"
)

// ErrQuotaExhausted is returned when the provider quota leaves no room for a cycle
var ErrQuotaExhausted = errors.New("provider request quota exhausted")

// QuotaGuard keeps the latest APIUsage of one account
type QuotaGuard struct {
	safetyBufferPercent int
	alertThresholds     []int
	onUpdate            func(models.APIUsage)
	logger              *slog.Logger
	now                 func() time.Time

	mu      sync.RWMutex
	usage   models.APIUsage
	known   bool
	alerted map[int]bool
}

// NewQuotaGuard creates a guard keeping safetyBufferPercent of the read quota in reserve
func NewQuotaGuard(safetyBufferPercent int, logger *slog.Logger) *QuotaGuard {
	if logger == nil {
		logger = slog.Default()
	}
	if safetyBufferPercent < 0 || safetyBufferPercent >= 100 {
		safetyBufferPercent = 10
	}
	return &QuotaGuard{
		safetyBufferPercent: safetyBufferPercent,
		alertThresholds:     []int{75, 90},
		logger:              logger,
		now:                 time.Now,
		alerted:             map[int]bool{},
	}
}

// OnUpdate registers a receiver for every new snapshot, e.g. a metrics gauge
func (g *QuotaGuard) OnUpdate(fn func(models.APIUsage)) {
	g.onUpdate = fn
}

// Update stores a snapshot; it is the transport's OnAPIUsage hook
func (g *QuotaGuard) Update(usage models.APIUsage) {
	g.mu.Lock()
	if g.known && !usage.ResetAt.IsZero() && usage.ResetAt.After(g.usage.ResetAt.Add(time.Minute)) {
		// a new quota window started
		g.alerted = map[int]bool{}
	}
	g.usage = usage
	g.known = true

	var crossed []int
	if usage.Zone1Limit > 0 {
		percent := usage.Zone1Usage * 100 / usage.Zone1Limit
		for _, threshold := range g.alertThresholds {
			if percent >= threshold && !g.alerted[threshold] {
				g.alerted[threshold] = true
				crossed = append(crossed, threshold)
			}
		}
	}
	onUpdate := g.onUpdate
	g.mu.Unlock()

	for _, threshold := range crossed {
		g.logger.Warn("Provider read quota threshold crossed",
			"threshold_percent", threshold,
			"zone1_usage", usage.Zone1Usage,
			"zone1_limit", usage.Zone1Limit,
			"reset_at", usage.ResetAt)
	}
	if onUpdate != nil {
		onUpdate(usage)
	}
}

// Usage returns the latest snapshot; ok is false before any response carried quota headers
func (g *QuotaGuard) Usage() (models.APIUsage, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.usage, g.known
}

// CheckAllowed returns ErrQuotaExhausted while the read quota is inside the safety buffer
func (g *QuotaGuard) CheckAllowed() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.known || g.usage.Zone1Limit <= 0 {
		return nil
	}
	if !g.usage.ResetAt.IsZero() && !g.now().Before(g.usage.ResetAt) {
		return nil
	}

	reserve := g.usage.Zone1Limit * g.safetyBufferPercent / 100
	if g.usage.Zone1Remaining() <= reserve {
		return fmt.Errorf("%w: %d of %d read requests used, resets at %s",
			ErrQuotaExhausted, g.usage.Zone1Usage, g.usage.Zone1Limit, g.usage.ResetAt.Format(time.RFC3339))
	}
	return nil
}
