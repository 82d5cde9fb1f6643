// ABOUTME: Memory based rate limiting protecting the admin API
// ABOUTME: One token bucket per client IP and endpoint; idle buckets are swept periodically

package security

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// MemoryRateLimiter limits requests per client and endpoint
type MemoryRateLimiter struct {
	limit           rate.Limit
	burst           int
	retryAfter      int
	idleTTL         time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	logger          *slog.Logger

	mutex    sync.Mutex
	clients  map[string]*clientLimiter
	rejected atomic.Int64

	stopChan chan struct{}
	stopOnce sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// GlobalStats summarizes the limiter state
type GlobalStats struct {
	TrackedClients int   `json:"tracked_clients"`
	Rejected       int64 `json:"rejected"`
}

// NewMemoryRateLimiter allows maxRequestsPerHour per client and endpoint, all of
// which may arrive in one burst
func NewMemoryRateLimiter(maxRequestsPerHour int, logger *slog.Logger) *MemoryRateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRequestsPerHour <= 0 {
		maxRequestsPerHour = 60
	}

	rl := &MemoryRateLimiter{
		limit:           rate.Limit(float64(maxRequestsPerHour) / time.Hour.Seconds()),
		burst:           maxRequestsPerHour,
		retryAfter:      max((3600+maxRequestsPerHour-1)/maxRequestsPerHour, 1),
		idleTTL:         time.Hour,
		cleanupInterval: 5 * time.Minute,
		now:             time.Now,
		logger:          logger,
		clients:         make(map[string]*clientLimiter),
		stopChan:        make(chan struct{}),
	}
	go rl.cleanupLoop()

	logger.Info("Memory rate limiter created",
		"max_requests_per_hour", maxRequestsPerHour,
		"cleanup_interval", rl.cleanupInterval)
	return rl
}

func clientKey(clientIP, endpoint string) string {
	return clientIP + "|" + endpoint
}

// IsAllowed consumes one request of the client's budget for endpoint
func (rl *MemoryRateLimiter) IsAllowed(clientIP, endpoint string) bool {
	now := rl.now()

	rl.mutex.Lock()
	key := clientKey(clientIP, endpoint)
	client, ok := rl.clients[key]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = now
	allowed := client.limiter.AllowN(now, 1)
	rl.mutex.Unlock()

	if !allowed {
		rl.rejected.Add(1)
		rl.logger.Warn("Rate limit exceeded", "client_ip", clientIP, "endpoint", endpoint)
	}
	return allowed
}

// Middleware enforces the limit on every route it wraps
func (rl *MemoryRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.IsAllowed(c.RealIP(), c.Path()) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(rl.retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// GetGlobalStats returns the number of tracked clients and rejected requests
func (rl *MemoryRateLimiter) GetGlobalStats() GlobalStats {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return GlobalStats{TrackedClients: len(rl.clients), Rejected: rl.rejected.Load()}
}

func (rl *MemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.performCleanup()
		}
	}
}

func (rl *MemoryRateLimiter) performCleanup() int {
	cutoff := rl.now().Add(-rl.idleTTL)

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	removed := 0
	for key, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug("Rate limiter cleanup completed", "removed_clients", removed, "active_clients", len(rl.clients))
	}
	return removed
}

// Stop ends the cleanup goroutine; it is safe to call more than once
func (rl *MemoryRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}
