// ABOUTME: Circuit breaker guarding sync cycles against a provider that keeps failing
// ABOUTME: Only errors the classifier counts as outages move the breaker toward open

package utils

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive counted failures open the circuit
	FailureThreshold int
	// SuccessThreshold successes while half-open close it again
	SuccessThreshold int
	// Timeout is how long the circuit stays open before probing
	Timeout time.Duration
	// MaxRequests bounds concurrent probes while half-open
	MaxRequests int
	// IsFailure decides whether an error counts; nil counts every error
	IsFailure func(error) bool
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          5 * time.Minute,
		MaxRequests:      1,
	}
}

// CircuitBreakerStats holds statistics for monitoring
type CircuitBreakerStats struct {
	State           CircuitBreakerState `json:"state"`
	FailureCount    int                 `json:"failure_count"`
	LastFailureTime time.Time           `json:"last_failure_time"`
	LastSuccessTime time.Time           `json:"last_success_time"`
	NextRetry       time.Time           `json:"next_retry"`
	TotalRequests   int64               `json:"total_requests"`
	TotalFailures   int64               `json:"total_failures"`
	TotalRejections int64               `json:"total_rejections"`
}

// CircuitBreaker implements the circuit breaker pattern around whole operations
type CircuitBreaker struct {
	name   string
	config *CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu               sync.Mutex
	state            CircuitBreakerState
	failureCount     int
	successCount     int
	halfOpenRequests int
	lastFailureTime  time.Time
	lastSuccessTime  time.Time
	nextRetry        time.Time

	totalRequests   int64
	totalFailures   int64
	totalRejections int64
}

// ErrCircuitBreakerOpen is returned when the circuit breaker is open
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// NewCircuitBreaker creates a closed circuit breaker; name appears in logs
func NewCircuitBreaker(name string, config *CircuitBreakerConfig, logger *slog.Logger) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger.With("breaker", name),
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs operation unless the circuit is open
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	if !cb.allowRequest() {
		return ErrCircuitBreakerOpen
	}

	err := operation(ctx)
	if err != nil && cb.counts(err) {
		cb.onFailure(err)
	} else {
		cb.onSuccess()
	}
	return err
}

func (cb *CircuitBreaker) counts(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if cb.config.IsFailure == nil {
		return true
	}
	return cb.config.IsFailure(err)
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.nextRetry) {
			cb.totalRejections++
			return false
		}
		cb.setState(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.config.MaxRequests {
			cb.totalRejections++
			return false
		}
		cb.halfOpenRequests++
	}
	cb.totalRequests++
	return true
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastSuccessTime = cb.now()
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.halfOpenRequests--
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalFailures++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.logger.Warn("Circuit breaker opening due to failures",
				"failure_count", cb.failureCount,
				"threshold", cb.config.FailureThreshold,
				"error", err)
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.halfOpenRequests--
		cb.logger.Warn("Circuit breaker re-opening from half-open state", "error", err)
		cb.setState(StateOpen)
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	oldState := cb.state
	cb.state = newState
	cb.successCount = 0
	cb.halfOpenRequests = 0

	switch newState {
	case StateClosed:
		cb.failureCount = 0
	case StateOpen:
		cb.nextRetry = cb.now().Add(cb.config.Timeout)
	}

	cb.logger.Info("Circuit breaker state transition",
		"from", oldState.String(),
		"to", newState.String(),
		"next_retry", cb.nextRetry.Format(time.RFC3339))
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns current statistics for monitoring
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		State:           cb.state,
		FailureCount:    cb.failureCount,
		LastFailureTime: cb.lastFailureTime,
		LastSuccessTime: cb.lastSuccessTime,
		NextRetry:       cb.nextRetry,
		TotalRequests:   cb.totalRequests,
		TotalFailures:   cb.totalFailures,
		TotalRejections: cb.totalRejections,
	}
}

// Reset closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
}
