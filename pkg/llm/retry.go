package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// RetryConfig holds retry configuration for LLM calls
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retries (default: 3)
	InitialBackoff    time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 30s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
	Timeout           time.Duration // Per-attempt timeout (default: 60s)

	FailureThreshold int           // Failures before opening circuit (default: 5)
	SuccessThreshold int           // Successes in half-open before closing (default: 2)
	OpenTimeout      time.Duration // How long to keep circuit open (default: 30s)

	MaxConcurrentCalls int // Maximum concurrent LLM calls (default: 3, negative = unlimited)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:         3,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         30 * time.Second,
		BackoffMultiplier:  2.0,
		Timeout:            60 * time.Second,
		FailureThreshold:   5,
		SuccessThreshold:   2,
		OpenTimeout:        30 * time.Second,
		MaxConcurrentCalls: 3,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = def.OpenTimeout
	}
	if c.MaxConcurrentCalls == 0 {
		c.MaxConcurrentCalls = def.MaxConcurrentCalls
	}
	return c
}

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // requests pass through
	CircuitOpen                         // requests fail fast
	CircuitHalfOpen                     // probing for recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling an unhealthy backend until it has had time to recover.
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	logger           zerolog.Logger
	now              func() time.Time
}

func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration, logger zerolog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		logger:           logger,
		now:              time.Now,
	}
}

// Allow returns ErrCircuitOpen while the circuit is open and the open timeout
// has not yet elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return nil
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.openTimeout {
			cb.transition(CircuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.failureCount = 0
			cb.transition(CircuitClosed)
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// any failure while probing reopens
		cb.transition(CircuitOpen)
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Metrics returns the current state and counters.
func (cb *CircuitBreaker) Metrics() (state CircuitState, failures, successes int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failureCount, cb.successCount
}

// must be called with lock held
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.successCount = 0
	cb.logger.Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Int("failures", cb.failureCount).
		Dur("open_timeout", cb.openTimeout).
		Msg("circuit breaker state transition")
}

// Retrier wraps LLM calls with a concurrency limit, a circuit breaker and
// exponential backoff.
type Retrier struct {
	cfg     RetryConfig
	breaker *CircuitBreaker
	sem     *semaphore.Weighted
	logger  zerolog.Logger
}

func NewRetrier(cfg RetryConfig, logger zerolog.Logger) *Retrier {
	cfg = cfg.withDefaults()
	r := &Retrier{
		cfg:     cfg,
		breaker: NewCircuitBreaker(cfg.FailureThreshold, cfg.SuccessThreshold, cfg.OpenTimeout, logger),
		logger:  logger,
	}
	if cfg.MaxConcurrentCalls > 0 {
		r.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls))
	}
	return r
}

func (r *Retrier) Breaker() *CircuitBreaker { return r.breaker }

// Do runs fn until it succeeds, fails with a non-retriable error, or the retry
// budget is spent.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	return r.run(ctx, operation, r.cfg.MaxRetries, fn)
}

// Once runs fn a single time under the same limiter and breaker. Streaming calls
// use it because a partial stream cannot be replayed.
func (r *Retrier) Once(ctx context.Context, operation string, fn func(context.Context) error) error {
	return r.run(ctx, operation, 0, fn)
}

func (r *Retrier) run(ctx context.Context, operation string, maxRetries int, fn func(context.Context) error) error {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer r.sem.Release(1)
	}

	var lastErr error
	backoff := r.cfg.InitialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := r.breaker.Allow(); err != nil {
			state, failures, _ := r.breaker.Metrics()
			r.logger.Warn().
				Str("operation", operation).
				Str("state", state.String()).
				Int("failures", failures).
				Msg("LLM call blocked by circuit breaker")
			return fmt.Errorf("%s failed: %w", operation, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			r.breaker.RecordSuccess()
			if attempt > 0 {
				r.logger.Info().Str("operation", operation).Int("retries", attempt).Msg("LLM call succeeded after retries")
			}
			return nil
		}

		lastErr = err

		// auth and bad-request failures say nothing about backend health
		if !isRetriableError(err) {
			r.logger.Warn().Err(err).Str("operation", operation).Msg("LLM call failed with non-retriable error")
			return err
		}
		r.breaker.RecordFailure()

		if attempt == maxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s failed: context canceled: %w", operation, ctx.Err())
		}

		r.logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Int("max_attempts", maxRetries+1).
			Dur("backoff", backoff).
			Msg("LLM call failed, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
			backoff = time.Duration(float64(backoff) * r.cfg.BackoffMultiplier)
			if backoff > r.cfg.MaxBackoff {
				backoff = r.cfg.MaxBackoff
			}
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s failed: context canceled during backoff: %w", operation, ctx.Err())
		}
	}

	if maxRetries == 0 {
		return fmt.Errorf("%s failed: %w", operation, lastErr)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, maxRetries+1, lastErr)
}

// isRetriableError reports whether err looks transient.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "529") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") ||
		strings.Contains(errStr, "overloaded") {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "eof") {
		return true
	}

	return false
}
