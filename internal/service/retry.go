package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/bnema/scenefetch/internal/domain"
)

var ErrNoStrategies = errors.New("fallback chain has no strategies")

// RetryPolicy bounds ExecuteWithRetry. With UseKindStrategy the per-kind
// recovery strategy of each failure supplies the retry count and base delay;
// MaxRetries and BaseDelay then only apply to kinds without a strategy.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	UseKindStrategy   bool
	// Scope is copied into the ClassifyContext of every failure.
	Scope ClassifyContext
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         2 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Operation is one attempt of a retried unit of work. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// RetryHook runs between attempts with the attempt that just failed.
type RetryHook func(attempt int, info domain.ErrorInfo)

// budget returns how many retries the failure described by info allows and
// the base delay to use.
func (p RetryPolicy) budget(c *Classifier, info domain.ErrorInfo) (int, time.Duration) {
	limit, base := p.MaxRetries, p.BaseDelay
	if !p.UseKindStrategy {
		return limit, base
	}
	s := c.RecoveryStrategy(info)
	if !s.ShouldRetry {
		return 0, base
	}
	if s.MaxRetries > 0 {
		limit = s.MaxRetries
	}
	if s.BaseDelay > 0 {
		base = s.BaseDelay
	}
	return limit, base
}

// ExecuteWithRetry runs op up to MaxRetries+1 times, or the failing kind's
// budget+1 times under UseKindStrategy. Every failure is
// classified once. Non-retryable failures and exhausted budgets return the
// classified error immediately. The wait before attempt k+1 is
// min(base*multiplier^(k-1), MaxDelay).
func ExecuteWithRetry(ctx context.Context, c *Classifier, policy RetryPolicy, op Operation, onRetry RetryHook) error {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	var (
		attempt  int
		lastErr  error
		lastInfo domain.ErrorInfo
	)

	next := retry.BackoffFunc(func() (time.Duration, bool) {
		limit, base := policy.budget(c, lastInfo)
		if attempt > limit {
			return 0, true
		}
		if onRetry != nil {
			onRetry(attempt, lastInfo)
		}
		return NewBackoff(base, policy.MaxDelay, policy.BackoffMultiplier).Duration(attempt), false
	})

	err := retry.Do(ctx, next, func(ctx context.Context) error {
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}

		scope := policy.Scope
		scope.Attempt = attempt
		lastErr = c.Wrap(err, scope)
		lastInfo, _ = domain.AsErrorInfo(lastErr)
		if !lastInfo.IsRetryable {
			return lastErr
		}
		return retry.RetryableError(lastErr)
	})
	if err == nil {
		return nil
	}
	if _, ok := domain.AsErrorInfo(err); ok {
		return err
	}

	// retry.Do gave up on ctx while waiting or before the first attempt.
	scope := policy.Scope
	scope.Attempt = attempt
	if lastErr != nil {
		err = fmt.Errorf("retry aborted after attempt %d (%v): %w", attempt, lastErr, err)
	}
	return c.Wrap(err, scope)
}

// IdentityPool cycles request identities across attempts.
type IdentityPool struct {
	identities []string
}

var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:131.0) Gecko/20100101 Firefox/131.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:131.0) Gecko/20100101 Firefox/131.0",
}

// NewIdentityPool keeps the non-empty identities in order, falling back to
// DefaultUserAgents.
func NewIdentityPool(identities ...string) *IdentityPool {
	pool := &IdentityPool{}
	for _, id := range identities {
		if id != "" {
			pool.identities = append(pool.identities, id)
		}
	}
	if len(pool.identities) == 0 {
		pool.identities = append(pool.identities, DefaultUserAgents...)
	}
	return pool
}

// ForAttempt returns identities[(attempt-1) % len].
func (p *IdentityPool) ForAttempt(attempt int) string {
	if attempt < 1 {
		attempt = 1
	}
	return p.identities[(attempt-1)%len(p.identities)]
}

func (p *IdentityPool) Len() int {
	return len(p.identities)
}

// WithIdentityRotation hands op a different identity from pool on each attempt.
func WithIdentityRotation(pool *IdentityPool, op func(ctx context.Context, attempt int, identity string) error) Operation {
	return func(ctx context.Context, attempt int) error {
		return op(ctx, attempt, pool.ForAttempt(attempt))
	}
}

// RandFunc returns a float in [0, 1).
type RandFunc func() float64

// WithRandomDelay waits a uniform random duration in [minDelay, maxDelay]
// before each attempt. A nil rnd uses math/rand/v2.
func WithRandomDelay(minDelay, maxDelay time.Duration, rnd RandFunc, op Operation) Operation {
	if maxDelay < minDelay {
		minDelay, maxDelay = maxDelay, minDelay
	}
	if rnd == nil {
		rnd = rand.Float64
	}
	return func(ctx context.Context, attempt int) error {
		wait := minDelay + time.Duration(rnd()*float64(maxDelay-minDelay))
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		return op(ctx, attempt)
	}
}

// WithTimeout races op against a deadline. When the deadline wins the attempt
// fails as a Timeout, whatever op eventually returns. op sees its context
// cancelled and is expected to stop.
func WithTimeout(c *Classifier, d time.Duration, op Operation) Operation {
	if d <= 0 {
		return op
	}
	return func(ctx context.Context, attempt int) error {
		tctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- op(tctx, attempt) }()

		select {
		case err := <-done:
			return err
		case <-tctx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			err := fmt.Errorf("attempt %d exceeded %s: %w", attempt, d, context.DeadlineExceeded)
			return c.Wrap(err, ClassifyContext{Attempt: attempt})
		}
	}
}

// Strategy is one way of getting the job done in a FallbackChain.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) error
}

// FallbackChain tries each strategy in order and returns on the first
// success. When every strategy fails the errors are combined. A
// cancellation stops the chain early.
func FallbackChain(ctx context.Context, strategies ...Strategy) error {
	if len(strategies) == 0 {
		return ErrNoStrategies
	}

	var errs error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		err := s.Run(ctx)
		if err == nil {
			return nil
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Name, err))
		if info, ok := domain.AsErrorInfo(err); ok && info.Kind == domain.ErrorKindCancelledByUser {
			break
		}
	}
	return errs
}

// ChainErrorInfo returns the classification of the first strategy failure
// that carries one. A ToolNotFound verdict only wins when no other strategy
// reached the source: a missing binary says nothing about the video.
func ChainErrorInfo(err error) (domain.ErrorInfo, bool) {
	var (
		missingTool domain.ErrorInfo
		found       bool
	)
	for _, e := range multierr.Errors(err) {
		info, ok := domain.AsErrorInfo(e)
		if !ok {
			continue
		}
		if info.Kind != domain.ErrorKindToolNotFound {
			return info, true
		}
		if !found {
			missingTool, found = info, true
		}
	}
	return missingTool, found
}
