package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/wesm/github-review-sync/internal/models"
)

// DefaultMaxRetries is the number of retries after the initial attempt
const DefaultMaxRetries = 5

// RateLimitStatusSource reports when the remote rate limit window resets.
// *GitHubClient satisfies it.
type RateLimitStatusSource interface {
	RateLimitStatus(ctx context.Context) (*models.RateLimitStatus, error)
}

// RetryExhaustedError is returned when a rate-limited call still fails after the last retry.
// It unwraps to the rate limit error of the final attempt.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// RateLimitHint carries the retry information attached to a rate limit failure
type RateLimitHint struct {
	RetryAfter time.Duration
}

// RateLimiter wraps remote API calls and retries them when GitHub reports a rate limit
type RateLimiter struct {
	maxRetries int
	status     RateLimitStatusSource
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// RateLimiterOption configures a RateLimiter
type RateLimiterOption func(*RateLimiter)

// WithMaxRetries sets the number of retries after the initial attempt
func WithMaxRetries(n int) RateLimiterOption {
	return func(r *RateLimiter) {
		if n < 0 {
			n = 0
		}
		r.maxRetries = n
	}
}

// WithClock replaces the time source used to compute waits until the limit reset
func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.now = now
	}
}

// WithSleep replaces the function used to wait between attempts
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RateLimiterOption {
	return func(r *RateLimiter) {
		r.sleep = sleep
	}
}

// NewRateLimiter creates a new rate limiter. status may be nil, in which case waits
// fall back to exponential backoff when no retry-after hint is present.
func NewRateLimiter(status RateLimitStatusSource, logger *slog.Logger, opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		maxRetries: DefaultMaxRetries,
		status:     status,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Do runs action, retrying it while it fails with a rate limit error.
// Any other error is returned immediately. Once the retry budget is spent the
// final failure is returned wrapped in a *RetryExhaustedError.
func (r *RateLimiter) Do(ctx context.Context, action func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := action(ctx)
		if err == nil {
			return nil
		}

		hint, limited := ClassifyRateLimit(err)
		if !limited {
			return err
		}

		if attempt >= r.maxRetries {
			return &RetryExhaustedError{Attempts: attempt + 1, Err: err}
		}

		wait := r.waitDuration(ctx, hint, attempt)
		r.logger.Warn("GitHub rate limit hit, waiting before retry",
			"wait", wait,
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
		)

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// waitDuration picks the retry-after hint first, then the time until the limit
// resets (at least one second), and finally 2^attempt seconds.
func (r *RateLimiter) waitDuration(ctx context.Context, hint RateLimitHint, attempt int) time.Duration {
	if hint.RetryAfter > 0 {
		return hint.RetryAfter
	}

	if r.status != nil {
		status, err := r.status.RateLimitStatus(ctx)
		if err != nil {
			r.logger.Debug("could not read rate limit status", "error", err)
		} else if status != nil && !status.ResetsAt.IsZero() {
			wait := status.ResetsAt.Sub(r.now())
			if wait < time.Second {
				wait = time.Second
			}
			return wait
		}
	}

	return time.Duration(1<<uint(attempt)) * time.Second
}

// ClassifyRateLimit reports whether err signals a primary or secondary rate limit,
// along with any retry-after hint it carries.
func ClassifyRateLimit(err error) (RateLimitHint, bool) {
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return RateLimitHint{RetryAfter: abuseErr.GetRetryAfter()}, true
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return RateLimitHint{RetryAfter: retryAfterHeader(rateErr.Response)}, true
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusTooManyRequests {
		return RateLimitHint{RetryAfter: retryAfterHeader(respErr.Response)}, true
	}

	return RateLimitHint{}, false
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
