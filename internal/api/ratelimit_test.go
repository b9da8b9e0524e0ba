package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wesm/github-review-sync/internal/logging"
	"github.com/wesm/github-review-sync/internal/models"
)

type stubStatus struct {
	resetsAt time.Time
	err      error
	calls    int
}

func (s *stubStatus) RateLimitStatus(ctx context.Context) (*models.RateLimitStatus, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.RateLimitStatus{ResetsAt: s.resetsAt}, nil
}

type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestLimiter(status RateLimitStatusSource, sleeper *recordingSleep, opts ...RateLimiterOption) *RateLimiter {
	opts = append([]RateLimiterOption{
		WithClock(func() time.Time { return fixedNow }),
		WithSleep(sleeper.sleep),
	}, opts...)
	return NewRateLimiter(status, logging.Discard(), opts...)
}

// fakeResponse carries a request so go-github's Error methods can format it
func fakeResponse(status int, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Request:    &http.Request{Method: http.MethodGet, URL: &url.URL{Scheme: "https", Host: "api.github.com", Path: "/orgs/acme/repos"}},
	}
}

func abuseError(retryAfter time.Duration) error {
	return &github.AbuseRateLimitError{
		Response:   fakeResponse(http.StatusForbidden, nil),
		Message:    "You have exceeded a secondary rate limit",
		RetryAfter: &retryAfter,
	}
}

func primaryError() error {
	return &github.RateLimitError{
		Response: fakeResponse(http.StatusForbidden, nil),
		Message:  "API rate limit exceeded",
	}
}

func TestRateLimiter_Do_ReturnsSuccessUnchanged(t *testing.T) {
	sleeper := &recordingSleep{}
	limiter := newTestLimiter(nil, sleeper)

	calls := 0
	var got string
	err := limiter.Do(context.Background(), func(ctx context.Context) error {
		calls++
		got = "payload"
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.waits)
}

func TestRateLimiter_WaitDuration(t *testing.T) {
	testCases := []struct {
		name     string
		status   *stubStatus
		err      error
		attempt  int
		expected time.Duration
	}{
		{
			name:     "retry-after hint wins",
			status:   &stubStatus{resetsAt: fixedNow.Add(10 * time.Second)},
			err:      abuseError(30 * time.Second),
			expected: 30 * time.Second,
		},
		{
			name:     "reset timestamp without hint",
			status:   &stubStatus{resetsAt: fixedNow.Add(10 * time.Second)},
			err:      primaryError(),
			expected: 10 * time.Second,
		},
		{
			name:     "reset in the past is floored at one second",
			status:   &stubStatus{resetsAt: fixedNow.Add(-time.Minute)},
			err:      primaryError(),
			expected: time.Second,
		},
		{
			name:     "exponential backoff when nothing is known",
			status:   nil,
			err:      primaryError(),
			attempt:  3,
			expected: 8 * time.Second,
		},
		{
			name:     "exponential backoff when the status call fails",
			status:   &stubStatus{err: errors.New("boom")},
			err:      primaryError(),
			attempt:  2,
			expected: 4 * time.Second,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var status RateLimitStatusSource
			if tc.status != nil {
				status = tc.status
			}
			limiter := newTestLimiter(status, &recordingSleep{})

			hint, limited := ClassifyRateLimit(tc.err)
			require.True(t, limited)
			assert.Equal(t, tc.expected, limiter.waitDuration(context.Background(), hint, tc.attempt))
		})
	}
}

func TestRateLimiter_Do_RetriesUntilSuccess(t *testing.T) {
	sleeper := &recordingSleep{}
	limiter := newTestLimiter(nil, sleeper)

	calls := 0
	err := limiter.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 4 {
			return primaryError()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.waits)
}

func TestRateLimiter_Do_RetryCap(t *testing.T) {
	sleeper := &recordingSleep{}
	limiter := newTestLimiter(nil, sleeper, WithMaxRetries(5))

	calls := 0
	err := limiter.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return primaryError()
	})

	require.Error(t, err)
	assert.Equal(t, 6, calls)
	assert.Len(t, sleeper.waits, 5)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 6, exhausted.Attempts)

	var rateErr *github.RateLimitError
	assert.ErrorAs(t, err, &rateErr, "the triggering failure must stay reachable")
}

func TestRateLimiter_Do_ZeroRetries(t *testing.T) {
	sleeper := &recordingSleep{}
	limiter := newTestLimiter(nil, sleeper, WithMaxRetries(0))

	calls := 0
	err := limiter.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return abuseError(time.Second)
	})

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.waits)
}

func TestRateLimiter_Do_OtherErrorsPropagateImmediately(t *testing.T) {
	sleeper := &recordingSleep{}
	limiter := newTestLimiter(nil, sleeper)

	notFound := &github.ErrorResponse{
		Response: fakeResponse(http.StatusNotFound, nil),
		Message:  "Not Found",
	}

	for _, want := range []error{errors.New("connection reset"), notFound} {
		calls := 0
		err := limiter.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return want
		})

		assert.Same(t, want, err)
		assert.Equal(t, 1, calls)
	}
	assert.Empty(t, sleeper.waits)
}

func TestRateLimiter_Do_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	limiter := NewRateLimiter(nil, logging.Discard())

	calls := 0
	err := limiter.Do(ctx, func(ctx context.Context) error {
		calls++
		return abuseError(time.Hour)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestClassifyRateLimit(t *testing.T) {
	tooMany := &github.ErrorResponse{
		Response: fakeResponse(http.StatusTooManyRequests, http.Header{"Retry-After": []string{"42"}}),
	}

	testCases := []struct {
		name     string
		err      error
		limited  bool
		expected time.Duration
	}{
		{name: "secondary limit with retry-after", err: abuseError(30 * time.Second), limited: true, expected: 30 * time.Second},
		{name: "primary limit", err: primaryError(), limited: true},
		{name: "wrapped primary limit", err: fmt.Errorf("failed to list pull requests: %w", primaryError()), limited: true},
		{name: "plain 429 with header", err: tooMany, limited: true, expected: 42 * time.Second},
		{name: "unrelated error", err: errors.New("EOF"), limited: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hint, limited := ClassifyRateLimit(tc.err)
			assert.Equal(t, tc.limited, limited)
			assert.Equal(t, tc.expected, hint.RetryAfter)
		})
	}
}
