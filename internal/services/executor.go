package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/x2raindrop/internal/shared"
	"golang.org/x/time/rate"
)

// RetryPolicy describes how the executor retries a logical request.
//
// One policy value is shared by every call site so backoff behavior is not
// scattered per endpoint.
type RetryPolicy struct {
	MaxAttempts int                    // Ceiling across 429/5xx/network retries for one logical request
	Retryable   func(status int) bool  // Statuses eligible for retry
	NewBackOff  func() backoff.BackOff // Fresh backoff schedule per logical request
	Jitter      time.Duration          // Upper bound of random jitter added to throttle waits
}

// DefaultRetryPolicy returns the policy used against the X and Raindrop APIs:
// 5 attempts, exponential backoff from 1s capped at 30s, retrying 429 and 5xx.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Retryable: func(status int) bool {
			return status == http.StatusTooManyRequests || status >= 500
		},
		NewBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.MaxInterval = 30 * time.Second
			bo.RandomizationFactor = 0.2
			bo.MaxElapsedTime = 0
			return bo
		},
		Jitter: 500 * time.Millisecond,
	}
}

// ExecutorOpts contains configuration options for creating an Executor.
type ExecutorOpts struct {
	Client            *http.Client
	Tokens            TokenProvider
	Policy            *RetryPolicy
	RequestsPerSecond float64 // Global pacing; defaults to 1 req/s
	Logger            *log.Logger
}

// Executor is the single choke point for outbound HTTP requests.
//
// It attaches the current bearer token, paces requests with a shared limiter,
// and handles 401 refresh, 429 throttling, and transient failures per the
// configured [RetryPolicy]. No caller may bypass it.
type Executor struct {
	client  *http.Client
	tokens  TokenProvider
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  *log.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	requestCount int
}

// NewExecutor creates an Executor with the provided options.
func NewExecutor(opts ExecutorOpts) *Executor {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	policy := DefaultRetryPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Executor{
		client:  opts.Client,
		tokens:  opts.Tokens,
		policy:  policy,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  opts.Logger,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// RequestCount reports how many HTTP requests this executor has sent,
// including retries. Useful against the X free tier's tight budget.
func (e *Executor) RequestCount() int {
	return e.requestCount
}

// Do executes one logical request and returns the parsed 2xx response.
//
// The body is replayed on retry, so it is taken as a byte slice rather than a
// reader. Error kinds: [shared.ErrAuthFailed] after a failed refresh,
// [shared.ErrRateLimited] when the attempt ceiling is hit on 429s,
// [shared.ErrTransient] when it is hit on 5xx/network failures, and
// [shared.ErrAPIRequest] for non-retryable statuses.
func (e *Executor) Do(ctx context.Context, method, url string, body []byte) (*APIResponse, error) {
	bo := e.policy.NewBackOff()
	refreshed := false

	for attempt := 1; ; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		token, err := e.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := e.send(ctx, method, url, body, token)
		if err != nil {
			if attempt >= e.policy.MaxAttempts {
				return nil, fmt.Errorf("%w: %v (after %d attempts)", shared.ErrTransient, err, attempt)
			}
			wait := bo.NextBackOff()
			e.logger.Warn("request failed, retrying", "method", method, "url", url, "attempt", attempt, "wait", wait, "error", err)
			if err := e.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if refreshed {
				return nil, fmt.Errorf("%w: request unauthorized after token refresh", shared.ErrAuthFailed)
			}
			refreshed = true
			e.logger.Info("received 401, refreshing token", "method", method, "url", url)
			if _, err := e.tokens.Refresh(ctx); err != nil {
				return nil, err
			}

		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt >= e.policy.MaxAttempts {
				return nil, fmt.Errorf("%w: retry budget exhausted after %d attempts", shared.ErrRateLimited, attempt)
			}
			wait := e.throttleWait(resp.Header)
			if wait <= 0 {
				wait = bo.NextBackOff()
			}
			wait += e.jitter()
			e.logger.Warn("throttled by upstream", "method", method, "url", url, "attempt", attempt, "wait", wait)
			if err := e.sleep(ctx, wait); err != nil {
				return nil, err
			}

		case e.policy.Retryable(resp.StatusCode):
			if attempt >= e.policy.MaxAttempts {
				return nil, fmt.Errorf("%w: status %d after %d attempts", shared.ErrTransient, resp.StatusCode, attempt)
			}
			wait := bo.NextBackOff()
			e.logger.Warn("server error, retrying", "method", method, "url", url, "status", resp.StatusCode, "attempt", attempt, "wait", wait)
			if err := e.sleep(ctx, wait); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, snippet(resp.Body))
		}
	}
}

// send performs a single HTTP round trip.
func (e *Executor) send(ctx context.Context, method, url string, body []byte, token string) (*APIResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	e.requestCount++
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

// throttleWait derives the wait from throttling headers: Retry-After as
// seconds or an HTTP date, or x-rate-limit-reset as epoch seconds (X API).
// Returns 0 when no usable header is present.
func (e *Executor) throttleWait(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			return t.Sub(e.now())
		}
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(epoch, 0).Sub(e.now())
		}
	}
	return 0
}

func (e *Executor) jitter() time.Duration {
	if e.policy.Jitter <= 0 {
		return 0
	}
	return rand.N(e.policy.Jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
