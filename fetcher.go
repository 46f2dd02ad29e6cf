package rotator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// FetchRequest describes one fetch. Immutable once issued.
type FetchRequest struct {
	URL    string
	Method string // default GET
	Header http.Header
	Body   []byte

	// MaxAttempts overrides the policy's total dispatch attempts, 0 keeps
	// the policy default.
	MaxAttempts int
}

// Result is a successful fetch. Parsing Body is the caller's job.
type Result struct {
	Body       []byte
	StatusCode int
	Header     http.Header

	// Proxy is the identifier the winning attempt went through, "" for a
	// direct connection.
	Proxy    string
	Attempts int
}

// ExhaustedError is the terminal failure after all attempts are consumed.
// It carries enough context for the caller to decide between skipping the
// item and aborting the run.
type ExhaustedError struct {
	Attempts   int
	LastKind   OutcomeKind
	LastStatus int
	cause      error
}

func (e *ExhaustedError) Error() string {
	if e.Attempts == 0 {
		return fmt.Sprintf("rotator: fetch exhausted before dispatch: %v", e.cause)
	}
	msg := fmt.Sprintf("rotator: fetch exhausted after %d attempts, last outcome %s", e.Attempts, e.LastKind)
	if e.LastStatus != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.LastStatus)
	}
	return msg
}

func (e *ExhaustedError) Unwrap() error { return e.cause }

// Fetcher orchestrates retry and rotation across dispatch attempts:
// select a proxy, dispatch, report the outcome to the pool, then either
// return, back off and retry, or give up. One Fetcher serves concurrent
// Fetch calls; each call keeps its own attempt state.
type Fetcher struct {
	pool       *Pool
	selector   *Selector
	dispatcher Dispatcher
	policy     Policy
	sleep      func(ctx context.Context, d time.Duration) error
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithSleepFunc swaps the inter-attempt sleep, letting tests drive the
// state machine without real timing.
func WithSleepFunc(f func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(fe *Fetcher) { fe.sleep = f }
}

// NewFetcher builds a Fetcher over pool and dispatcher, governed by the
// pool's policy.
func NewFetcher(pool *Pool, dispatcher Dispatcher, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		pool:       pool,
		selector:   NewSelector(pool),
		dispatcher: dispatcher,
		policy:     pool.Policy(),
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch runs the retry state machine for one request. Every non-success
// outcome is reported to the pool before the retry decision, so health
// state never lags behind what the dispatcher observed.
func (f *Fetcher) Fetch(ctx context.Context, req *FetchRequest) (*Result, error) {
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = f.policy.MaxAttempts
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.policy.InitialWait
	bo.MaxInterval = f.policy.MaxWait

	var last Outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		proxyID, err := f.selector.Next()
		if err != nil {
			if !f.policy.AllowDirect {
				return nil, &ExhaustedError{
					Attempts:   attempt - 1,
					LastKind:   last.Kind,
					LastStatus: last.StatusCode,
					cause:      err,
				}
			}
			metrics.DirectFallbacks.Add(1)
			proxyID = ""
		}

		out := f.dispatcher.Dispatch(ctx, req, proxyID)
		f.pool.Report(proxyID, out)

		if out.Kind == OutcomeSuccess {
			return &Result{
				Body:       out.Body,
				StatusCode: out.StatusCode,
				Header:     out.Header,
				Proxy:      proxyID,
				Attempts:   attempt,
			}, nil
		}
		last = out

		slog.Debug("dispatch failed",
			slog.String("url", req.URL),
			slog.String("proxy", proxyID),
			slog.String("outcome", out.Kind.String()),
			slog.Int("attempt", attempt),
		)

		if attempt == maxAttempts {
			break
		}

		wait := bo.NextBackOff()
		if f.policy.HonorRetryAfter && out.RetryAfter > 0 {
			hint := out.RetryAfter
			if hint > f.policy.RetryAfterCap {
				hint = f.policy.RetryAfterCap
			}
			if hint > wait {
				wait = hint
			}
		}
		metrics.Retries.Add(1)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, &ExhaustedError{
		Attempts:   maxAttempts,
		LastKind:   last.Kind,
		LastStatus: last.StatusCode,
		cause:      last.Err,
	}
}

// sleepCtx waits for d, interruptible by ctx.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
