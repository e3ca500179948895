package mhraparser

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
)

// Clock is the time source of the Fetcher.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// FetchObserver is notified of every attempt and retry.
type FetchObserver interface {
	FetchAttempt(target interfaces.Target, attempt int, elapsed time.Duration, err error)
	FetchRetry(target interfaces.Target, attempt int, wait time.Duration, err error)
}

// FetcherOptions configures a Fetcher. Zero values get the defaults of a
// production run.
type FetcherOptions struct {
	RequestDelay time.Duration // minimum gap between the start of two requests
	MaxAttempts  int
	RetryBase    time.Duration
	RetryMax     time.Duration
	Clock        Clock
	Observer     FetchObserver
	// Jitter returns a random duration in [0, max). Defaults to math/rand/v2.
	Jitter func(max time.Duration) time.Duration
}

// Fetcher wraps a PageSource with the global request pacing and the
// retry-with-backoff policy. It owns the timestamp of the last request start.
type Fetcher struct {
	source    interfaces.PageSource
	opts      FetcherOptions
	mu        sync.Mutex
	lastStart time.Time
}

var _ interfaces.PageFetcher = (*Fetcher)(nil)

// NewFetcher returns a Fetcher over source.
func NewFetcher(source interfaces.PageSource, opts FetcherOptions) *Fetcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	if opts.RetryMax < opts.RetryBase {
		opts.RetryMax = 8 * opts.RetryBase
	}
	if opts.RequestDelay < 0 {
		opts.RequestDelay = 0
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Jitter == nil {
		opts.Jitter = func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int64N(int64(max)))
		}
	}
	return &Fetcher{source: source, opts: opts}
}

// Fetch returns the content of target. Transient failures are retried up to
// MaxAttempts; the returned error is always a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, target interfaces.Target) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := f.Backoff(attempt - 2)
			f.observeRetry(target, attempt, wait, lastErr)
			logging.Warn("Retrying fetch", "url", target.URL, "attempt", attempt, "wait", wait, "error", lastErr)
			if err := f.opts.Clock.Sleep(ctx, wait); err != nil {
				return nil, &FetchError{Kind: FetchCanceled, Target: target, Attempts: attempt - 1, Err: err}
			}
		}

		if err := f.pace(ctx); err != nil {
			return nil, &FetchError{Kind: FetchCanceled, Target: target, Attempts: attempt - 1, Err: err}
		}

		start := f.opts.Clock.Now()
		body, err := f.source.Fetch(ctx, target)
		elapsed := f.opts.Clock.Now().Sub(start)
		f.observeAttempt(target, attempt, elapsed, err)

		if err == nil {
			logging.Debug("Fetched", "url", target.URL, "kind", target.Kind, "attempt", attempt, "bytes", len(body), "elapsed", elapsed)
			return body, nil
		}
		if isCanceled(ctx, err) {
			return nil, &FetchError{Kind: FetchCanceled, Target: target, Attempts: attempt, Err: err}
		}
		if !IsTransient(err) {
			return nil, &FetchError{Kind: FetchPermanent, Target: target, Attempts: attempt, Err: err}
		}
		lastErr = err
	}
	return nil, &FetchError{Kind: FetchExhausted, Target: target, Attempts: f.opts.MaxAttempts, Err: lastErr}
}

// Backoff is the wait before retry n (0 based): base * 2^n plus jitter in
// [0, base), capped at RetryMax.
func (f *Fetcher) Backoff(n int) time.Duration {
	wait := f.opts.RetryBase
	for i := 0; i < n && wait < f.opts.RetryMax; i++ {
		wait *= 2
	}
	wait += f.opts.Jitter(f.opts.RetryBase)
	if wait > f.opts.RetryMax {
		wait = f.opts.RetryMax
	}
	return wait
}

// pace blocks until RequestDelay has elapsed since the previous request start,
// then records the new start. Retries are paced like first attempts.
func (f *Fetcher) pace(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.lastStart.IsZero() && f.opts.RequestDelay > 0 {
		next := f.lastStart.Add(f.opts.RequestDelay)
		if wait := next.Sub(f.opts.Clock.Now()); wait > 0 {
			if err := f.opts.Clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.lastStart = f.opts.Clock.Now()
	return nil
}

func (f *Fetcher) observeAttempt(target interfaces.Target, attempt int, elapsed time.Duration, err error) {
	if f.opts.Observer != nil {
		f.opts.Observer.FetchAttempt(target, attempt, elapsed, err)
	}
}

func (f *Fetcher) observeRetry(target interfaces.Target, attempt int, wait time.Duration, err error) {
	if f.opts.Observer != nil {
		f.opts.Observer.FetchRetry(target, attempt, wait, err)
	}
}
