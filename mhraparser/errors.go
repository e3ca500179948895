package mhraparser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/giygas/mhra-extractor/interfaces"
)

// ErrSourceUnreachable is returned when not a single letter index could be fetched.
var ErrSourceUnreachable = errors.New("source unreachable: every letter index failed")

// FetchErrorKind classifies why a fetch gave up.
type FetchErrorKind string

const (
	// FetchExhausted means every attempt failed with a transient error.
	FetchExhausted FetchErrorKind = "exhausted"
	// FetchPermanent means the source answered with an error that retrying cannot fix.
	FetchPermanent FetchErrorKind = "permanent"
	// FetchCanceled means the run context ended while fetching or waiting.
	FetchCanceled FetchErrorKind = "canceled"
)

// FetchError is returned by the Fetcher once it stops trying a target.
type FetchError struct {
	Kind     FetchErrorKind
	Target   interfaces.Target
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %s after %d attempt(s): %v", e.Target.Kind, e.Target.URL, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Skippable reports whether the walker may drop the subtree and continue.
func (e *FetchError) Skippable() bool {
	return e.Kind != FetchCanceled
}

// StatusError is returned by page sources for an HTTP error status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// IsTransient reports whether err is worth retrying: timeouts, connection
// failures, 5xx, 408 and 429.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 ||
			statusErr.Code == http.StatusRequestTimeout ||
			statusErr.Code == http.StatusTooManyRequests
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return false
}

// isCanceled reports whether err comes from the caller's context ending.
func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
