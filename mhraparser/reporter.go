package mhraparser

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/giygas/mhra-extractor/catalog"
	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
	"github.com/giygas/mhra-extractor/metrics"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// Reporter accumulates the counters of one run. It is a passive observer: every
// method is safe on a nil receiver and recovers its own panics so that reporting
// can never interrupt traversal. The walker is single-threaded so no locking is done.
type Reporter struct {
	now     func() time.Time
	summary entities.RunSummary
}

var _ FetchObserver = (*Reporter)(nil)

// NewReporter starts a summary for a run.
func NewReporter(versionLabel, basePath string, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{
		now: now,
		summary: entities.RunSummary{
			RunID:        uuid.NewString(),
			VersionLabel: versionLabel,
			BasePath:     basePath,
			Failures:     []entities.NodeFailure{},
		},
	}
}

func (r *Reporter) guard(op string) {
	if rec := recover(); rec != nil {
		logging.Debug("Run reporter recovered", "op", op, "panic", fmt.Sprint(rec))
	}
}

// Start records the start of the run and the number of letters requested.
func (r *Reporter) Start(lettersRequested int) {
	if r == nil {
		return
	}
	defer r.guard("start")
	r.summary.StartedAt = r.now().UTC()
	r.summary.LettersRequested = lettersRequested
	metrics.RunInProgress.Set(1)
}

// Finish records the end of the run.
func (r *Reporter) Finish() {
	if r == nil {
		return
	}
	defer r.guard("finish")
	r.summary.FinishedAt = r.now().UTC()
	if !r.summary.StartedAt.IsZero() {
		r.summary.DurationSeconds = r.summary.FinishedAt.Sub(r.summary.StartedAt).Seconds()
	}
	metrics.RunInProgress.Set(0)
	metrics.LastRunTimestamp.Set(float64(r.summary.FinishedAt.Unix()))
}

// LetterVisited counts a letter whose index was fetched.
func (r *Reporter) LetterVisited() {
	if r == nil {
		return
	}
	defer r.guard("letter")
	r.summary.LettersVisited++
}

// Committed counts n records committed at level.
func (r *Reporter) Committed(level entities.Level, n int) {
	if r == nil || n == 0 {
		return
	}
	defer r.guard("committed")
	switch level {
	case entities.LevelSubstance:
		r.summary.SubstancesFound += n
	case entities.LevelProduct:
		r.summary.ProductsFound += n
	case entities.LevelDocument:
		r.summary.DocumentsFound += n
	}
	metrics.RecordsCommitted.WithLabelValues(level.String()).Add(float64(n))
}

// Duplicates counts n sibling records skipped as duplicates at level.
func (r *Reporter) Duplicates(level entities.Level, n int) {
	if r == nil || n == 0 {
		return
	}
	defer r.guard("duplicates")
	r.summary.DuplicatesSkipped += n
	metrics.DuplicatesSkipped.WithLabelValues(level.String()).Add(float64(n))
	logging.Debug("Duplicate records skipped", "level", level, "count", n)
}

// Discarded takes back the records of a subtree removed from the catalog.
func (r *Reporter) Discarded(removed catalog.Removed) {
	if r == nil {
		return
	}
	defer r.guard("discarded")
	r.summary.LettersVisited -= removed.Letters
	r.summary.SubstancesFound -= removed.Substances
	r.summary.ProductsFound -= removed.Products
	r.summary.DocumentsFound -= removed.Documents
}

// InvalidRecord counts a parsed record rejected by its constructor.
func (r *Reporter) InvalidRecord(level entities.Level, err error) {
	if r == nil {
		return
	}
	defer r.guard("invalid")
	r.summary.InvalidRecordsSkipped++
	logging.Debug("Invalid record skipped", "level", level, "error", err)
}

// SubtreeFailed records a node skipped after its fetch failed.
func (r *Reporter) SubtreeFailed(level entities.Level, name, url string, err error) {
	if r == nil {
		return
	}
	defer r.guard("failed")

	failure := entities.NodeFailure{Level: level, Name: name, URL: url, Error: fmt.Sprint(err)}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		failure.Kind = string(fetchErr.Kind)
		failure.Attempts = fetchErr.Attempts
	} else {
		failure.Kind = "parse"
	}
	r.summary.Failures = append(r.summary.Failures, failure)
	r.summary.FetchFailuresTolerated++
	if level == entities.LevelLetter {
		r.summary.LettersFailed++
	}
	metrics.SubtreeFailures.WithLabelValues(level.String()).Inc()
	logging.Warn("Skipping subtree", "level", level, "name", name, "url", url, "kind", failure.Kind, "error", err)
}

// Fatal records a failure that ended the run.
func (r *Reporter) Fatal(err error) {
	if r == nil {
		return
	}
	defer r.guard("fatal")
	r.summary.FetchFailuresFatal++
	logging.Error("Run aborted", "error", err)
}

// FetchAttempt counts one outbound request.
func (r *Reporter) FetchAttempt(target interfaces.Target, attempt int, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	defer r.guard("attempt")
	r.summary.FetchAttempts++
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.FetchAttempts.WithLabelValues(string(target.Kind), outcome).Inc()
	metrics.FetchDuration.WithLabelValues(string(target.Kind)).Observe(elapsed.Seconds())
}

// FetchRetry counts one retry.
func (r *Reporter) FetchRetry(target interfaces.Target, attempt int, wait time.Duration, err error) {
	if r == nil {
		return
	}
	defer r.guard("retry")
	r.summary.FetchRetries++
	metrics.FetchRetries.Inc()
}

// Summary returns a copy of the counters so far.
func (r *Reporter) Summary() entities.RunSummary {
	if r == nil {
		return entities.RunSummary{Failures: []entities.NodeFailure{}}
	}
	summary := r.summary
	summary.Failures = append([]entities.NodeFailure{}, r.summary.Failures...)
	return summary
}
