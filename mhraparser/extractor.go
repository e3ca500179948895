// Package mhraparser crawls the MHRA products site: a paced, retrying fetcher over
// a swappable page source, the page parser, the hierarchy walker and the run reporter.
package mhraparser

import (
	"context"
	"fmt"
	"time"

	"github.com/giygas/mhra-extractor/config"
	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
)

// Extractor runs the whole engine for one configuration.
type Extractor struct {
	cfg    *config.Config
	source interfaces.PageSource
	clock  Clock
	now    func() time.Time
}

var _ interfaces.Extractor = (*Extractor)(nil)

// NewExtractor uses source when given, otherwise an HTTPSource built from cfg.
func NewExtractor(cfg *config.Config, source interfaces.PageSource) (*Extractor, error) {
	if source == nil {
		httpSource, err := NewHTTPSource(HTTPSourceOptions{
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.FetchTimeout,
			Headless: cfg.Headless,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create page source: %w", err)
		}
		source = httpSource
	}
	return &Extractor{cfg: cfg, source: source, clock: realClock{}, now: time.Now}, nil
}

// Close releases the page source.
func (e *Extractor) Close() error {
	return e.source.Close()
}

// Extract walks the configured letters. The summary is returned even when the
// walk fails so the caller can report what was attempted.
func (e *Extractor) Extract(ctx context.Context) (*interfaces.ExtractResult, error) {
	versionLabel := e.cfg.VersionLabelAt(e.now())
	reporter := NewReporter(versionLabel, e.cfg.BasePath, e.now)
	fetcher := NewFetcher(e.source, FetcherOptions{
		RequestDelay: e.cfg.RequestDelay,
		MaxAttempts:  e.cfg.MaxAttempts,
		RetryBase:    e.cfg.RetryBase,
		RetryMax:     e.cfg.RetryMax,
		Clock:        e.clock,
		Observer:     reporter,
	})
	walker := NewWalker(fetcher, reporter)
	walker.now = e.now

	letters := e.cfg.SelectedLetters()
	logging.Info("Starting extraction",
		"base_url", e.cfg.BaseURL,
		"letters", len(letters),
		"max_substances_per_letter", e.cfg.MaxSubstancesPerLetter,
		"max_products_per_substance", e.cfg.MaxProductsPerSubstance,
		"request_delay", e.cfg.RequestDelay,
		"version", versionLabel,
	)

	cat, err := walker.Walk(ctx, WalkConfig{
		BaseURL:                 e.cfg.BaseURL,
		Letters:                 letters,
		MaxSubstancesPerLetter:  e.cfg.MaxSubstancesPerLetter,
		MaxProductsPerSubstance: e.cfg.MaxProductsPerSubstance,
	})
	summary := reporter.Summary()
	result := &interfaces.ExtractResult{Catalog: cat, Summary: summary}
	if err != nil {
		return result, err
	}

	logging.Info("Extraction completed",
		"run_id", summary.RunID,
		"letters_visited", summary.LettersVisited,
		"substances", summary.SubstancesFound,
		"products", summary.ProductsFound,
		"documents", summary.DocumentsFound,
		"duplicates_skipped", summary.DuplicatesSkipped,
		"failures_tolerated", summary.FetchFailuresTolerated,
		"duration_seconds", summary.DurationSeconds,
	)
	return result, nil
}
