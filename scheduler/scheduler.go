// Package scheduler runs the extraction pipeline on a daily schedule: extract,
// audit, write the snapshot, and optionally upload it. It records every outcome
// in the data store so the status server can report on it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// ErrRunInProgress is returned by RunOnce when another run holds the data store.
var ErrRunInProgress = errors.New("run already in progress")

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Pipeline groups the collaborators of one run. Uploader may be nil.
type Pipeline struct {
	Extractor interfaces.Extractor
	Validator interfaces.CatalogValidator
	Writer    interfaces.SnapshotWriter
	Uploader  interfaces.Uploader
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	Summary  entities.RunSummary
	Report   *interfaces.DataQualityReport
	Write    *interfaces.WriteResult
	Uploaded bool
}

// Scheduler handles periodic runs and health monitoring using dependency injection
type Scheduler struct {
	ctx       context.Context
	dataStore interfaces.DataStore
	pipeline  Pipeline
	at        []string
	scheduler *gocron.Scheduler
}

// NewScheduler creates a scheduler. Runs started by it use ctx, and at lists
// the daily "HH:MM" run times.
func NewScheduler(ctx context.Context, dataStore interfaces.DataStore, pipeline Pipeline, at []string) *Scheduler {
	return &Scheduler{
		ctx:       ctx,
		dataStore: dataStore,
		pipeline:  pipeline,
		at:        at,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start schedules the daily runs, performs an initial run and starts health
// monitoring. A failed initial run is recorded but does not stop the scheduler.
func (s *Scheduler) Start() error {
	if len(s.at) == 0 {
		return fmt.Errorf("no run times configured")
	}

	_, err := s.scheduler.Every(1).Days().At(strings.Join(s.at, ";")).Do(func() {
		if _, err := s.RunOnce(s.ctx); err != nil {
			logging.Error("Scheduled run failed", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule runs", "error", err)
		return fmt.Errorf("failed to schedule runs: %w", err)
	}

	if _, err := s.RunOnce(s.ctx); err != nil {
		logging.Error("Initial run failed", "error", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Scheduler started", "at", s.at)

	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RunOnce performs one complete run. When extraction fails nothing is written
// and the failure is recorded in the data store.
func (s *Scheduler) RunOnce(ctx context.Context) (*RunResult, error) {
	// Prevent concurrent runs
	if !s.dataStore.BeginUpdate() {
		logging.Info("Run already in progress, skipping...")
		return nil, ErrRunInProgress
	}
	defer s.dataStore.EndUpdate()

	logging.Info(fmt.Sprintf("Starting run at: %s", time.Now().Format(time.RFC3339)))
	start := time.Now()

	extracted, err := s.pipeline.Extractor.Extract(ctx)
	if err != nil {
		s.dataStore.RecordFailure(err)
		result := &RunResult{}
		if extracted != nil {
			result.Summary = extracted.Summary
		}
		return result, fmt.Errorf("extraction failed: %w", err)
	}

	result := &RunResult{Summary: extracted.Summary}
	if s.pipeline.Validator != nil {
		result.Report = s.pipeline.Validator.ReportDataQuality(extracted.Catalog, extracted.Summary)
	}

	result.Write, err = s.pipeline.Writer.Write(ctx, extracted.Catalog, extracted.Summary)
	if err != nil {
		s.dataStore.RecordFailure(err)
		return result, fmt.Errorf("snapshot write failed: %w", err)
	}

	if s.pipeline.Uploader != nil {
		if err := s.pipeline.Uploader.Upload(ctx, result.Write, extracted.Summary.VersionLabel); err != nil {
			s.dataStore.RecordFailure(err)
			return result, fmt.Errorf("upload failed: %w", err)
		}
		result.Uploaded = true
	}

	s.dataStore.UpdateData(result.Summary, result.Report, result.Write)

	logging.Info("Run completed",
		"duration", time.Since(start).String(),
		"run_id", result.Summary.RunID,
		"documents", result.Summary.DocumentsFound,
		"version_dir", result.Write.VersionDir,
	)
	return result, nil
}

// startHealthMonitoring warns when no run has succeeded for over 25 hours
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				lastUpdate := s.dataStore.GetLastUpdated()
				if time.Since(lastUpdate) > 25*time.Hour {
					logging.Warn("No successful run in over 25 hours", "last_error", s.dataStore.GetLastError())
				}
			}
		}
	}()
}
