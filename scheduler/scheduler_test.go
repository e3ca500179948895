package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/giygas/mhra-extractor/catalog"
	"github.com/giygas/mhra-extractor/data"
	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// mockExtractor for testing scheduler
type mockExtractor struct {
	calls int
	err   error
}

func (m *mockExtractor) Extract(ctx context.Context) (*interfaces.ExtractResult, error) {
	m.calls++
	summary := entities.RunSummary{RunID: "run-1", VersionLabel: "4.0.05.01.2026", LettersVisited: 1}
	if m.err != nil {
		return &interfaces.ExtractResult{Summary: summary}, m.err
	}
	b := catalog.NewBuilder()
	if _, err := b.AddLetter(entities.Letter{ID: "A"}); err != nil {
		return nil, err
	}
	return &interfaces.ExtractResult{Catalog: b.Finalize(), Summary: summary}, nil
}

type mockValidator struct {
	calls int
}

func (m *mockValidator) ReportDataQuality(cat *catalog.Catalog, summary entities.RunSummary) *interfaces.DataQualityReport {
	m.calls++
	return &interfaces.DataQualityReport{EmptyLetters: 1}
}

type mockWriter struct {
	calls int
	err   error
}

func (m *mockWriter) Write(ctx context.Context, cat *catalog.Catalog, summary entities.RunSummary) (*interfaces.WriteResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &interfaces.WriteResult{LatestDir: "public", VersionDir: "public/Version 1", Files: []string{"a.json"}}, nil
}

type mockUploader struct {
	labels []string
	err    error
}

func (m *mockUploader) Upload(ctx context.Context, result *interfaces.WriteResult, versionLabel string) error {
	m.labels = append(m.labels, versionLabel)
	return m.err
}

func TestRunOnce(t *testing.T) {
	store := data.NewDataContainer()
	extractor := &mockExtractor{}
	validator := &mockValidator{}
	writer := &mockWriter{}
	uploader := &mockUploader{}

	s := NewScheduler(context.Background(), store, Pipeline{
		Extractor: extractor,
		Validator: validator,
		Writer:    writer,
		Uploader:  uploader,
	}, []string{"06:00"})

	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !result.Uploaded {
		t.Error("Expected the snapshot to be uploaded")
	}
	if validator.calls != 1 || writer.calls != 1 {
		t.Errorf("Expected one validation and one write, got %d and %d", validator.calls, writer.calls)
	}
	if len(uploader.labels) != 1 || uploader.labels[0] != "4.0.05.01.2026" {
		t.Errorf("Expected upload with the run version label, got %v", uploader.labels)
	}

	summary, ok := store.GetLastSummary()
	if !ok || summary.RunID != "run-1" {
		t.Errorf("Expected run-1 stored, got %+v", summary)
	}
	if store.GetLastReport().EmptyLetters != 1 {
		t.Error("Expected report to be stored")
	}
	if store.GetLastWrite().VersionDir != "public/Version 1" {
		t.Errorf("Expected write result stored, got %+v", store.GetLastWrite())
	}
	if store.IsUpdating() {
		t.Error("Expected update flag released after run")
	}
}

func TestRunOnceWithoutUploader(t *testing.T) {
	store := data.NewDataContainer()
	s := NewScheduler(context.Background(), store, Pipeline{
		Extractor: &mockExtractor{},
		Validator: &mockValidator{},
		Writer:    &mockWriter{},
	}, []string{"06:00"})

	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Uploaded {
		t.Error("Expected no upload without an uploader")
	}
}

func TestRunOnceExtractionFailureWritesNothing(t *testing.T) {
	store := data.NewDataContainer()
	writer := &mockWriter{}
	s := NewScheduler(context.Background(), store, Pipeline{
		Extractor: &mockExtractor{err: errors.New("source unreachable")},
		Validator: &mockValidator{},
		Writer:    writer,
	}, []string{"06:00"})

	result, err := s.RunOnce(context.Background())
	if err == nil {
		t.Fatal("Expected extraction error")
	}
	if writer.calls != 0 {
		t.Errorf("Expected no write after a failed extraction, got %d", writer.calls)
	}
	if result.Summary.RunID != "run-1" {
		t.Errorf("Expected partial summary in result, got %+v", result.Summary)
	}
	if store.GetLastError() == "" {
		t.Error("Expected failure recorded in data store")
	}
	if _, ok := store.GetLastSummary(); ok {
		t.Error("Expected no stored summary after a failed run")
	}
}

func TestRunOnceUploadFailure(t *testing.T) {
	store := data.NewDataContainer()
	s := NewScheduler(context.Background(), store, Pipeline{
		Extractor: &mockExtractor{},
		Validator: &mockValidator{},
		Writer:    &mockWriter{},
		Uploader:  &mockUploader{err: errors.New("permission denied")},
	}, []string{"06:00"})

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("Expected upload error")
	}
	if store.GetLastError() == "" {
		t.Error("Expected upload failure recorded")
	}
}

func TestRunOnceRefusesConcurrentRun(t *testing.T) {
	store := data.NewDataContainer()
	extractor := &mockExtractor{}
	s := NewScheduler(context.Background(), store, Pipeline{
		Extractor: extractor,
		Writer:    &mockWriter{},
	}, []string{"06:00"})

	if !store.BeginUpdate() {
		t.Fatal("Expected to acquire update flag")
	}
	_, err := s.RunOnce(context.Background())
	if !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress, got %v", err)
	}
	if extractor.calls != 0 {
		t.Error("Expected no extraction while another run is in progress")
	}
	store.EndUpdate()
}

func TestStartRejectsEmptySchedule(t *testing.T) {
	extractor := &mockExtractor{}
	s := NewScheduler(context.Background(), data.NewDataContainer(), Pipeline{
		Extractor: extractor,
		Writer:    &mockWriter{},
	}, nil)

	if err := s.Start(); err == nil {
		t.Error("Expected error without run times")
	}
	if extractor.calls != 0 {
		t.Error("Expected no run when the schedule is invalid")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := data.NewDataContainer()
	extractor := &mockExtractor{}
	s := NewScheduler(ctx, store, Pipeline{
		Extractor: extractor,
		Validator: &mockValidator{},
		Writer:    &mockWriter{},
	}, []string{"06:00", "18:00"})

	if err := s.Start(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer s.Stop()

	if extractor.calls != 1 {
		t.Errorf("Expected one initial run, got %d", extractor.calls)
	}
	if _, ok := store.GetLastSummary(); !ok {
		t.Error("Expected initial run stored")
	}
}
