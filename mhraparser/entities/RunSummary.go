package entities

import "time"

// NodeFailure records one subtree that was skipped after its fetch failed.
type NodeFailure struct {
	Level    Level  `json:"level"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// RunSummary aggregates the counters of a single extraction run.
type RunSummary struct {
	RunID                  string        `json:"run_id"`
	VersionLabel           string        `json:"version_label"`
	BasePath               string        `json:"base_path"`
	StartedAt              time.Time     `json:"started_at_utc"`
	FinishedAt             time.Time     `json:"finished_at_utc"`
	DurationSeconds        float64       `json:"duration_seconds"`
	LettersRequested       int           `json:"letters_requested"`
	LettersVisited         int           `json:"letters_visited"`
	LettersFailed          int           `json:"letters_failed"`
	SubstancesFound        int           `json:"substances_found"`
	ProductsFound          int           `json:"products_found"`
	DocumentsFound         int           `json:"documents_found"`
	DuplicatesSkipped      int           `json:"duplicates_skipped"`
	InvalidRecordsSkipped  int           `json:"invalid_records_skipped"`
	FetchAttempts          int           `json:"fetch_attempts"`
	FetchRetries           int           `json:"fetch_retries"`
	FetchFailuresTolerated int           `json:"fetch_failures_tolerated"`
	FetchFailuresFatal     int           `json:"fetch_failures_fatal"`
	Failures               []NodeFailure `json:"failures"`
}
