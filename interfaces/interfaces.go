// Package interfaces defines the core abstractions of the MHRA extractor
// to improve testability and keep the engine independent of its I/O collaborators.
package interfaces

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/giygas/mhra-extractor/catalog"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// TargetKind tells the page source what kind of content a request expects.
type TargetKind string

const (
	TargetListing  TargetKind = "listing"
	TargetDocument TargetKind = "document"
)

// Target describes one outbound request. A non-nil Form turns it into a
// form submission to URL.
type Target struct {
	URL  string
	Kind TargetKind
	Form url.Values
}

// PageSource returns the final rendered content of a target. The concrete
// implementation (plain HTTP, headless browser) is irrelevant to the engine.
type PageSource interface {
	Fetch(ctx context.Context, target Target) ([]byte, error)
	Close() error
}

// PageFetcher is the rate-limited, retrying view of a PageSource used by the walker.
type PageFetcher interface {
	Fetch(ctx context.Context, target Target) ([]byte, error)
}

// ExtractResult is what a single extraction run produces.
type ExtractResult struct {
	Catalog *catalog.Catalog
	Summary entities.RunSummary
}

// Extractor runs the crawl-and-extraction engine once.
type Extractor interface {
	// Extract walks the source and returns the finalized catalog. On error the
	// result may still carry the summary of what was attempted.
	Extract(ctx context.Context) (*ExtractResult, error)
}

// WriteResult lists the files produced by a snapshot write.
type WriteResult struct {
	LatestDir  string
	VersionDir string
	Files      []string
}

// SnapshotWriter serializes a finalized catalog to the four artifacts and manages
// the versioned directory copies.
type SnapshotWriter interface {
	Write(ctx context.Context, cat *catalog.Catalog, summary entities.RunSummary) (*WriteResult, error)
}

// Uploader publishes written artifacts to remote storage.
type Uploader interface {
	Upload(ctx context.Context, result *WriteResult, versionLabel string) error
}

// DataQualityReport summarises invariant violations found after a walk.
type DataQualityReport struct {
	DuplicateSubstances  []string // "letter/name" pairs sharing a normalised key
	DuplicateProducts    []string // "substance/key" pairs sharing a composite key
	DuplicateDocumentURL []string
	EmptyLetters         int
	SubstancesNoProducts int
	ProductsNoDocuments  int
	DocumentsOther       int
	DocumentCountDelta   int // documents_found minus flat index length
}

// HasViolations reports whether the catalog broke a structural invariant.
// Empty nodes are coverage gaps, not violations.
func (r *DataQualityReport) HasViolations() bool {
	if r == nil {
		return false
	}
	return len(r.DuplicateSubstances) > 0 ||
		len(r.DuplicateProducts) > 0 ||
		len(r.DuplicateDocumentURL) > 0 ||
		r.DocumentCountDelta != 0
}

// CatalogValidator audits a finalized catalog against its run summary.
type CatalogValidator interface {
	ReportDataQuality(cat *catalog.Catalog, summary entities.RunSummary) *DataQualityReport
}

// DataStore holds the state shared between the scheduler and the status server.
// It provides thread-safe access with atomic operations.
type DataStore interface {
	GetLastSummary() (entities.RunSummary, bool)
	GetLastReport() *DataQualityReport
	GetLastWrite() *WriteResult
	GetLastError() string
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	UpdateData(summary entities.RunSummary, report *DataQualityReport, write *WriteResult)
	RecordFailure(err error)
	BeginUpdate() bool
	EndUpdate()
}

// Scheduler defines the contract for periodic runs.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns the run health status, its details and the HTTP status to answer with
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled run time
	CalculateNextUpdate() time.Time
}

// HTTPHandler serves the run status endpoints.
type HTTPHandler interface {
	HealthCheck(w http.ResponseWriter, r *http.Request)
	ServeSummary(w http.ResponseWriter, r *http.Request)
	ServeReport(w http.ResponseWriter, r *http.Request)
}
