// Package data provides thread-safe run state shared between the scheduler and the
// status server. The DataContainer uses atomic values so readers never block a run.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds the outcome of the last run with atomic values
type DataContainer struct {
	lastSummary     atomic.Pointer[entities.RunSummary]
	lastReport      atomic.Pointer[interfaces.DataQualityReport]
	lastWrite       atomic.Pointer[interfaces.WriteResult]
	lastError       atomic.Value // string
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with no completed run
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.lastError.Store("")
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetLastSummary returns the summary of the last successful run, false when
// no run has completed yet
func (dc *DataContainer) GetLastSummary() (entities.RunSummary, bool) {
	summary := dc.lastSummary.Load()
	if summary == nil {
		return entities.RunSummary{}, false
	}
	return *summary, true
}

// GetLastReport returns the data quality report of the last successful run
func (dc *DataContainer) GetLastReport() *interfaces.DataQualityReport {
	return dc.lastReport.Load()
}

// GetLastWrite returns the files written by the last successful run
func (dc *DataContainer) GetLastWrite() *interfaces.WriteResult {
	return dc.lastWrite.Load()
}

// GetLastError returns the error of the last failed run, empty after a success
func (dc *DataContainer) GetLastError() string {
	if v, ok := dc.lastError.Load().(string); ok {
		return v
	}
	return ""
}

// GetLastUpdated returns the timestamp of the last successful run
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a run is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the process start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the process start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData records a successful run
func (dc *DataContainer) UpdateData(summary entities.RunSummary, report *interfaces.DataQualityReport, write *interfaces.WriteResult) {
	summary.Failures = append([]entities.NodeFailure{}, summary.Failures...)
	dc.lastSummary.Store(&summary)
	dc.lastReport.Store(report)
	dc.lastWrite.Store(write)
	dc.lastError.Store("")
	dc.lastUpdated.Store(time.Now())
}

// RecordFailure keeps the previous successful run and remembers why this one failed
func (dc *DataContainer) RecordFailure(err error) {
	if err == nil {
		return
	}
	dc.lastError.Store(err.Error())
}

// BeginUpdate marks the start of a run
// Returns true if the run can proceed, false if another run is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a run
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
