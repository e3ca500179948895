// Package handlers provides the HTTP handlers of the extractor status server.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// Minimum response size to consider compression (1KB)
const compressionThreshold = 1024

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	healthChecker interfaces.HealthChecker
}

var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, healthChecker interfaces.HealthChecker) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		healthChecker: healthChecker,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// SummaryResponse is the last completed run.
type SummaryResponse struct {
	Summary  entities.RunSummary     `json:"summary"`
	Snapshot *interfaces.WriteResult `json:"snapshot,omitempty"`
}

// ReportResponse is the data-quality audit of the last completed run.
type ReportResponse struct {
	RunID         string                        `json:"run_id"`
	HasViolations bool                          `json:"has_violations"`
	Report        *interfaces.DataQualityReport `json:"report"`
	LastError     string                        `json:"last_error,omitempty"`
}

// RespondWithJSON writes a JSON response, gzip compressed when it is large and
// the client accepts it.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err, "payload_type", fmt.Sprintf("%T", payload))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))

	acceptsGzip := r != nil && strings.Contains(strings.ToLower(r.Header.Get("Accept-Encoding")), "gzip")
	if len(data) >= compressionThreshold && acceptsGzip {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		w.WriteHeader(code)
		gz := gzip.NewWriter(w)
		defer gz.Close()
		gz.Write(data)
		logging.Debug("Compressed JSON response", "original_size", len(data))
		return
	}

	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, r *http.Request, code int, message string) {
	RespondWithJSON(w, r, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// HealthCheck returns the run health together with process statistics
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, details, httpStatus := h.healthChecker.HealthCheck()

	var uptime time.Duration
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	RespondWithJSON(w, r, httpStatus, HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          details,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	})
}

// ServeSummary returns the summary of the last completed run
func (h *HTTPHandlerImpl) ServeSummary(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.dataStore.GetLastSummary()
	if !ok {
		RespondWithError(w, r, http.StatusNotFound, "No completed run yet")
		return
	}
	RespondWithJSON(w, r, http.StatusOK, SummaryResponse{
		Summary:  summary,
		Snapshot: h.dataStore.GetLastWrite(),
	})
}

// ServeReport returns the data-quality report of the last completed run
func (h *HTTPHandlerImpl) ServeReport(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.dataStore.GetLastSummary()
	if !ok {
		RespondWithError(w, r, http.StatusNotFound, "No completed run yet")
		return
	}
	report := h.dataStore.GetLastReport()
	RespondWithJSON(w, r, http.StatusOK, ReportResponse{
		RunID:         summary.RunID,
		HasViolations: report.HasViolations(),
		Report:        report,
		LastError:     h.dataStore.GetLastError(),
	})
}
