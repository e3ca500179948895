// Package health evaluates the state of the scheduled extraction runs.
package health

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/mhra-extractor/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore     interfaces.DataStore
	scheduleTimes []string
	now           func() time.Time
}

// NewHealthChecker creates a new health checker for runs scheduled at the given
// "HH:MM" times
func NewHealthChecker(dataStore interfaces.DataStore, scheduleTimes []string) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore:     dataStore,
		scheduleTimes: scheduleTimes,
		now:           time.Now,
	}
}

// HealthCheck returns health data for the /health endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	summary, hasRun := h.dataStore.GetLastSummary()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()
	lastError := h.dataStore.GetLastError()
	report := h.dataStore.GetLastReport()

	dataAge := h.now().Sub(lastUpdate)

	switch {
	case !hasRun && isUpdating:
		status = "starting"
		httpStatus = http.StatusServiceUnavailable

	case !hasRun:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour, lastError != "", report.HasViolations():
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"is_updating": isUpdating,
		"next_update": h.CalculateNextUpdate().Format(time.RFC3339),
	}
	if lastError != "" {
		data["last_error"] = lastError
	}
	if hasRun {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
		data["data_age_hours"] = math.Round(dataAge.Hours()*10) / 10
		data["run_id"] = summary.RunID
		data["version_label"] = summary.VersionLabel
		data["letters_visited"] = summary.LettersVisited
		data["substances"] = summary.SubstancesFound
		data["products"] = summary.ProductsFound
		data["documents"] = summary.DocumentsFound
		data["failures_tolerated"] = summary.FetchFailuresTolerated
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled run time
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return NextRun(h.now(), h.scheduleTimes)
}

// NextRun returns the first of the daily "HH:MM" times strictly after now, in now's
// location. Malformed entries are ignored; with none left the zero time is returned.
func NextRun(now time.Time, times []string) time.Time {
	var next time.Time
	for _, at := range times {
		hour, minute, ok := parseClock(at)
		if !ok {
			continue
		}
		candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if next.IsZero() || candidate.Before(next) {
			next = candidate
		}
	}
	return next
}

func parseClock(value string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(strings.TrimSpace(value), ":")
	if !found {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
