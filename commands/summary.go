package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/giygas/mhra-extractor/scheduler"
)

// renderSummary prints the human summary of a run. runErr is shown as the outcome.
func renderSummary(out io.Writer, result *scheduler.RunResult, runErr error) {
	if result == nil {
		return
	}
	s := result.Summary

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("MHRA extraction run")
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Run ID", s.RunID},
		{"Version", s.VersionLabel},
		{"Letters visited", fmt.Sprintf("%d / %d", s.LettersVisited, s.LettersRequested)},
		{"Letters failed", s.LettersFailed},
		{"Substances", s.SubstancesFound},
		{"Products", s.ProductsFound},
		{"Documents", s.DocumentsFound},
		{"Duplicates skipped", s.DuplicatesSkipped},
		{"Invalid records skipped", s.InvalidRecordsSkipped},
		{"Fetch attempts", s.FetchAttempts},
		{"Fetch retries", s.FetchRetries},
		{"Failures tolerated", s.FetchFailuresTolerated},
		{"Duration", fmt.Sprintf("%.1fs", s.DurationSeconds)},
	})
	if result.Write != nil {
		t.AppendRow(table.Row{"Snapshot", result.Write.VersionDir})
	}
	if result.Report != nil {
		t.AppendRow(table.Row{"Quality violations", result.Report.HasViolations()})
	}
	t.AppendRow(table.Row{"Uploaded", result.Uploaded})

	outcome := "ok"
	if runErr != nil {
		outcome = runErr.Error()
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Outcome", outcome})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(s.Failures) == 0 {
		return
	}
	f := table.NewWriter()
	f.SetOutputMirror(out)
	f.SetTitle("Skipped nodes")
	f.AppendHeader(table.Row{"Level", "Name", "Kind", "Attempts", "Error"})
	for _, failure := range s.Failures {
		f.AppendRow(table.Row{failure.Level, failure.Name, failure.Kind, failure.Attempts, failure.Error})
	}
	f.SetStyle(table.StyleRounded)
	f.Render()
}
