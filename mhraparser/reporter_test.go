package mhraparser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/giygas/mhra-extractor/catalog"
	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

func TestNilReporterIsSafe(t *testing.T) {
	var r *Reporter
	require.NotPanics(t, func() {
		r.Start(3)
		r.LetterVisited()
		r.Committed(entities.LevelProduct, 2)
		r.Duplicates(entities.LevelProduct, 1)
		r.Discarded(catalog.Removed{Products: 1})
		r.InvalidRecord(entities.LevelDocument, errors.New("bad"))
		r.SubtreeFailed(entities.LevelSubstance, "X", "https://mhra.test/x", errors.New("boom"))
		r.Fatal(errors.New("stop"))
		r.FetchAttempt(interfaces.Target{}, 1, time.Millisecond, nil)
		r.FetchRetry(interfaces.Target{}, 1, time.Second, nil)
		r.Finish()
	})
	require.NotNil(t, r.Summary().Failures)
}

func TestReporterCounts(t *testing.T) {
	clock := newFakeClock()
	r := NewReporter("4.0.05.01.2026", "public", clock.Now)
	r.Start(2)
	r.LetterVisited()
	r.Committed(entities.LevelSubstance, 3)
	r.Committed(entities.LevelProduct, 5)
	r.Committed(entities.LevelDocument, 9)
	r.Duplicates(entities.LevelDocument, 2)
	r.Discarded(catalog.Removed{Substances: 1, Products: 2, Documents: 4})
	r.InvalidRecord(entities.LevelDocument, errors.New("no url"))
	r.SubtreeFailed(entities.LevelLetter, "B", "https://mhra.test/substance-index/?letter=B", errors.New("unparseable"))
	clock.now = clock.now.Add(90 * time.Second)
	r.Finish()

	s := r.Summary()
	require.NotEmpty(t, s.RunID)
	require.Equal(t, "4.0.05.01.2026", s.VersionLabel)
	require.Equal(t, 2, s.LettersRequested)
	require.Equal(t, 1, s.LettersVisited)
	require.Equal(t, 1, s.LettersFailed)
	require.Equal(t, 2, s.SubstancesFound)
	require.Equal(t, 3, s.ProductsFound)
	require.Equal(t, 5, s.DocumentsFound)
	require.Equal(t, 2, s.DuplicatesSkipped)
	require.Equal(t, 1, s.InvalidRecordsSkipped)
	require.Equal(t, 1, s.FetchFailuresTolerated)
	require.Equal(t, "parse", s.Failures[0].Kind)
	require.Equal(t, 90.0, s.DurationSeconds)
}

func TestReporterSummaryIsACopy(t *testing.T) {
	r := NewReporter("v", "public", nil)
	r.SubtreeFailed(entities.LevelProduct, "P", "https://mhra.test/p", errors.New("x"))

	s := r.Summary()
	s.Failures[0].Name = "changed"
	require.Equal(t, "P", r.Summary().Failures[0].Name)
}
