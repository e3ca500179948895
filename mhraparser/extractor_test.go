package mhraparser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/giygas/mhra-extractor/config"
)

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:          testBaseURL,
		MaxAttempts:      1,
		RetryBase:        time.Second,
		RetryMax:         8 * time.Second,
		VersionPrefix:    "4.0",
		VersionLabel:     "4.0.01.01.2026",
		AutoVersionLabel: true,
		OutputDir:        "public",
		BasePath:         "public",
		Letters:          []string{"A"},
	}
}

func newTestExtractor(t *testing.T, cfg *config.Config, source *fakeSource) *Extractor {
	t.Helper()
	e, err := NewExtractor(cfg, source)
	require.NoError(t, err)
	clock := newFakeClock()
	e.clock = clock
	e.now = clock.Now
	return e
}

func TestExtract(t *testing.T) {
	s := newSite()
	s.letter("A", "ASPIRIN")
	s.substance("ASPIRIN", products("ASPIRIN", 2)...)

	e := newTestExtractor(t, testConfig(), s.source)
	result, err := e.Extract(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// a derived label follows the day the run starts
	require.Equal(t, "4.0.05.01.2026", result.Summary.VersionLabel)
	require.Equal(t, "public", result.Summary.BasePath)
	require.Equal(t, 2, result.Summary.ProductsFound)
	require.Equal(t, 2, result.Summary.DocumentsFound)
	require.Len(t, result.Catalog.ToFlatDocuments(), 2)
}

func TestExtractExplicitLabel(t *testing.T) {
	s := newSite()
	s.letter("A")

	cfg := testConfig()
	cfg.VersionLabel = "release-7"
	cfg.AutoVersionLabel = false

	result, err := newTestExtractor(t, cfg, s.source).Extract(context.Background())
	require.NoError(t, err)
	require.Equal(t, "release-7", result.Summary.VersionLabel)
	require.Equal(t, 1, result.Summary.LettersVisited)
}

func TestExtractUnreachableKeepsSummary(t *testing.T) {
	s := newSite()
	u := LetterIndexURL(testBaseURL, "A")
	s.source.fail[u] = &StatusError{Code: 503, URL: u}

	result, err := newTestExtractor(t, testConfig(), s.source).Extract(context.Background())
	require.ErrorIs(t, err, ErrSourceUnreachable)
	require.NotNil(t, result)
	require.Nil(t, result.Catalog)
	require.Equal(t, 1, result.Summary.LettersFailed)
}

func TestNewExtractorBuildsHTTPSource(t *testing.T) {
	cfg := testConfig()
	e, err := NewExtractor(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &HTTPSource{}, e.source)

	cfg.BaseURL = "not a url"
	_, err = NewExtractor(cfg, nil)
	require.Error(t, err)
}
