package mhraparser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/mhra-extractor/catalog"
	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

const defaultMaxPages = 200

// WalkConfig drives one traversal. Zero caps mean no cap.
type WalkConfig struct {
	BaseURL                 string
	Letters                 []string // empty means every letter
	MaxSubstancesPerLetter  int
	MaxProductsPerSubstance int
	MaxPagesPerListing      int
}

// Walker traverses letter, substance, product, document in depth-first order,
// one request at a time, committing into a catalog.Builder.
type Walker struct {
	fetcher  interfaces.PageFetcher
	reporter *Reporter
	now      func() time.Time
}

// NewWalker returns a walker reporting to reporter, which may be nil.
func NewWalker(fetcher interfaces.PageFetcher, reporter *Reporter) *Walker {
	return &Walker{fetcher: fetcher, reporter: reporter, now: time.Now}
}

// LetterIndexURL is the substance index page of a letter.
func LetterIndexURL(baseURL, letter string) string {
	return strings.TrimRight(baseURL, "/") + "/substance-index/?letter=" + url.QueryEscape(letter)
}

// Walk visits every configured letter. A failed letter, substance or product is
// left out and recorded; the walk carries on with its siblings. It stops only when
// ctx ends, returning the catalog of the letters completed so far with the error,
// or when no letter at all could be fetched (ErrSourceUnreachable).
func (w *Walker) Walk(ctx context.Context, cfg WalkConfig) (*catalog.Catalog, error) {
	letters := cfg.Letters
	if len(letters) == 0 {
		letters = entities.Letters
	}
	if cfg.MaxPagesPerListing <= 0 {
		cfg.MaxPagesPerListing = defaultMaxPages
	}

	w.reporter.Start(len(letters))
	defer w.reporter.Finish()

	builder := catalog.NewBuilder()
	failed := 0
	var lastErr error
	for _, id := range letters {
		if err := ctx.Err(); err != nil {
			w.reporter.Fatal(err)
			return builder.Finalize(), fmt.Errorf("walk stopped before letter %s: %w", id, err)
		}

		ref, err := w.walkLetter(ctx, builder, id, cfg)
		if err == nil {
			continue
		}
		if fatal(ctx, err) {
			if ref != nil {
				removed, _ := builder.Discard(*ref)
				w.reporter.Discarded(removed)
			}
			w.reporter.Fatal(err)
			return builder.Finalize(), fmt.Errorf("walk stopped during letter %s: %w", id, err)
		}
		failed++
		lastErr = err
		w.reporter.SubtreeFailed(entities.LevelLetter, id, LetterIndexURL(cfg.BaseURL, id), err)
	}

	if failed > 0 && failed == len(letters) {
		w.reporter.Fatal(ErrSourceUnreachable)
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, lastErr)
	}
	return builder.Finalize(), nil
}

// walkLetter returns the committed letter ref, if any, so that a fatal error
// further down can discard it.
func (w *Walker) walkLetter(ctx context.Context, b *catalog.Builder, id string, cfg WalkConfig) (*catalog.LetterRef, error) {
	letter, err := entities.NewLetter(id)
	if err != nil {
		return nil, err
	}

	limit := newCapCounter(cfg.MaxSubstancesPerLetter)
	var batch []entities.Substance
	_, err = w.fetchListing(ctx, entities.LevelLetter, LetterIndexURL(cfg.BaseURL, letter.ID), interfaces.TargetListing, cfg.MaxPagesPerListing,
		func(p *Page) bool {
			for _, l := range p.Substances {
				if limit.full() {
					break
				}
				s, err := entities.NewSubstance(l.Name, l.URL, letter.ID)
				if err != nil {
					w.reporter.InvalidRecord(entities.LevelSubstance, err)
					continue
				}
				batch = append(batch, s)
				limit.add(s.Key())
			}
			return limit.full()
		})
	if err != nil {
		return nil, err
	}

	ref, err := b.AddLetter(letter)
	if err != nil {
		return nil, err
	}
	w.reporter.LetterVisited()

	res, err := b.AddSubstances(ref, batch)
	if err != nil {
		return &ref, err
	}
	w.reporter.Committed(entities.LevelSubstance, len(res.Committed))
	w.reporter.Duplicates(entities.LevelSubstance, res.Duplicates)
	logging.Info("Letter indexed", "letter", letter.ID, "substances", len(res.Committed))

	for _, sref := range res.Committed {
		err := w.walkSubstance(ctx, b, sref, cfg)
		if err == nil {
			continue
		}
		if fatal(ctx, err) {
			return &ref, err
		}
		removed, _ := b.Discard(sref)
		w.reporter.Discarded(removed)
		w.reporter.SubtreeFailed(entities.LevelSubstance, sref.Name(), sref.Entity().SourceURL, err)
	}
	return &ref, nil
}

func (w *Walker) walkSubstance(ctx context.Context, b *catalog.Builder, sref catalog.SubstanceRef, cfg WalkConfig) error {
	substance := sref.Entity()

	limit := newCapCounter(cfg.MaxProductsPerSubstance)
	var batch []entities.Product
	_, err := w.fetchListing(ctx, entities.LevelSubstance, substance.SourceURL, interfaces.TargetListing, cfg.MaxPagesPerListing,
		func(p *Page) bool {
			for _, s := range p.Products {
				if limit.full() {
					break
				}
				product, err := entities.NewProduct(s.Name, s.LicenseHolder, s.LicenseID, s.URL, substance.Name)
				if err != nil {
					w.reporter.InvalidRecord(entities.LevelProduct, err)
					continue
				}
				batch = append(batch, product)
				limit.add(product.Key())
			}
			return limit.full()
		})
	if err != nil {
		return err
	}

	res, err := b.AddProducts(sref, batch)
	if err != nil {
		return err
	}
	w.reporter.Committed(entities.LevelProduct, len(res.Committed))
	w.reporter.Duplicates(entities.LevelProduct, res.Duplicates)
	logging.Debug("Substance listed", "substance", substance.Name, "products", len(res.Committed))

	for _, pref := range res.Committed {
		err := w.walkProduct(ctx, b, pref, cfg)
		if err == nil {
			continue
		}
		if fatal(ctx, err) {
			return err
		}
		removed, _ := b.Discard(pref)
		w.reporter.Discarded(removed)
		w.reporter.SubtreeFailed(entities.LevelProduct, pref.Entity().Name, pref.Entity().SourceURL, err)
	}
	return nil
}

func (w *Walker) walkProduct(ctx context.Context, b *catalog.Builder, pref catalog.ProductRef, cfg WalkConfig) error {
	product := pref.Entity()

	pages, err := w.fetchListing(ctx, entities.LevelProduct, product.SourceURL, interfaces.TargetDocument, cfg.MaxPagesPerListing, nil)
	if err != nil {
		return err
	}

	collectedAt := w.now().UTC()
	var batch []entities.Document
	for _, p := range pages {
		for _, l := range p.Documents {
			doc, err := entities.NewDocument(entities.DocumentInput{
				URL:              l.URL,
				TypeLabel:        l.TypeLabel,
				Title:            l.Title,
				Subtitle:         l.Subtitle,
				FileSizeKB:       l.FileSizeKB,
				ActiveSubstances: l.ActiveSubstances,
				ProductName:      product.Name,
				ProductURL:       product.SourceURL,
				CollectedAt:      collectedAt,
			})
			if err != nil {
				w.reporter.InvalidRecord(entities.LevelDocument, err)
				continue
			}
			batch = append(batch, doc)
		}
	}

	res, err := b.AddDocuments(pref, batch)
	if err != nil {
		return err
	}
	w.reporter.Committed(entities.LevelDocument, len(res.Committed))
	w.reporter.Duplicates(entities.LevelDocument, res.Duplicates)
	return nil
}

// fetchListing fetches startURL and its continuation pages. It stops when a page
// has no continuation, when a continuation repeats an earlier page, after
// maxPages, or when enough reports true for the page just parsed.
func (w *Walker) fetchListing(ctx context.Context, level entities.Level, startURL string, kind interfaces.TargetKind, maxPages int, enough func(*Page) bool) ([]*Page, error) {
	if startURL == "" {
		return nil, fmt.Errorf("%s has no url", level)
	}

	seen := make(map[string]struct{})
	var pages []*Page
	for next := startURL; next != "" && len(pages) < maxPages; {
		if _, loop := seen[next]; loop {
			logging.Debug("Pagination loop, stopping", "level", level, "url", next)
			break
		}
		seen[next] = struct{}{}

		page, err := w.fetchPage(ctx, level, next, kind)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
		if enough != nil && enough(page) {
			break
		}
		next = page.Next
	}
	return pages, nil
}

func (w *Walker) fetchPage(ctx context.Context, level entities.Level, pageURL string, kind interfaces.TargetKind) (*Page, error) {
	body, err := w.fetcher.Fetch(ctx, interfaces.Target{URL: pageURL, Kind: kind})
	if err != nil {
		return nil, err
	}
	page, err := ParsePage(level, pageURL, body)
	if err != nil {
		return nil, err
	}

	// documents stay hidden until the disclaimer is acknowledged
	if page.Disclaimer != nil && len(page.Documents) == 0 {
		logging.Debug("Acknowledging disclaimer", "url", pageURL)
		form := page.Disclaimer
		body, err := w.fetcher.Fetch(ctx, interfaces.Target{URL: form.Action, Kind: kind, Form: form.Fields})
		if err != nil {
			return nil, err
		}
		acknowledged, err := ParsePage(level, pageURL, body)
		if err != nil {
			return nil, err
		}
		if acknowledged.Next == "" {
			acknowledged.Next = page.Next
		}
		page = acknowledged
	}
	return page, nil
}

// fatal reports whether err must end the walk rather than skip a subtree.
func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return !fetchErr.Skippable()
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, catalog.ErrCatalogFinalized)
}

// capCounter counts unique sibling keys against a sampling cap.
type capCounter struct {
	limit int
	keys  map[string]struct{}
}

func newCapCounter(limit int) *capCounter {
	return &capCounter{limit: limit, keys: make(map[string]struct{})}
}

func (c *capCounter) add(key string) {
	c.keys[key] = struct{}{}
}

func (c *capCounter) full() bool {
	return c.limit > 0 && len(c.keys) >= c.limit
}
