package mhraparser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/mhra-extractor/interfaces"
)

const testBaseURL = "https://mhra.test"

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// fakeSource serves pages from a map. Unknown URLs answer 404.
type fakeSource struct {
	pages     map[string]string
	fail      map[string]error // fails on every attempt
	failTimes map[string]int   // 503 this many times, then serve
	onFetch   func(target interfaces.Target)
	clock     *fakeClock
	latency   time.Duration
	calls     []string
	starts    []time.Time
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages:     make(map[string]string),
		fail:      make(map[string]error),
		failTimes: make(map[string]int),
	}
}

func (s *fakeSource) Fetch(ctx context.Context, target interfaces.Target) ([]byte, error) {
	key := target.URL
	if target.Form != nil {
		key = "POST " + target.URL + "?" + target.Form.Encode()
	}
	s.calls = append(s.calls, key)
	if s.clock != nil {
		s.starts = append(s.starts, s.clock.now)
		s.clock.now = s.clock.now.Add(s.latency)
	}
	if s.onFetch != nil {
		s.onFetch(target)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := s.fail[key]; ok {
		return nil, err
	}
	if n := s.failTimes[key]; n > 0 {
		s.failTimes[key] = n - 1
		return nil, &StatusError{Code: 503, URL: key}
	}
	body, ok := s.pages[key]
	if !ok {
		return nil, &StatusError{Code: 404, URL: key}
	}
	return []byte(body), nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) called(u string) bool {
	for _, c := range s.calls {
		if c == u {
			return true
		}
	}
	return false
}

func substanceURL(name string) string {
	return testBaseURL + "/substance/?substance=" + url.QueryEscape(name)
}

func productURL(name string) string {
	return testBaseURL + "/product/?product=" + url.QueryEscape(name)
}

func substanceIndexHTML(names ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><header><a href="/about">About</a></header><nav><ul>`)
	for _, n := range names {
		fmt.Fprintf(&b, `<li class="substance-name"><a href="/substance/?substance=%s">%s</a></li>`, url.QueryEscape(n), n)
	}
	b.WriteString(`</ul></nav></body></html>`)
	return b.String()
}

type productItem struct {
	name    string
	page    string // product= query value, defaults to name
	licence string
}

func productListHTML(items ...productItem) string {
	var b strings.Builder
	b.WriteString(`<html><body><nav><ul>`)
	for _, it := range items {
		page := it.page
		if page == "" {
			page = it.name
		}
		attr := ""
		if it.licence != "" {
			attr = fmt.Sprintf(` data-licence-number="%s"`, it.licence)
		}
		fmt.Fprintf(&b, `<li class="product-name"%s><a href="/product/?product=%s">%s</a></li>`, attr, url.QueryEscape(page), it.name)
	}
	b.WriteString(`</ul></nav></body></html>`)
	return b.String()
}

type docItem struct {
	href  string
	icon  string
	title string
	meta  []string
}

func documentListHTML(docs ...docItem) string {
	var b strings.Builder
	b.WriteString(`<html><body><section class="column results">`)
	for _, d := range docs {
		fmt.Fprintf(&b, `<div class="search-result"><dl><dt class="left"><p class="icon">%s</p></dt><dd class="right"><a href="%s"><p class="title">%s</p></a>`, d.icon, d.href, d.title)
		for _, m := range d.meta {
			fmt.Fprintf(&b, `<p class="metadata">%s</p>`, m)
		}
		b.WriteString(`</dd></dl></div>`)
	}
	b.WriteString(`</section></body></html>`)
	return b.String()
}

// site is a small fixture: letter -> substance -> product list, one SPC per product.
type site struct {
	source *fakeSource
}

func newSite() *site {
	return &site{source: newFakeSource()}
}

func (s *site) letter(id string, substances ...string) {
	s.source.pages[LetterIndexURL(testBaseURL, id)] = substanceIndexHTML(substances...)
}

func (s *site) substance(name string, products ...productItem) {
	s.source.pages[substanceURL(name)] = productListHTML(products...)
	for _, p := range products {
		page := p.page
		if page == "" {
			page = p.name
		}
		if _, exists := s.source.pages[productURL(page)]; exists {
			continue
		}
		s.source.pages[productURL(page)] = documentListHTML(docItem{
			href:  "/docs/" + url.PathEscape(page) + "_SPC.pdf",
			icon:  "SPC",
			title: page,
			meta:  []string{"File size: 100 KB"},
		})
	}
}
