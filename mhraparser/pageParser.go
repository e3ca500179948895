package mhraparser

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// SubstanceLink is a substance entry of a letter index page.
type SubstanceLink struct {
	Name string
	URL  string
}

// ProductSummary is a product entry of a substance page. Missing fields are empty.
type ProductSummary struct {
	Name          string
	URL           string
	LicenseHolder string
	LicenseID     string
}

// DocumentLink is a document result of a product page.
type DocumentLink struct {
	URL              string
	TypeLabel        string
	Title            string
	Subtitle         string
	FileSizeKB       *int
	ActiveSubstances []string
}

// DisclaimerForm is the acknowledgement form shown before the documents of a product.
type DisclaimerForm struct {
	Action string
	Fields url.Values
}

// Page is the parsed content of one listing page, children in document order.
type Page struct {
	Level      entities.Level
	Substances []SubstanceLink
	Products   []ProductSummary
	Documents  []DocumentLink
	// Next is the absolute URL of the following page of the same listing, empty
	// on the last page.
	Next       string
	Disclaimer *DisclaimerForm
}

var (
	fileSizeRegex         = regexp.MustCompile(`(?i)file size\s*:\s*([0-9]+(?:\.[0-9]+)?)\s*(kb|mb)`)
	activeSubstancesRegex = regexp.MustCompile(`(?i)active substances\s*:\s*(.+)`)
	listSeparatorRegex    = regexp.MustCompile(`[,;]`)
)

var nextPageSelectors = []string{"a[rel='next']", "li.next a", "a.next"}

// ParsePage extracts the children of a page at level. pageURL resolves relative
// links. Malformed entries are repaired or skipped; only unusable input is an error.
func ParsePage(level entities.Level, pageURL string, content []byte) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s page %s: %w", level, pageURL, err)
	}

	page := &Page{Level: level}
	switch level {
	case entities.LevelLetter:
		page.Substances = parseSubstances(doc, base)
	case entities.LevelSubstance:
		page.Products = parseProducts(doc, base)
	case entities.LevelProduct:
		page.Documents = parseDocuments(doc, base)
		page.Disclaimer = parseDisclaimer(doc, base)
	default:
		return nil, fmt.Errorf("no parser for level %q", level)
	}
	page.Next = parseNext(doc, base)
	return page, nil
}

func parseSubstances(doc *goquery.Document, base *url.URL) []SubstanceLink {
	sel := doc.Find("nav ul li.substance-name a")
	if len(filterLinks(sel, base, "/substance/")) == 0 {
		sel = doc.Find("nav ul li a")
	}

	var out []SubstanceLink
	for _, a := range filterLinks(sel, base, "/substance/") {
		name := entities.NormalizeWhitespace(nodeText(a.node))
		if name == "" {
			continue
		}
		out = append(out, SubstanceLink{Name: name, URL: a.url})
	}
	return out
}

func parseProducts(doc *goquery.Document, base *url.URL) []ProductSummary {
	sel := doc.Find("nav ul li.product-name a")
	if len(filterLinks(sel, base, "/product/")) == 0 {
		sel = doc.Find("nav ul li a")
	}

	var out []ProductSummary
	for _, a := range filterLinks(sel, base, "/product/") {
		anchor := goquery.NewDocumentFromNode(a.node).Selection
		item := anchor.Closest("li")

		holder := firstAttr(anchor, item, "data-licence-holder", "data-license-holder")
		holderSel := anchor.Find(".licence-holder, .license-holder")
		if holder == "" {
			holder = holderSel.First().Text()
			if holder == "" {
				holder = item.Find(".licence-holder, .license-holder").First().Text()
			}
		}

		// the holder span sits inside some anchors, keep it out of the name
		nameSel := anchor.Clone()
		nameSel.Find(".licence-holder, .license-holder").Remove()
		name := entities.NormalizeWhitespace(nodeText(nameSel.Get(0)))
		if name == "" {
			continue
		}

		licence := firstAttr(anchor, item, "data-licence-number", "data-license-number")
		if licence == "" {
			licence = entities.ExtractLicenseID(nodeText(a.node))
		}

		out = append(out, ProductSummary{
			Name:          name,
			URL:           a.url,
			LicenseHolder: entities.NormalizeWhitespace(holder),
			LicenseID:     licence,
		})
	}
	return out
}

func parseDocuments(doc *goquery.Document, base *url.URL) []DocumentLink {
	var out []DocumentLink
	doc.Find("section.column.results div.search-result").Each(func(_ int, result *goquery.Selection) {
		anchor := result.Find("dd.right a").First()
		href, ok := anchor.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		resolved, err := resolve(base, href)
		if err != nil {
			return
		}

		link := DocumentLink{
			URL:       resolved,
			TypeLabel: selectionText(result.Find("dt.left p.icon")),
			Title:     selectionText(anchor.Find("p.title")),
			Subtitle:  selectionText(anchor.Find("p.subtitle")),
		}
		result.Find("dd.right p.metadata").Each(func(_ int, meta *goquery.Selection) {
			text := entities.NormalizeWhitespace(nodeText(meta.Get(0)))
			lower := strings.ToLower(text)
			if strings.Contains(lower, "file size") {
				link.FileSizeKB = ParseFileSize(text)
			}
			if strings.Contains(lower, "active substances") {
				link.ActiveSubstances = ParseActiveSubstances(text)
			}
		})
		out = append(out, link)
	})
	return out
}

func parseDisclaimer(doc *goquery.Document, base *url.URL) *DisclaimerForm {
	checkbox := doc.Find("#agree-checkbox").First()
	if checkbox.Length() == 0 {
		return nil
	}
	form := checkbox.Closest("form")
	if form.Length() == 0 {
		return nil
	}

	action := base.String()
	if raw, ok := form.Attr("action"); ok && strings.TrimSpace(raw) != "" {
		if resolved, err := resolve(base, strings.TrimSpace(raw)); err == nil {
			action = resolved
		}
	}

	fields := url.Values{}
	form.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		name, _ := input.Attr("name")
		value, hasValue := input.Attr("value")
		switch strings.ToLower(input.AttrOr("type", "text")) {
		case "checkbox", "radio":
			if !hasValue {
				value = "on"
			}
		case "submit", "button", "image", "reset":
			return
		}
		fields.Add(name, value)
	})
	if button := form.Find("button[type='submit'][name]").First(); button.Length() > 0 {
		fields.Add(button.AttrOr("name", ""), button.AttrOr("value", ""))
	}
	return &DisclaimerForm{Action: action, Fields: fields}
}

func parseNext(doc *goquery.Document, base *url.URL) string {
	for _, selector := range nextPageSelectors {
		href, ok := doc.Find(selector).First().Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			continue
		}
		next, err := resolve(base, href)
		if err != nil || next == base.String() {
			continue
		}
		return next
	}
	return ""
}

type link struct {
	node *html.Node
	url  string
}

// filterLinks resolves the href of every anchor in sel and keeps those whose path
// starts with prefix.
func filterLinks(sel *goquery.Selection, base *url.URL, prefix string) []link {
	var out []link
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = strings.TrimSpace(a.Val)
				break
			}
		}
		if href == "" {
			continue
		}
		u, err := base.Parse(href)
		if err != nil || !strings.HasPrefix(u.Path, prefix) {
			continue
		}
		u.Fragment = ""
		out = append(out, link{node: n, url: u.String()})
	}
	return out
}

func resolve(base *url.URL, href string) (string, error) {
	u, err := base.Parse(href)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func firstAttr(anchor, item *goquery.Selection, names ...string) string {
	for _, sel := range []*goquery.Selection{anchor, item} {
		for _, name := range names {
			if v, ok := sel.Attr(name); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func selectionText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return entities.NormalizeWhitespace(nodeText(sel.Get(0)))
}

// nodeText concatenates the text nodes under node, skipping scripts and styles.
func nodeText(node *html.Node) string {
	var buffer bytes.Buffer
	writeText(node, &buffer)
	return buffer.String()
}

func writeText(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		if node.Data == "script" || node.Data == "style" {
			return
		}
		if node.Data == "br" || node.Data == "p" {
			buffer.WriteByte(' ')
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(child, buffer)
	}
}

// ParseFileSize reads "File size: 12.3 KB" or "File size: 1.2 MB" as a rounded
// number of kilobytes.
func ParseFileSize(text string) *int {
	m := fileSizeRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	if strings.EqualFold(m[2], "mb") {
		value *= 1024
	}
	kb := int(math.Round(value))
	return &kb
}

// ParseActiveSubstances splits "Active substances: a, b; c" into its entries.
func ParseActiveSubstances(text string) []string {
	m := activeSubstancesRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var out []string
	for _, part := range listSeparatorRegex.Split(m[1], -1) {
		if part = entities.NormalizeWhitespace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
