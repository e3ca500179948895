package entities

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/purell"
)

// DocumentType is the regulatory document category.
type DocumentType string

const (
	DocumentSPC   DocumentType = "SPC"
	DocumentPIL   DocumentType = "PIL"
	DocumentLabel DocumentType = "LABEL"
	DocumentOther DocumentType = "OTHER"
)

// Document is a regulatory PDF attached to a Product.
type Document struct {
	URL              string       `json:"doc_url"`
	Type             DocumentType `json:"doc_type"`
	TypeLabel        string       `json:"doc_type_label"`
	Title            string       `json:"title"`
	Subtitle         string       `json:"subtitle,omitempty"`
	FileSizeKB       *int         `json:"file_size_kb"`
	ActiveSubstances []string     `json:"active_substances"`
	ProductName      string       `json:"product_label"`
	ProductURL       string       `json:"product_url"`
	CollectedAt      time.Time    `json:"collected_at_utc"`
}

// DocumentInput carries the raw fields read from a product page.
type DocumentInput struct {
	URL              string
	TypeLabel        string
	Title            string
	Subtitle         string
	FileSizeKB       *int
	ActiveSubstances []string
	ProductName      string
	ProductURL       string
	CollectedAt      time.Time
}

// NewDocument requires an absolute http(s) URL. The title falls back to the product
// name and the type is classified from the label, the file name and the title.
func NewDocument(in DocumentInput) (Document, error) {
	rawURL := strings.TrimSpace(in.URL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Document{}, fmt.Errorf("%w: document url %q", ErrInvalidRecord, in.URL)
	}

	title := NormalizeWhitespace(in.Title)
	if title == "" {
		title = NormalizeWhitespace(in.ProductName)
	}
	substances := make([]string, 0, len(in.ActiveSubstances))
	for _, s := range in.ActiveSubstances {
		if s = NormalizeWhitespace(s); s != "" {
			substances = append(substances, s)
		}
	}
	typeLabel := NormalizeWhitespace(in.TypeLabel)

	return Document{
		URL:              rawURL,
		Type:             ClassifyDocument(typeLabel, rawURL, title),
		TypeLabel:        typeLabel,
		Title:            title,
		Subtitle:         NormalizeWhitespace(in.Subtitle),
		FileSizeKB:       in.FileSizeKB,
		ActiveSubstances: substances,
		ProductName:      NormalizeWhitespace(in.ProductName),
		ProductURL:       NormalizeWhitespace(in.ProductURL),
		CollectedAt:      in.CollectedAt.UTC(),
	}, nil
}

// Key is the global identity of the document: its normalised URL.
func (d Document) Key() string {
	return DocumentKey(d.URL)
}

// DocumentKey normalises a document or product URL for deduplication.
func DocumentKey(rawURL string) string {
	normalized, err := purell.NormalizeURLString(strings.TrimSpace(rawURL),
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveDirectoryIndex|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	return normalized
}

var tokenSplitRegex = regexp.MustCompile(`[^a-z0-9]+`)

var documentTokens = map[string]DocumentType{
	"spc":       DocumentSPC,
	"smpc":      DocumentSPC,
	"pil":       DocumentPIL,
	"leaflet":   DocumentPIL,
	"label":     DocumentLabel,
	"labels":    DocumentLabel,
	"labelling": DocumentLabel,
	"labeling":  DocumentLabel,
	"lbl":       DocumentLabel,
}

var documentPhrases = []struct {
	phrase string
	kind   DocumentType
}{
	{"summary of product characteristics", DocumentSPC},
	{"patient information", DocumentPIL},
	{"package leaflet", DocumentPIL},
}

// ClassifyDocument maps the site's type label, then the file name, then the title to
// a DocumentType. Anything unrecognised is DocumentOther.
func ClassifyDocument(typeLabel, rawURL, title string) DocumentType {
	candidates := []string{typeLabel, fileName(rawURL), title}
	for _, candidate := range candidates {
		if kind := classifyText(candidate); kind != DocumentOther {
			return kind
		}
	}
	return DocumentOther
}

func classifyText(text string) DocumentType {
	lower := strings.ToLower(text)
	for _, p := range documentPhrases {
		if strings.Contains(lower, p.phrase) {
			return p.kind
		}
	}
	for _, token := range tokenSplitRegex.Split(lower, -1) {
		if kind, ok := documentTokens[token]; ok {
			return kind
		}
	}
	return DocumentOther
}

func fileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	return path.Base(u.Path)
}
