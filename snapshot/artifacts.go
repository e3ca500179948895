// Package snapshot turns a finalized catalog into the four JSON artifacts of a run,
// writes them to the latest location and the next version folder, and publishes
// them to object storage.
package snapshot

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/giygas/mhra-extractor/catalog"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// Artifact file names.
const (
	HierarchyFile   = "mhra_ultra_3.0.json"
	FlatIndexFile   = "all_pdf_links.json"
	StructureFile   = "mhra_structure_mapping.json"
	CertificateFile = "update_certificate.json"
)

// Files lists the artifacts in write order.
var Files = []string{HierarchyFile, FlatIndexFile, StructureFile, CertificateFile}

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Artifact is one serialized output file.
type Artifact struct {
	Name string
	Data []byte
}

// Options carries what the artifacts need beyond the catalog and the summary.
type Options struct {
	Source      string    // base URL of the crawled site
	GeneratedAt time.Time // defaults to the run's finish time
}

type documentEntry struct {
	URL              string                `json:"doc_url"`
	Type             entities.DocumentType `json:"doc_type"`
	TypeLabel        string                `json:"doc_type_label"`
	Title            string                `json:"title"`
	Subtitle         *string               `json:"subtitle"`
	FileSizeKB       *int                  `json:"file_size_kb"`
	ActiveSubstances []string              `json:"active_substances"`
	ProductLabel     string                `json:"product_label"`
	ProductURL       string                `json:"product_url"`
}

type productEntry struct {
	Label         string          `json:"label"`
	URL           string          `json:"product_url"`
	LicenseHolder string          `json:"license_holder"`
	LicenseID     string          `json:"license_id"`
	Documents     []documentEntry `json:"documents"`
}

type substanceEntry struct {
	Name     string         `json:"name"`
	URL      string         `json:"substance_url"`
	SubDrugs []productEntry `json:"sub_drugs"`
}

type letterEntry struct {
	Letter     string           `json:"letter"`
	Substances []substanceEntry `json:"substances"`
}

type crawlerInfo struct {
	Strategy     string         `json:"strategy"`
	TotalLetters int            `json:"total_letters"`
	Concurrency  map[string]int `json:"concurrency"`
	Features     []string       `json:"features"`
}

type hierarchyDocument struct {
	GeneratedAt string        `json:"generated_at_utc"`
	Source      string        `json:"source"`
	CrawlerInfo crawlerInfo   `json:"crawler_info"`
	Letters     []letterEntry `json:"letters"`
}

type pdfLink struct {
	URL              string                `json:"pdf_url"`
	Type             entities.DocumentType `json:"doc_type"`
	TypeLabel        string                `json:"doc_type_label"`
	Title            string                `json:"title"`
	Subtitle         *string               `json:"subtitle"`
	FileSizeKB       *int                  `json:"file_size_kb"`
	ActiveSubstances []string              `json:"active_substances"`
	ProductLabel     string                `json:"product_label"`
	ProductURL       string                `json:"product_url"`
	FullURL          string                `json:"full_url"`
	CollectedAt      string                `json:"collected_at_utc"`
	Letter           string                `json:"letter"`
	SubstanceName    string                `json:"substance_name"`
	SubstanceURL     string                `json:"substance_url"`
	LicenseHolder    string                `json:"license_holder"`
	LicenseID        string                `json:"license_id"`
}

type flatIndexDocument struct {
	GeneratedAt   string    `json:"generated_at_utc"`
	Source        string    `json:"source"`
	TotalPDFLinks int       `json:"total_pdf_links"`
	PDFLinks      []pdfLink `json:"pdf_links"`
}

type structureMetadata struct {
	Created                  string `json:"created"`
	BasePath                 string `json:"basePath"`
	TotalTopLevelDirectories int    `json:"totalTopLevelDirectories"`
	Structure                string `json:"structure"`
}

// folderEntry maps one hierarchy node to its output folder.
type folderEntry struct {
	Level     entities.Level `json:"level"`
	Letter    string         `json:"letter"`
	Substance string         `json:"substance,omitempty"`
	Product   string         `json:"product,omitempty"`
	Path      string         `json:"path"`
}

type structureDocument struct {
	Metadata  structureMetadata `json:"metadata"`
	Structure *orderedMap       `json:"structure"`
	Folders   []folderEntry     `json:"folders"`
}

type certificateStatistics struct {
	TotalLetters    int `json:"total_letters"`
	TotalSubstances int `json:"total_substances"`
	TotalProducts   int `json:"total_products"`
	TotalPDFs       int `json:"total_pdfs"`
	NewPDFs         int `json:"new_pdfs"`
	UpdatedPDFs     int `json:"updated_pdfs"`
	UnchangedPDFs   int `json:"unchanged_pdfs"`
}

type certificateDocument struct {
	UpdateVersion   string                `json:"update_version"`
	UpdateTimestamp string                `json:"update_timestamp"`
	Statistics      certificateStatistics `json:"statistics"`
	FilesGenerated  []string              `json:"files_generated"`
	RunSummary      entities.RunSummary   `json:"run_summary"`
	Note            string                `json:"note"`
}

// BuildArtifacts serializes the catalog. Every reference in the output is resolved:
// documents carry their absolute URL and full ancestry.
func BuildArtifacts(cat *catalog.Catalog, summary entities.RunSummary, opts Options) ([]Artifact, error) {
	if cat == nil {
		return nil, fmt.Errorf("no catalog to serialize")
	}
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = summary.FinishedAt
	}
	stamp := generatedAt.UTC().Format(timestampLayout)
	tree := cat.ToHierarchy()
	flat := cat.ToFlatDocuments()
	counts := cat.Counts()

	payloads := []struct {
		name string
		v    any
	}{
		{HierarchyFile, buildHierarchy(tree, stamp, opts.Source)},
		{FlatIndexFile, buildFlatIndex(flat, stamp, opts.Source)},
		{StructureFile, buildStructure(tree, stamp, summary.BasePath)},
		{CertificateFile, buildCertificate(counts, stamp, summary)},
	}

	artifacts := make([]Artifact, 0, len(payloads))
	for _, p := range payloads {
		data, err := marshalDocument(p.v)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %s: %w", p.name, err)
		}
		artifacts = append(artifacts, Artifact{Name: p.name, Data: data})
	}
	return artifacts, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func substances(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func buildHierarchy(tree []catalog.LetterView, stamp, source string) hierarchyDocument {
	letters := make([]letterEntry, 0, len(tree))
	for _, l := range tree {
		le := letterEntry{Letter: l.Letter.ID, Substances: make([]substanceEntry, 0, len(l.Substances))}
		for _, s := range l.Substances {
			se := substanceEntry{Name: s.Substance.Name, URL: s.Substance.SourceURL, SubDrugs: make([]productEntry, 0, len(s.Products))}
			for _, p := range s.Products {
				pe := productEntry{
					Label:         p.Product.Name,
					URL:           p.Product.SourceURL,
					LicenseHolder: p.Product.LicenseHolder,
					LicenseID:     p.Product.LicenseID,
					Documents:     make([]documentEntry, 0, len(p.Documents)),
				}
				for _, d := range p.Documents {
					pe.Documents = append(pe.Documents, documentEntry{
						URL:              d.URL,
						Type:             d.Type,
						TypeLabel:        d.TypeLabel,
						Title:            d.Title,
						Subtitle:         optional(d.Subtitle),
						FileSizeKB:       d.FileSizeKB,
						ActiveSubstances: substances(d.ActiveSubstances),
						ProductLabel:     d.ProductName,
						ProductURL:       d.ProductURL,
					})
				}
				se.SubDrugs = append(se.SubDrugs, pe)
			}
			le.Substances = append(le.Substances, se)
		}
		letters = append(letters, le)
	}

	return hierarchyDocument{
		GeneratedAt: stamp,
		Source:      source,
		CrawlerInfo: crawlerInfo{
			Strategy:     "Ultra 3.0 - Full Extraction with Structure",
			TotalLetters: len(tree),
			Concurrency:  map[string]int{"letters": 1, "substances": 1, "products": 1, "documents": 1},
			Features:     []string{"PDF Link Collection", "Hierarchical Structure", "Detailed CLI Output", "Version Tracking"},
		},
		Letters: letters,
	}
}

func buildFlatIndex(flat []catalog.FlatDocument, stamp, source string) flatIndexDocument {
	links := make([]pdfLink, 0, len(flat))
	for _, d := range flat {
		links = append(links, pdfLink{
			URL:              d.URL,
			Type:             d.Type,
			TypeLabel:        d.TypeLabel,
			Title:            d.Title,
			Subtitle:         optional(d.Subtitle),
			FileSizeKB:       d.FileSizeKB,
			ActiveSubstances: substances(d.ActiveSubstances),
			ProductLabel:     d.ProductName,
			ProductURL:       d.ProductURL,
			FullURL:          d.URL,
			CollectedAt:      d.CollectedAt.UTC().Format(timestampLayout),
			Letter:           d.LetterID,
			SubstanceName:    d.SubstanceName,
			SubstanceURL:     d.SubstanceURL,
			LicenseHolder:    d.LicenseHolder,
			LicenseID:        d.LicenseID,
		})
	}
	return flatIndexDocument{GeneratedAt: stamp, Source: source, TotalPDFLinks: len(links), PDFLinks: links}
}

func buildStructure(tree []catalog.LetterView, stamp, basePath string) structureDocument {
	structure := newOrderedMap()
	var folders []folderEntry

	for _, l := range tree {
		letterPath := path.Join(basePath, l.Letter.ID)
		folders = append(folders, folderEntry{Level: entities.LevelLetter, Letter: l.Letter.ID, Path: letterPath})

		substanceMap := newOrderedMap()
		for _, s := range l.Substances {
			substanceFolder := uniqueFolder(substanceMap, s.Substance.Name)
			substancePath := path.Join(letterPath, substanceFolder)
			folders = append(folders, folderEntry{
				Level:     entities.LevelSubstance,
				Letter:    l.Letter.ID,
				Substance: s.Substance.Name,
				Path:      substancePath,
			})

			productMap := newOrderedMap()
			for _, p := range s.Products {
				productFolder := uniqueFolder(productMap, p.Product.Name)
				folders = append(folders, folderEntry{
					Level:     entities.LevelProduct,
					Letter:    l.Letter.ID,
					Substance: s.Substance.Name,
					Product:   p.Product.Name,
					Path:      path.Join(substancePath, productFolder),
				})

				files := make([]string, 0, len(p.Documents))
				for _, d := range p.Documents {
					name := d.Subtitle
					if name == "" {
						name = d.Title
					}
					if name != "" {
						files = append(files, SanitizeFolderName(name))
					}
				}
				productMap.Set(productFolder, files)
			}
			substanceMap.Set(substanceFolder, productMap)
		}
		structure.Set(l.Letter.ID, substanceMap)
	}
	if folders == nil {
		folders = []folderEntry{}
	}

	return structureDocument{
		Metadata: structureMetadata{
			Created:                  stamp,
			BasePath:                 basePath,
			TotalTopLevelDirectories: len(tree),
			Structure:                "Level 1: Letters/Numbers -> Level 2: Drug Names -> Level 3: Formulations -> Level 4: PDF Files",
		},
		Structure: structure,
		Folders:   folders,
	}
}

var unsafeFolderChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]+`)

// SanitizeFolderName makes a node name usable as a single path segment.
func SanitizeFolderName(name string) string {
	name = unsafeFolderChars.ReplaceAllString(name, "_")
	name = strings.Trim(entities.NormalizeWhitespace(name), ". ")
	if name == "" {
		return "_"
	}
	return name
}

// uniqueFolder returns the sanitized name, suffixed " (2)", " (3)"... when a
// sibling already took it.
func uniqueFolder(siblings *orderedMap, name string) string {
	base := SanitizeFolderName(name)
	folder := base
	for n := 2; siblings.Has(folder); n++ {
		folder = fmt.Sprintf("%s (%d)", base, n)
	}
	return folder
}

func buildCertificate(counts catalog.Counts, stamp string, summary entities.RunSummary) certificateDocument {
	return certificateDocument{
		UpdateVersion:   summary.VersionLabel,
		UpdateTimestamp: stamp,
		Statistics: certificateStatistics{
			TotalLetters:    counts.Letters,
			TotalSubstances: counts.Substances,
			TotalProducts:   counts.Products,
			TotalPDFs:       counts.Documents,
			NewPDFs:         counts.Documents,
		},
		FilesGenerated: []string{
			HierarchyFile + " - Hierarchical structure (letters > substances > products > documents)",
			FlatIndexFile + " - Flat list of all PDF links",
			StructureFile + " - Folder structure mapping",
			CertificateFile + " - Run summary and statistics",
		},
		RunSummary: summary,
		Note:       "Data extracted using the automated MHRA crawler.",
	}
}
