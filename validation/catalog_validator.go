// Package validation audits a finalized catalog after a walk.
package validation

import (
	"github.com/giygas/mhra-extractor/catalog"
	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// maxListed bounds the examples kept per duplicate list.
const maxListed = 10

// CatalogValidatorImpl implements the interfaces.CatalogValidator interface
type CatalogValidatorImpl struct{}

// NewCatalogValidator creates a new catalog validator
func NewCatalogValidator() interfaces.CatalogValidator {
	return &CatalogValidatorImpl{}
}

// ReportDataQuality walks the catalog once and checks the sibling uniqueness rules,
// global document uniqueness and the document count against the summary.
// Violations are logged and reported; they never fail the run.
func (v *CatalogValidatorImpl) ReportDataQuality(cat *catalog.Catalog, summary entities.RunSummary) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		DuplicateSubstances:  []string{},
		DuplicateProducts:    []string{},
		DuplicateDocumentURL: []string{},
	}
	if cat == nil {
		report.DocumentCountDelta = summary.DocumentsFound
		return report
	}

	documentURLs := make(map[string]bool)
	for _, letter := range cat.ToHierarchy() {
		if len(letter.Substances) == 0 {
			report.EmptyLetters++
		}

		substanceKeys := make(map[string]bool)
		for _, sub := range letter.Substances {
			key := sub.Substance.Key()
			if substanceKeys[key] {
				report.DuplicateSubstances = appendLimited(report.DuplicateSubstances, letter.Letter.ID+"/"+sub.Substance.Name)
			}
			substanceKeys[key] = true

			if len(sub.Products) == 0 {
				report.SubstancesNoProducts++
			}

			productKeys := make(map[string]bool)
			for _, p := range sub.Products {
				key := p.Product.Key()
				if productKeys[key] {
					report.DuplicateProducts = appendLimited(report.DuplicateProducts, sub.Substance.Name+"/"+key)
				}
				productKeys[key] = true

				if len(p.Documents) == 0 {
					report.ProductsNoDocuments++
				}
				for _, d := range p.Documents {
					key := d.Key()
					if documentURLs[key] {
						report.DuplicateDocumentURL = appendLimited(report.DuplicateDocumentURL, d.URL)
					}
					documentURLs[key] = true
					if d.Type == entities.DocumentOther {
						report.DocumentsOther++
					}
				}
			}
		}
	}

	report.DocumentCountDelta = summary.DocumentsFound - len(cat.ToFlatDocuments())

	if report.HasViolations() {
		logging.Error("Catalog invariant violated",
			"duplicate_substances", report.DuplicateSubstances,
			"duplicate_products", report.DuplicateProducts,
			"duplicate_document_urls", report.DuplicateDocumentURL,
			"document_count_delta", report.DocumentCountDelta,
		)
	}
	logging.Info("Catalog quality report",
		"empty_letters", report.EmptyLetters,
		"substances_without_products", report.SubstancesNoProducts,
		"products_without_documents", report.ProductsNoDocuments,
		"documents_other", report.DocumentsOther,
	)
	return report
}

func appendLimited(list []string, item string) []string {
	if len(list) >= maxListed {
		return list
	}
	return append(list, item)
}
