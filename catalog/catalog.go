package catalog

import (
	"slices"

	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// LetterView is a finalized letter with its substances in traversal order.
type LetterView struct {
	Letter     entities.Letter
	Substances []SubstanceView
}

// SubstanceView is a finalized substance with its products.
type SubstanceView struct {
	Substance entities.Substance
	Products  []ProductView
}

// ProductView is a finalized product with its documents.
type ProductView struct {
	Product   entities.Product
	Documents []entities.Document
}

// FlatDocument is a document resolved to its full ancestry.
type FlatDocument struct {
	entities.Document
	LetterID      string
	SubstanceName string
	SubstanceURL  string
	LicenseHolder string
	LicenseID     string
}

// Counts are the entity totals of a catalog.
type Counts struct {
	Letters    int
	Substances int
	Products   int
	Documents  int
}

// Catalog is the immutable result of a run. Every accessor returns a copy.
type Catalog struct {
	letters []LetterView
}

func newCatalog(nodes []*letterNode) *Catalog {
	letters := make([]LetterView, 0, len(nodes))
	for _, l := range nodes {
		lv := LetterView{Letter: l.entity, Substances: make([]SubstanceView, 0, len(l.substances))}
		for _, s := range l.substances {
			sv := SubstanceView{Substance: s.entity, Products: make([]ProductView, 0, len(s.products))}
			for _, p := range s.products {
				sv.Products = append(sv.Products, ProductView{
					Product:   p.entity,
					Documents: cloneDocuments(p.documents),
				})
			}
			lv.Substances = append(lv.Substances, sv)
		}
		letters = append(letters, lv)
	}
	return &Catalog{letters: letters}
}

func cloneDocuments(docs []entities.Document) []entities.Document {
	out := make([]entities.Document, len(docs))
	for i, d := range docs {
		d.ActiveSubstances = slices.Clone(d.ActiveSubstances)
		if d.FileSizeKB != nil {
			size := *d.FileSizeKB
			d.FileSizeKB = &size
		}
		out[i] = d
	}
	return out
}

// Letters returns the committed letters in traversal order.
func (c *Catalog) Letters() []entities.Letter {
	out := make([]entities.Letter, len(c.letters))
	for i, l := range c.letters {
		out[i] = l.Letter
	}
	return out
}

// ToHierarchy returns the letter tree.
func (c *Catalog) ToHierarchy() []LetterView {
	out := make([]LetterView, len(c.letters))
	for i, l := range c.letters {
		lv := LetterView{Letter: l.Letter, Substances: make([]SubstanceView, len(l.Substances))}
		for j, s := range l.Substances {
			sv := SubstanceView{Substance: s.Substance, Products: make([]ProductView, len(s.Products))}
			for k, p := range s.Products {
				sv.Products[k] = ProductView{Product: p.Product, Documents: cloneDocuments(p.Documents)}
			}
			lv.Substances[j] = sv
		}
		out[i] = lv
	}
	return out
}

// ToFlatDocuments returns every document in tree order with its ancestry.
func (c *Catalog) ToFlatDocuments() []FlatDocument {
	var out []FlatDocument
	for _, l := range c.letters {
		for _, s := range l.Substances {
			for _, p := range s.Products {
				for _, d := range cloneDocuments(p.Documents) {
					out = append(out, FlatDocument{
						Document:      d,
						LetterID:      l.Letter.ID,
						SubstanceName: s.Substance.Name,
						SubstanceURL:  s.Substance.SourceURL,
						LicenseHolder: p.Product.LicenseHolder,
						LicenseID:     p.Product.LicenseID,
					})
				}
			}
		}
	}
	return out
}

// Counts totals the catalog at every level.
func (c *Catalog) Counts() Counts {
	var counts Counts
	counts.Letters = len(c.letters)
	for _, l := range c.letters {
		counts.Substances += len(l.Substances)
		for _, s := range l.Substances {
			counts.Products += len(s.Products)
			for _, p := range s.Products {
				counts.Documents += len(p.Documents)
			}
		}
	}
	return counts
}
