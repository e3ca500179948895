// Package catalog accumulates the extracted records into the letter, substance,
// product, document tree and exposes a read-only view once traversal is over.
package catalog

import (
	"errors"
	"fmt"

	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// ErrCatalogFinalized is returned by every mutation after Finalize.
var ErrCatalogFinalized = errors.New("catalog is finalized")

// ErrUnknownParent is returned when a reference does not belong to this builder or was discarded.
var ErrUnknownParent = errors.New("unknown or discarded parent")

type letterNode struct {
	entity     entities.Letter
	substances []*substanceNode
	keys       map[string]struct{}
	attached   bool
}

type substanceNode struct {
	entity   entities.Substance
	parent   *letterNode
	products []*productNode
	keys     map[string]struct{}
	attached bool
}

type productNode struct {
	entity    entities.Product
	parent    *substanceNode
	documents []entities.Document
	attached  bool
}

// LetterRef, SubstanceRef and ProductRef are opaque handles to committed nodes.
type LetterRef struct{ node *letterNode }
type SubstanceRef struct{ node *substanceNode }
type ProductRef struct{ node *productNode }

// Name returns the substance name behind the reference.
func (r SubstanceRef) Name() string {
	if r.node == nil {
		return ""
	}
	return r.node.entity.Name
}

// Entity returns the committed substance record.
func (r SubstanceRef) Entity() entities.Substance {
	if r.node == nil {
		return entities.Substance{}
	}
	return r.node.entity
}

// Entity returns the committed product record.
func (r ProductRef) Entity() entities.Product {
	if r.node == nil {
		return entities.Product{}
	}
	return r.node.entity
}

// AddResult reports what a batch commit did.
type AddResult[R any] struct {
	Committed  []R
	Duplicates int
}

// Removed counts the entities dropped by Discard.
type Removed struct {
	Letters    int
	Substances int
	Products   int
	Documents  int
}

// Builder is owned by a single walker for the duration of one run. It is not safe
// for concurrent use.
type Builder struct {
	letters   []*letterNode
	letterIDs map[string]struct{}
	docKeys   map[string]struct{}
	finalized bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		letterIDs: make(map[string]struct{}),
		docKeys:   make(map[string]struct{}),
	}
}

// AddLetter commits a letter node. A letter already present is an error because the
// enumeration is fixed and visited once.
func (b *Builder) AddLetter(letter entities.Letter) (LetterRef, error) {
	if b.finalized {
		return LetterRef{}, ErrCatalogFinalized
	}
	if _, exists := b.letterIDs[letter.ID]; exists {
		return LetterRef{}, fmt.Errorf("letter %s already committed", letter.ID)
	}
	node := &letterNode{entity: letter, keys: make(map[string]struct{}), attached: true}
	b.letters = append(b.letters, node)
	b.letterIDs[letter.ID] = struct{}{}
	return LetterRef{node: node}, nil
}

// AddSubstances deduplicates the batch against the letter's known substances and
// commits the new ones in first-seen order.
func (b *Builder) AddSubstances(parent LetterRef, batch []entities.Substance) (AddResult[SubstanceRef], error) {
	var result AddResult[SubstanceRef]
	if b.finalized {
		return result, ErrCatalogFinalized
	}
	if parent.node == nil || !parent.node.attached {
		return result, ErrUnknownParent
	}
	for _, s := range batch {
		key := s.Key()
		if _, seen := parent.node.keys[key]; seen {
			result.Duplicates++
			continue
		}
		parent.node.keys[key] = struct{}{}
		s.LetterID = parent.node.entity.ID
		node := &substanceNode{entity: s, parent: parent.node, keys: make(map[string]struct{}), attached: true}
		parent.node.substances = append(parent.node.substances, node)
		result.Committed = append(result.Committed, SubstanceRef{node: node})
	}
	return result, nil
}

// AddProducts deduplicates the batch by composite key and commits the new products.
func (b *Builder) AddProducts(parent SubstanceRef, batch []entities.Product) (AddResult[ProductRef], error) {
	var result AddResult[ProductRef]
	if b.finalized {
		return result, ErrCatalogFinalized
	}
	if parent.node == nil || !parent.node.attached {
		return result, ErrUnknownParent
	}
	for _, p := range batch {
		key := p.Key()
		if _, seen := parent.node.keys[key]; seen {
			result.Duplicates++
			continue
		}
		parent.node.keys[key] = struct{}{}
		p.SubstanceName = parent.node.entity.Name
		node := &productNode{entity: p, parent: parent.node, attached: true}
		parent.node.products = append(parent.node.products, node)
		result.Committed = append(result.Committed, ProductRef{node: node})
	}
	return result, nil
}

// AddDocuments commits documents whose URL has not been seen anywhere in the
// catalog. A URL rediscovered under another product counts as a duplicate.
func (b *Builder) AddDocuments(parent ProductRef, batch []entities.Document) (AddResult[entities.Document], error) {
	var result AddResult[entities.Document]
	if b.finalized {
		return result, ErrCatalogFinalized
	}
	if parent.node == nil || !parent.node.attached {
		return result, ErrUnknownParent
	}
	for _, d := range batch {
		key := d.Key()
		if _, seen := b.docKeys[key]; seen {
			result.Duplicates++
			continue
		}
		b.docKeys[key] = struct{}{}
		d.ProductName = parent.node.entity.Name
		d.ProductURL = parent.node.entity.SourceURL
		parent.node.documents = append(parent.node.documents, d)
		result.Committed = append(result.Committed, d)
	}
	return result, nil
}

// Discard removes a committed node and its whole subtree. Sibling keys and document
// URLs held by the subtree are released. Accepted refs are LetterRef, SubstanceRef
// and ProductRef.
func (b *Builder) Discard(ref any) (Removed, error) {
	var removed Removed
	if b.finalized {
		return removed, ErrCatalogFinalized
	}
	switch r := ref.(type) {
	case LetterRef:
		if r.node == nil || !r.node.attached {
			return removed, ErrUnknownParent
		}
		for _, s := range r.node.substances {
			b.releaseSubstance(s, &removed)
		}
		r.node.attached = false
		removed.Letters++
		b.letters = removeNode(b.letters, r.node)
		delete(b.letterIDs, r.node.entity.ID)
	case SubstanceRef:
		if r.node == nil || !r.node.attached {
			return removed, ErrUnknownParent
		}
		b.releaseSubstance(r.node, &removed)
		parent := r.node.parent
		parent.substances = removeNode(parent.substances, r.node)
		delete(parent.keys, r.node.entity.Key())
	case ProductRef:
		if r.node == nil || !r.node.attached {
			return removed, ErrUnknownParent
		}
		b.releaseProduct(r.node, &removed)
		parent := r.node.parent
		parent.products = removeNode(parent.products, r.node)
		delete(parent.keys, r.node.entity.Key())
	default:
		return removed, fmt.Errorf("cannot discard %T", ref)
	}
	return removed, nil
}

func (b *Builder) releaseSubstance(s *substanceNode, removed *Removed) {
	for _, p := range s.products {
		b.releaseProduct(p, removed)
	}
	s.attached = false
	removed.Substances++
}

func (b *Builder) releaseProduct(p *productNode, removed *Removed) {
	for _, d := range p.documents {
		delete(b.docKeys, d.Key())
	}
	removed.Documents += len(p.documents)
	removed.Products++
	p.attached = false
}

func removeNode[T comparable](nodes []T, target T) []T {
	for i, n := range nodes {
		if n == target {
			return append(nodes[:i:i], nodes[i+1:]...)
		}
	}
	return nodes
}

// Finalize freezes the builder and returns the read-only catalog. Later mutations
// fail with ErrCatalogFinalized.
func (b *Builder) Finalize() *Catalog {
	b.finalized = true
	return newCatalog(b.letters)
}
