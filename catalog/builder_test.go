package catalog

import (
	"testing"
	"time"

	"github.com/giygas/mhra-extractor/mhraparser/entities"
	"github.com/stretchr/testify/require"
)

func mustSubstance(t *testing.T, name string) entities.Substance {
	t.Helper()
	s, err := entities.NewSubstance(name, "/substance/?substance="+name, "")
	require.NoError(t, err)
	return s
}

func mustProduct(t *testing.T, name, licence, url string) entities.Product {
	t.Helper()
	p, err := entities.NewProduct(name, "", licence, url, "")
	require.NoError(t, err)
	return p
}

func mustDocument(t *testing.T, url string) entities.Document {
	t.Helper()
	d, err := entities.NewDocument(entities.DocumentInput{URL: url, Title: "doc", CollectedAt: time.Unix(0, 0)})
	require.NoError(t, err)
	return d
}

func TestAddSubstancesDeduplicatesAndKeepsOrder(t *testing.T) {
	b := NewBuilder()
	letter, err := b.AddLetter(entities.Letter{ID: "A"})
	require.NoError(t, err)

	res, err := b.AddSubstances(letter, []entities.Substance{
		mustSubstance(t, "Aspirin"),
		mustSubstance(t, "Abacavir"),
		mustSubstance(t, "  ASPIRIN "),
		mustSubstance(t, "Aciclovir"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Duplicates)
	require.Len(t, res.Committed, 3)

	// a second batch is checked against the first one
	res, err = b.AddSubstances(letter, []entities.Substance{mustSubstance(t, "abacavir")})
	require.NoError(t, err)
	require.Equal(t, 1, res.Duplicates)
	require.Empty(t, res.Committed)

	cat := b.Finalize()
	var names []string
	for _, s := range cat.ToHierarchy()[0].Substances {
		names = append(names, s.Substance.Name)
		require.Equal(t, "A", s.Substance.LetterID)
	}
	require.Equal(t, []string{"Aspirin", "Abacavir", "Aciclovir"}, names)
}

func TestAddProductsCompositeKey(t *testing.T) {
	b := NewBuilder()
	letter, _ := b.AddLetter(entities.Letter{ID: "I"})
	subs, _ := b.AddSubstances(letter, []entities.Substance{mustSubstance(t, "Ibuprofen")})
	sub := subs.Committed[0]

	res, err := b.AddProducts(sub, []entities.Product{
		mustProduct(t, "Ibuprofen 200mg Tablets", "PL 00001/0001", "/product/?p=1"),
		mustProduct(t, "Ibuprofen 200mg Tablets", "PL 00002/0001", "/product/?p=2"),
		mustProduct(t, "IBUPROFEN 200MG  TABLETS", "PL00001/0001", "/product/?p=3"),
		mustProduct(t, "Ibuprofen Gel", "", "/product/?p=4"),
		mustProduct(t, "Ibuprofen Gel", "", "/product/?p=5"),
		mustProduct(t, "Ibuprofen Gel", "", "/product/?p=4"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Duplicates)
	require.Len(t, res.Committed, 4)
	require.Equal(t, "Ibuprofen", res.Committed[0].Entity().SubstanceName)
}

func TestAddDocumentsDeduplicatesAcrossProducts(t *testing.T) {
	b := NewBuilder()
	letter, _ := b.AddLetter(entities.Letter{ID: "P"})
	subs, _ := b.AddSubstances(letter, []entities.Substance{mustSubstance(t, "Paracetamol")})
	prods, _ := b.AddProducts(subs.Committed[0], []entities.Product{
		mustProduct(t, "Paracetamol 500mg", "PL 11111/0001", ""),
		mustProduct(t, "Paracetamol 1g", "PL 11111/0002", ""),
	})

	res, err := b.AddDocuments(prods.Committed[0], []entities.Document{
		mustDocument(t, "https://example.test/docs/spc-1.pdf"),
		mustDocument(t, "https://example.test/docs/pil-1.pdf"),
	})
	require.NoError(t, err)
	require.Len(t, res.Committed, 2)

	res, err = b.AddDocuments(prods.Committed[1], []entities.Document{
		mustDocument(t, "https://EXAMPLE.test/docs/spc-1.pdf#page=2"),
		mustDocument(t, "https://example.test/docs/spc-2.pdf"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Duplicates)
	require.Len(t, res.Committed, 1)

	cat := b.Finalize()
	flat := cat.ToFlatDocuments()
	require.Len(t, flat, 3)
	require.Equal(t, cat.Counts().Documents, len(flat))
	require.Equal(t, "Paracetamol", flat[2].SubstanceName)
	require.Equal(t, "P", flat[2].LetterID)
	require.Equal(t, "Paracetamol 1g", flat[2].ProductName)
}

func TestDiscardReleasesSubtree(t *testing.T) {
	b := NewBuilder()
	letter, _ := b.AddLetter(entities.Letter{ID: "M"})
	subs, _ := b.AddSubstances(letter, []entities.Substance{
		mustSubstance(t, "Metformin"),
		mustSubstance(t, "Morphine"),
	})
	prods, _ := b.AddProducts(subs.Committed[0], []entities.Product{mustProduct(t, "Metformin 500mg", "PL 22222/0001", "")})
	_, err := b.AddDocuments(prods.Committed[0], []entities.Document{mustDocument(t, "https://example.test/m.pdf")})
	require.NoError(t, err)

	removed, err := b.Discard(subs.Committed[0])
	require.NoError(t, err)
	require.Equal(t, Removed{Substances: 1, Products: 1, Documents: 1}, removed)

	// discarded refs are rejected
	_, err = b.AddProducts(subs.Committed[0], nil)
	require.ErrorIs(t, err, ErrUnknownParent)

	// the released document url can be attached elsewhere
	prods, _ = b.AddProducts(subs.Committed[1], []entities.Product{mustProduct(t, "Morphine 10mg", "PL 33333/0001", "")})
	res, err := b.AddDocuments(prods.Committed[0], []entities.Document{mustDocument(t, "https://example.test/m.pdf")})
	require.NoError(t, err)
	require.Len(t, res.Committed, 1)

	counts := b.Finalize().Counts()
	require.Equal(t, Counts{Letters: 1, Substances: 1, Products: 1, Documents: 1}, counts)
}

func TestDiscardLetter(t *testing.T) {
	b := NewBuilder()
	a, _ := b.AddLetter(entities.Letter{ID: "A"})
	_, _ = b.AddLetter(entities.Letter{ID: "B"})
	_, _ = b.AddSubstances(a, []entities.Substance{mustSubstance(t, "Aspirin")})

	removed, err := b.Discard(a)
	require.NoError(t, err)
	require.Equal(t, Removed{Letters: 1, Substances: 1}, removed)

	cat := b.Finalize()
	require.Len(t, cat.ToHierarchy(), 1)
	require.Equal(t, "B", cat.ToHierarchy()[0].Letter.ID)
}

func TestFinalizedBuilderRejectsMutation(t *testing.T) {
	b := NewBuilder()
	letter, _ := b.AddLetter(entities.Letter{ID: "Z"})
	cat := b.Finalize()

	_, err := b.AddLetter(entities.Letter{ID: "Y"})
	require.ErrorIs(t, err, ErrCatalogFinalized)
	_, err = b.AddSubstances(letter, []entities.Substance{mustSubstance(t, "Zinc")})
	require.ErrorIs(t, err, ErrCatalogFinalized)
	_, err = b.Discard(letter)
	require.ErrorIs(t, err, ErrCatalogFinalized)

	require.Equal(t, 1, cat.Counts().Letters)
	require.Zero(t, cat.Counts().Substances)
}

func TestCatalogViewsAreCopies(t *testing.T) {
	b := NewBuilder()
	letter, _ := b.AddLetter(entities.Letter{ID: "C"})
	subs, _ := b.AddSubstances(letter, []entities.Substance{mustSubstance(t, "Codeine")})
	prods, _ := b.AddProducts(subs.Committed[0], []entities.Product{mustProduct(t, "Codeine 30mg", "PL 44444/0001", "")})
	doc := mustDocument(t, "https://example.test/c.pdf")
	doc.ActiveSubstances = []string{"CODEINE PHOSPHATE"}
	_, _ = b.AddDocuments(prods.Committed[0], []entities.Document{doc})
	cat := b.Finalize()

	view := cat.ToHierarchy()
	view[0].Substances[0].Substance.Name = "changed"
	view[0].Substances[0].Products[0].Documents[0].ActiveSubstances[0] = "changed"

	again := cat.ToHierarchy()
	require.Equal(t, "Codeine", again[0].Substances[0].Substance.Name)
	require.Equal(t, "CODEINE PHOSPHATE", again[0].Substances[0].Products[0].Documents[0].ActiveSubstances[0])
}
