package mhraparser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

func TestParseSubstances(t *testing.T) {
	html := `<html><body>
	<nav><ul>
		<li class="substance-name"><a href="/substance/?substance=ABACAVIR">  ABACAVIR
		</a></li>
		<li class="substance-name"><a href="/substance/?substance=ACICLOVIR#top">ACICLOVIR</a></li>
		<li class="substance-name"><a href="/substance/?substance=EMPTY"> </a></li>
		<li class="substance-name"><a href="/help">Help</a></li>
		<li class="substance-name"><a>no href</a></li>
	</ul></nav></body></html>`

	page, err := ParsePage(entities.LevelLetter, LetterIndexURL(testBaseURL, "A"), []byte(html))
	require.NoError(t, err)
	require.Equal(t, []SubstanceLink{
		{Name: "ABACAVIR", URL: "https://mhra.test/substance/?substance=ABACAVIR"},
		{Name: "ACICLOVIR", URL: "https://mhra.test/substance/?substance=ACICLOVIR"},
	}, page.Substances)
	require.Empty(t, page.Next)
}

func TestParseSubstancesFallbackSelector(t *testing.T) {
	html := `<nav><ul><li><a href="/substance/?substance=BACLOFEN">BACLOFEN</a></li><li><a href="/other">x</a></li></ul></nav>`

	page, err := ParsePage(entities.LevelLetter, LetterIndexURL(testBaseURL, "B"), []byte(html))
	require.NoError(t, err)
	require.Len(t, page.Substances, 1)
	require.Equal(t, "BACLOFEN", page.Substances[0].Name)
}

func TestParseProducts(t *testing.T) {
	html := `<nav><ul>
		<li class="product-name" data-licence-number="PL 12345/0001"><a href="/product/?product=ONE">IBUPROFEN 200MG TABLETS</a></li>
		<li class="product-name"><a href="/product/?product=TWO">IBUPROFEN GEL PL 00289/1234 <span class="licence-holder">Acme Ltd</span></a></li>
		<li class="product-name"><a href="/product/?product=THREE">IBUPROFEN ORAL SUSPENSION</a></li>
	</ul></nav>`

	page, err := ParsePage(entities.LevelSubstance, substanceURL("IBUPROFEN"), []byte(html))
	require.NoError(t, err)
	require.Equal(t, []ProductSummary{
		{Name: "IBUPROFEN 200MG TABLETS", URL: "https://mhra.test/product/?product=ONE", LicenseID: "PL 12345/0001"},
		{Name: "IBUPROFEN GEL PL 00289/1234", URL: "https://mhra.test/product/?product=TWO", LicenseHolder: "Acme Ltd", LicenseID: "PL 00289/1234"},
		// a missing licence holder does not drop the product
		{Name: "IBUPROFEN ORAL SUSPENSION", URL: "https://mhra.test/product/?product=THREE"},
	}, page.Products)
}

func TestParseDocuments(t *testing.T) {
	html := `<section class="column results">
		<div class="search-result"><dl>
			<dt class="left"><p class="icon">SPC</p></dt>
			<dd class="right">
				<a href="https://mhra-docs.test/docs/SPC_12345.pdf"><p class="title">Ibuprofen 200mg</p><p class="subtitle">Summary</p></a>
				<p class="metadata">File size: 1.5 MB</p>
				<p class="metadata">Active substances: IBUPROFEN; CAFFEINE, </p>
			</dd>
		</dl></div>
		<div class="search-result"><dl>
			<dd class="right"><a href="/docs/misc_file.pdf"></a><p class="metadata">File size: 12.4 KB</p></dd>
		</dl></div>
		<div class="search-result"><dl><dd class="right"><a>no link</a></dd></dl></div>
	</section>`

	page, err := ParsePage(entities.LevelProduct, productURL("IBU"), []byte(html))
	require.NoError(t, err)
	require.Len(t, page.Documents, 2)

	first := page.Documents[0]
	require.Equal(t, "https://mhra-docs.test/docs/SPC_12345.pdf", first.URL)
	require.Equal(t, "SPC", first.TypeLabel)
	require.Equal(t, "Ibuprofen 200mg", first.Title)
	require.Equal(t, "Summary", first.Subtitle)
	require.NotNil(t, first.FileSizeKB)
	require.Equal(t, 1536, *first.FileSizeKB)
	require.Equal(t, []string{"IBUPROFEN", "CAFFEINE"}, first.ActiveSubstances)

	second := page.Documents[1]
	require.Equal(t, "https://mhra.test/docs/misc_file.pdf", second.URL)
	require.Empty(t, second.TypeLabel)
	require.Empty(t, second.Title)
	require.Equal(t, 12, *second.FileSizeKB)
	require.Nil(t, page.Disclaimer)
}

func TestParseNextPage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"rel next", `<a rel="next" href="?letter=A&page=2">Next</a>`, "https://mhra.test/substance-index/?letter=A&page=2"},
		{"li next", `<ul class="pagination"><li class="next"><a href="/substance-index/?letter=A&page=3">›</a></li></ul>`, "https://mhra.test/substance-index/?letter=A&page=3"},
		{"a.next", `<a class="next" href="/substance-index/?letter=A&page=4">Next</a>`, "https://mhra.test/substance-index/?letter=A&page=4"},
		{"self link", `<a rel="next" href="/substance-index/?letter=A">Next</a>`, ""},
		{"anchor only", `<a rel="next" href="#">Next</a>`, ""},
		{"none", `<p>last page</p>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ParsePage(entities.LevelLetter, LetterIndexURL(testBaseURL, "A"), []byte(tt.html))
			require.NoError(t, err)
			require.Equal(t, tt.want, page.Next)
		})
	}
}

func TestParseDisclaimer(t *testing.T) {
	html := `<form method="post" action="/product/agree">
		<input type="hidden" name="product" value="ONE">
		<input type="checkbox" id="agree-checkbox" name="agree">
		<button type="submit" name="action" value="accept">Continue</button>
	</form>`

	page, err := ParsePage(entities.LevelProduct, productURL("ONE"), []byte(html))
	require.NoError(t, err)
	require.NotNil(t, page.Disclaimer)
	require.Equal(t, "https://mhra.test/product/agree", page.Disclaimer.Action)
	require.Equal(t, "action=accept&agree=on&product=ONE", page.Disclaimer.Fields.Encode())
}

func TestParseUnknownLevel(t *testing.T) {
	_, err := ParsePage(entities.LevelDocument, testBaseURL, []byte("<html></html>"))
	require.Error(t, err)
}

func TestParseFileSize(t *testing.T) {
	require.Equal(t, 120, *ParseFileSize("File size: 120 KB"))
	require.Equal(t, 13, *ParseFileSize("file size:12.5kb"))
	require.Equal(t, 2048, *ParseFileSize("File Size : 2 MB"))
	require.Nil(t, ParseFileSize("File size: unknown"))
}

func TestParseActiveSubstances(t *testing.T) {
	require.Equal(t, []string{"PARACETAMOL", "CODEINE PHOSPHATE"}, ParseActiveSubstances("Active substances: PARACETAMOL,  CODEINE   PHOSPHATE"))
	require.Nil(t, ParseActiveSubstances("Nothing to see"))
}
