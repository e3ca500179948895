package entities

import (
	"fmt"
	"regexp"
	"strings"
)

// licenceRegex matches UK marketing authorisation numbers, e.g. "PL 12345/0001" or "PLGB 04425/0732".
var licenceRegex = regexp.MustCompile(`(?i)\b(PLGB|PLNI|PL|THR|NR|PR|EU)\s*(\d{5})\s*/\s*(\d{4,5})\b`)

// Product is a marketed product listed under a Substance.
type Product struct {
	Name          string `json:"label"`
	LicenseHolder string `json:"license_holder"`
	LicenseID     string `json:"license_id"`
	SourceURL     string `json:"product_url"`
	SubstanceName string `json:"-"`
}

// NewProduct normalises the fields. Only the name is required; a missing licence
// holder or identifier stays empty.
func NewProduct(name, licenseHolder, licenseID, sourceURL, substanceName string) (Product, error) {
	name = NormalizeWhitespace(name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: product without name (url %q)", ErrInvalidRecord, sourceURL)
	}
	licenseID = NormalizeLicenseID(licenseID)
	if licenseID == "" {
		licenseID = ExtractLicenseID(name)
	}
	return Product{
		Name:          name,
		LicenseHolder: NormalizeWhitespace(licenseHolder),
		LicenseID:     licenseID,
		SourceURL:     NormalizeWhitespace(sourceURL),
		SubstanceName: substanceName,
	}, nil
}

// ExtractLicenseID finds the first authorisation number in text and returns it in canonical form.
func ExtractLicenseID(text string) string {
	m := licenceRegex.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%s %s/%s", strings.ToUpper(m[1]), m[2], m[3])
}

// NormalizeLicenseID canonicalises an identifier; text that is not an authorisation
// number is kept with its whitespace collapsed.
func NormalizeLicenseID(id string) string {
	if canonical := ExtractLicenseID(id); canonical != "" {
		return canonical
	}
	return NormalizeWhitespace(id)
}

// Key is the sibling identity of the product within its substance: the normalised
// name plus the authorisation number, or plus the source URL when there is none.
func (p Product) Key() string {
	if p.LicenseID != "" {
		return NormalizeKey(p.Name) + "|licence:" + NormalizeKey(p.LicenseID)
	}
	return NormalizeKey(p.Name) + "|url:" + DocumentKey(p.SourceURL)
}
