// Package catalog holds the reference data the editors resolve once per
// session: tax categories, payment terms and service types.
package catalog

import "time"

// TaxCategory drives the cascading tax breakdown of quotation items. Each
// flag enables one tax component; the reduced VAT rate, when present,
// replaces the standard rate instead of stacking on it.
type TaxCategory struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	AppliesVAT           bool       `json:"applies_vat"`
	VATRate              float64    `json:"vat_rate"`
	ReducedVATRate       *float64   `json:"reduced_vat_rate,omitempty"`
	AppliesIncomeTax     bool       `json:"applies_income_tax"`
	IncomeTaxRate        float64    `json:"income_tax_rate"`
	AppliesGrossReceipts bool       `json:"applies_gross_receipts"`
	GrossReceiptsRate    float64    `json:"gross_receipts_rate"`
	Active               bool       `json:"active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// PaymentTerm is a named payment condition referenced by quotations.
type PaymentTerm struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Days   int    `json:"days"`
	Active bool   `json:"active"`
}

// ServiceType classifies work orders (preventive, corrective, calibration...).
type ServiceType struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Reference bundles the catalog data an editor loads at session start.
type Reference struct {
	TaxCategories []TaxCategory `json:"tax_categories"`
	PaymentTerms  []PaymentTerm `json:"payment_terms"`
	ServiceTypes  []ServiceType `json:"service_types"`
}

// TaxCategoryByID returns the category with the given id, or nil when the
// reference set does not contain it.
func (r Reference) TaxCategoryByID(id int64) *TaxCategory {
	for i := range r.TaxCategories {
		if r.TaxCategories[i].ID == id {
			return &r.TaxCategories[i]
		}
	}
	return nil
}
