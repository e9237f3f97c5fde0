package catalog

type CreateTaxCategoryRequest struct {
	Name                 string   `json:"name" validate:"required,max=120"`
	AppliesVAT           bool     `json:"applies_vat"`
	VATRate              float64  `json:"vat_rate" validate:"gte=0,lte=100"`
	ReducedVATRate       *float64 `json:"reduced_vat_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	AppliesIncomeTax     bool     `json:"applies_income_tax"`
	IncomeTaxRate        float64  `json:"income_tax_rate" validate:"gte=0,lte=100"`
	AppliesGrossReceipts bool     `json:"applies_gross_receipts"`
	GrossReceiptsRate    float64  `json:"gross_receipts_rate" validate:"gte=0,lte=100"`
}

type UpdateTaxCategoryRequest struct {
	Name                 *string  `json:"name,omitempty" validate:"omitempty,max=120"`
	AppliesVAT           *bool    `json:"applies_vat,omitempty"`
	VATRate              *float64 `json:"vat_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	ReducedVATRate       *float64 `json:"reduced_vat_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	AppliesIncomeTax     *bool    `json:"applies_income_tax,omitempty"`
	IncomeTaxRate        *float64 `json:"income_tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	AppliesGrossReceipts *bool    `json:"applies_gross_receipts,omitempty"`
	GrossReceiptsRate    *float64 `json:"gross_receipts_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Active               *bool    `json:"active,omitempty"`
}
