package quotes

import "github.com/meridian-lsm/meridian/internal/catalog"

// TaxBreakdown is the per-item tax decomposition. Every component derives
// from the item subtotal and its tax category; an item without a resolvable
// category contributes nothing.
type TaxBreakdown struct {
	Subtotal      float64 `json:"subtotal"`
	VAT           float64 `json:"vat"`
	IncomeTax     float64 `json:"income_tax"`
	GrossReceipts float64 `json:"gross_receipts"`
	TotalTax      float64 `json:"total_tax"`
}

// QuoteTotals aggregates the breakdowns of all items of a quotation.
type QuoteTotals struct {
	Subtotal      float64 `json:"subtotal"`
	VAT           float64 `json:"vat"`
	IncomeTax     float64 `json:"income_tax"`
	GrossReceipts float64 `json:"gross_receipts"`
	TotalTax      float64 `json:"total_tax"`
	Total         float64 `json:"total"`
}

// ItemTaxes computes the tax breakdown for a single item.
//
// VAT uses the category's reduced rate instead of the standard one when a
// non-zero reduced rate is configured; the two never stack. The income-tax
// and gross-receipts withholdings are each assessed on subtotal plus VAT,
// independently of one another.
func ItemTaxes(item QuoteItem, ref catalog.Reference) TaxBreakdown {
	subtotal := item.Quantity * item.UnitPrice
	breakdown := TaxBreakdown{Subtotal: subtotal}

	if item.TaxCategoryID == nil {
		return breakdown
	}
	category := ref.TaxCategoryByID(*item.TaxCategoryID)
	if category == nil {
		return breakdown
	}

	if category.AppliesVAT {
		rate := category.VATRate
		if category.ReducedVATRate != nil && *category.ReducedVATRate != 0 {
			rate = *category.ReducedVATRate
		}
		breakdown.VAT = subtotal * rate / 100
	}

	withholdingBase := subtotal + breakdown.VAT
	if category.AppliesIncomeTax {
		breakdown.IncomeTax = withholdingBase * category.IncomeTaxRate / 100
	}
	if category.AppliesGrossReceipts {
		breakdown.GrossReceipts = withholdingBase * category.GrossReceiptsRate / 100
	}

	breakdown.TotalTax = breakdown.VAT + breakdown.IncomeTax + breakdown.GrossReceipts
	return breakdown
}

// Totals folds the per-item breakdowns into quotation totals. It never fails:
// items with unknown categories simply contribute their subtotal untaxed.
func Totals(items []QuoteItem, ref catalog.Reference) QuoteTotals {
	var totals QuoteTotals
	for _, item := range items {
		b := ItemTaxes(item, ref)
		totals.Subtotal += b.Subtotal
		totals.VAT += b.VAT
		totals.IncomeTax += b.IncomeTax
		totals.GrossReceipts += b.GrossReceipts
		totals.TotalTax += b.TotalTax
	}
	totals.Total = totals.Subtotal + totals.TotalTax
	return totals
}
