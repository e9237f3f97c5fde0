package quotes

import (
	"time"

	"github.com/google/uuid"
)

type QuotationStatus string

const (
	QuotationStatusDraft        QuotationStatus = "DRAFT"
	QuotationStatusSent         QuotationStatus = "SENT"
	QuotationStatusFollowUp     QuotationStatus = "FOLLOW_UP"
	QuotationStatusAwaitingPO   QuotationStatus = "AWAITING_PO"
	QuotationStatusAccepted     QuotationStatus = "ACCEPTED"
	QuotationStatusAwaitingCert QuotationStatus = "AWAITING_CERT"
	QuotationStatusOnHold       QuotationStatus = "ON_HOLD"
)

// Valid reports whether s is one of the known statuses.
func (s QuotationStatus) Valid() bool {
	switch s {
	case QuotationStatusDraft, QuotationStatusSent, QuotationStatusFollowUp,
		QuotationStatusAwaitingPO, QuotationStatusAccepted,
		QuotationStatusAwaitingCert, QuotationStatusOnHold:
		return true
	}
	return false
}

// Quotation is a priced service offer for a client. Subtotal and Total are
// caches recomputed from the items on every save; Version backs the
// compare-and-swap protocol of the editor.
type Quotation struct {
	ID             int64           `json:"id"`
	DocNumber      string          `json:"doc_number"`
	ClientID       int64           `json:"client_id"`
	SystemID       *int64          `json:"system_id,omitempty"`
	Status         QuotationStatus `json:"status"`
	ExchangeRate   *float64        `json:"exchange_rate,omitempty"`
	PaymentTermID  *int64          `json:"payment_term_id,omitempty"`
	TechnicalNotes *string         `json:"technical_notes,omitempty"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`
	Items          []QuoteItem     `json:"items"`
	Subtotal       float64         `json:"subtotal"`
	Total          float64         `json:"total"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// QuoteItem is one priced line. The ID is generated client-side or at
// creation and stays stable across edits; Subtotal is always derived from
// Quantity and UnitPrice, never stored independently.
type QuoteItem struct {
	ID            uuid.UUID `json:"id"`
	Description   string    `json:"description"`
	Quantity      float64   `json:"quantity"`
	Unit          string    `json:"unit"`
	UnitPrice     float64   `json:"unit_price"`
	TaxCategoryID *int64    `json:"tax_category_id,omitempty"`
	Subtotal      float64   `json:"subtotal"`
	Position      int       `json:"position"`
}

// QuotationSummary is the list-view projection with the client name joined in.
type QuotationSummary struct {
	ID         int64           `json:"id"`
	DocNumber  string          `json:"doc_number"`
	ClientID   int64           `json:"client_id"`
	ClientName string          `json:"client_name"`
	Status     QuotationStatus `json:"status"`
	Total      float64         `json:"total"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CloneItems deep-copies the item slice so editor snapshots do not alias the
// live document.
func (q Quotation) CloneItems() []QuoteItem {
	if q.Items == nil {
		return nil
	}
	items := make([]QuoteItem, len(q.Items))
	copy(items, q.Items)
	return items
}
