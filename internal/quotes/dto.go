package quotes

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-lsm/meridian/internal/platform/field"
)

type QuoteItemRequest struct {
	ID            *uuid.UUID `json:"id,omitempty"`
	Description   string     `json:"description" validate:"required,max=500"`
	Quantity      float64    `json:"quantity" validate:"gte=0"`
	Unit          string     `json:"unit" validate:"max=20"`
	UnitPrice     float64    `json:"unit_price" validate:"gte=0"`
	TaxCategoryID *int64     `json:"tax_category_id,omitempty"`
	Position      int        `json:"position" validate:"gte=0"`
}

type CreateQuotationRequest struct {
	ClientID       int64              `json:"client_id" validate:"required,gt=0"`
	SystemID       *int64             `json:"system_id,omitempty"`
	ExchangeRate   *float64           `json:"exchange_rate,omitempty" validate:"omitempty,gt=0"`
	PaymentTermID  *int64             `json:"payment_term_id,omitempty"`
	TechnicalNotes *string            `json:"technical_notes,omitempty"`
	ValidUntil     *time.Time         `json:"valid_until,omitempty"`
	Items          []QuoteItemRequest `json:"items" validate:"dive"`
}

// UpdateQuotationRequest carries tri-state header fields: an omitted field is
// left unchanged, an explicit null clears it, a value replaces it.
type UpdateQuotationRequest struct {
	SystemID       field.Opt[int64]     `json:"system_id"`
	ExchangeRate   field.Opt[float64]   `json:"exchange_rate"`
	PaymentTermID  field.Opt[int64]     `json:"payment_term_id"`
	TechnicalNotes field.Opt[string]    `json:"technical_notes"`
	ValidUntil     field.Opt[time.Time] `json:"valid_until"`
	Items          *[]QuoteItemRequest  `json:"items,omitempty" validate:"omitempty,dive"`
	BaseVersion    int64                `json:"base_version" validate:"gte=0"`
}

type UpdateStatusRequest struct {
	Status QuotationStatus `json:"status" validate:"required"`
}

type ListQuotationsRequest struct {
	ClientID *int64           `json:"client_id,omitempty"`
	Status   *QuotationStatus `json:"status,omitempty"`
	Limit    int              `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int              `json:"offset" validate:"gte=0"`
}
