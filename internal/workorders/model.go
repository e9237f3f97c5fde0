package workorders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type WorkOrderStatus string

const (
	WorkOrderStatusDraft     WorkOrderStatus = "DRAFT"
	WorkOrderStatusFinalized WorkOrderStatus = "FINALIZED"
)

// BudgetRefMaxLen caps each budget reference string.
const BudgetRefMaxLen = 15

// WorkOrder is a service order ("OT"). Order numbers are five digits; child
// items extend them with a two-digit suffix (00042.01). A FINALIZED order is
// terminal and read-only.
type WorkOrder struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	ClientID        int64           `json:"client_id"`
	SystemID        *int64          `json:"system_id,omitempty"`
	ServiceTypeID   *int64          `json:"service_type_id,omitempty"`
	Status          WorkOrderStatus `json:"status"`
	Billable        bool            `json:"billable"`
	UnderContract   bool            `json:"under_contract"`
	UnderWarranty   bool            `json:"under_warranty"`
	ProblemReported *string         `json:"problem_reported,omitempty"`
	WorkPerformed   *string         `json:"work_performed,omitempty"`
	Observations    *string         `json:"observations,omitempty"`
	BudgetRefs      []string        `json:"budget_refs"`
	Parts           []Part          `json:"parts"`
	Items           []WorkOrderItem `json:"items"`
	FinalizedAt     *time.Time      `json:"finalized_at,omitempty"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Part is a spare part consumed by the order.
type Part struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	Origin      *string   `json:"origin,omitempty"`
}

// WorkOrderItem is a child line of the order, numbered NNNNN.NN.
type WorkOrderItem struct {
	ID          int64  `json:"id"`
	ItemNumber  string `json:"item_number"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// WorkOrderSummary is the list-view projection.
type WorkOrderSummary struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"order_number"`
	ClientID    int64           `json:"client_id"`
	ClientName  string          `json:"client_name"`
	Status      WorkOrderStatus `json:"status"`
	FinalizedAt *time.Time      `json:"finalized_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Finalized reports whether the order reached its terminal state.
func (o WorkOrder) Finalized() bool {
	return o.Status == WorkOrderStatusFinalized
}

// Clone deep-copies the reference fields so editor snapshots do not alias
// the live document.
func (o WorkOrder) Clone() WorkOrder {
	if o.BudgetRefs != nil {
		refs := make([]string, len(o.BudgetRefs))
		copy(refs, o.BudgetRefs)
		o.BudgetRefs = refs
	}
	if o.Parts != nil {
		parts := make([]Part, len(o.Parts))
		copy(parts, o.Parts)
		o.Parts = parts
	}
	if o.Items != nil {
		items := make([]WorkOrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}

// NormalizeBudgetRefs drops blank references and truncates the rest to
// BudgetRefMaxLen. Applied before every save.
func NormalizeBudgetRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		trimmed := strings.TrimSpace(ref)
		if trimmed == "" {
			continue
		}
		if len(trimmed) > BudgetRefMaxLen {
			trimmed = trimmed[:BudgetRefMaxLen]
		}
		out = append(out, trimmed)
	}
	return out
}

// ChildItemNumber formats the NNNNN.NN number of the n-th child of an order.
func ChildItemNumber(orderNumber string, n int) string {
	return fmt.Sprintf("%s.%02d", orderNumber, n)
}
