package workorders

import (
	"github.com/google/uuid"

	"github.com/meridian-lsm/meridian/internal/platform/field"
)

type CreateWorkOrderRequest struct {
	ClientID        int64    `json:"client_id" validate:"required,gt=0"`
	SystemID        *int64   `json:"system_id,omitempty"`
	ServiceTypeID   *int64   `json:"service_type_id,omitempty"`
	Billable        bool     `json:"billable"`
	UnderContract   bool     `json:"under_contract"`
	UnderWarranty   bool     `json:"under_warranty"`
	ProblemReported *string  `json:"problem_reported,omitempty"`
	BudgetRefs      []string `json:"budget_refs,omitempty"`
}

// UpdateWorkOrderRequest uses tri-state fields for the clearable scalars: an
// explicit null writes NULL, the way the detail form clears a field.
type UpdateWorkOrderRequest struct {
	SystemID        field.Opt[int64]  `json:"system_id"`
	ServiceTypeID   field.Opt[int64]  `json:"service_type_id"`
	Billable        *bool             `json:"billable,omitempty"`
	UnderContract   *bool             `json:"under_contract,omitempty"`
	UnderWarranty   *bool             `json:"under_warranty,omitempty"`
	ProblemReported field.Opt[string] `json:"problem_reported"`
	WorkPerformed   field.Opt[string] `json:"work_performed"`
	Observations    field.Opt[string] `json:"observations"`
	BudgetRefs      *[]string         `json:"budget_refs,omitempty"`
	Parts           *[]PartRequest    `json:"parts,omitempty" validate:"omitempty,dive"`
	BaseVersion     int64             `json:"base_version" validate:"gte=0"`
}

type PartRequest struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Code        string     `json:"code" validate:"required,max=60"`
	Description string     `json:"description" validate:"max=300"`
	Quantity    float64    `json:"quantity" validate:"gte=0"`
	Origin      *string    `json:"origin,omitempty" validate:"omitempty,max=120"`
}

type AddItemRequest struct {
	Description string `json:"description" validate:"required,max=500"`
}

type ListWorkOrdersRequest struct {
	ClientID *int64           `json:"client_id,omitempty"`
	Status   *WorkOrderStatus `json:"status,omitempty"`
	Limit    int              `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int              `json:"offset" validate:"gte=0"`
}
