// Package intake tracks equipment received for service ("fichas") and their
// append-only history.
package intake

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusReceived      Status = "RECEIVED"
	StatusInDiagnosis   Status = "IN_DIAGNOSIS"
	StatusInRepair      Status = "IN_REPAIR"
	StatusAwaitingParts Status = "AWAITING_PARTS"
	StatusDelivered     Status = "DELIVERED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusInDiagnosis, StatusInRepair, StatusAwaitingParts, StatusDelivered:
		return true
	}
	return false
}

// Record is one piece of equipment received for service. A record may be
// linked to the work order currently covering it.
type Record struct {
	ID           int64          `json:"id"`
	ClientID     int64          `json:"client_id"`
	Instrument   string         `json:"instrument"`
	SerialNumber *string        `json:"serial_number,omitempty"`
	Status       Status         `json:"status"`
	WorkOrderID  *int64         `json:"work_order_id,omitempty"`
	ReceivedAt   time.Time      `json:"received_at"`
	History      []HistoryEntry `json:"history,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// HistoryEntry is one appended note. Entries are never updated or removed.
type HistoryEntry struct {
	ID          uuid.UUID `json:"id"`
	RecordID    int64     `json:"record_id"`
	WorkOrderID *int64    `json:"work_order_id,omitempty"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}
