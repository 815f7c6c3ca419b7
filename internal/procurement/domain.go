package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/shared"
)

// Status is the receiving state of a purchase order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPartial   Status = "PARTIAL"
	StatusCompleted Status = "COMPLETED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPartial, StatusCompleted:
		return true
	}
	return false
}

// PurchaseOrder domain model.
type PurchaseOrder struct {
	ID          int64           `json:"id"`
	PONumber    string          `json:"po_number"`
	VendorName  string          `json:"vendor_name"`
	Notes       string          `json:"notes,omitempty"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedBy   *int64          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ReceivedAt  *time.Time      `json:"received_at,omitempty"`
	Lines       []LineItem      `json:"lines,omitempty"`
}

// LineItem is one ordered item on a PO.
type LineItem struct {
	ID               int64           `json:"id"`
	POID             int64           `json:"po_id"`
	ItemID           int64           `json:"item_id"`
	ItemName         string          `json:"item_name,omitempty"`
	QuantityOrdered  int             `json:"quantity_ordered"`
	QuantityReceived int             `json:"quantity_received"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
}

// Remaining is what is still expected; never negative.
func (l LineItem) Remaining() int {
	if l.QuantityReceived >= l.QuantityOrdered {
		return 0
	}
	return l.QuantityOrdered - l.QuantityReceived
}

// DeriveStatus returns COMPLETED once every line is fully received.
func DeriveStatus(lines []LineItem) Status {
	if len(lines) == 0 {
		return StatusPending
	}
	started := false
	done := true
	for _, l := range lines {
		if l.QuantityReceived > 0 {
			started = true
		}
		if l.QuantityReceived < l.QuantityOrdered {
			done = false
		}
	}
	switch {
	case done:
		return StatusCompleted
	case started:
		return StatusPartial
	default:
		return StatusPending
	}
}

// OrderLine is a requested PO line.
type OrderLine struct {
	ItemID   int64
	Quantity int
	UnitCost decimal.Decimal
}

// CreateOrderInput is the payload for CreateOrder.
type CreateOrderInput struct {
	VendorName string
	Notes      string
	Lines      []OrderLine
	Actor      shared.Actor
	OccurredAt time.Time
}

// ReceiptEntry is the quantity that arrived for one item. Note is required
// when Quantity exceeds what is still expected.
type ReceiptEntry struct {
	ItemID   int64
	Quantity int
	Note     string
}

// ReceiveInput is the payload for Receive.
type ReceiveInput struct {
	OrderID    int64
	Entries    []ReceiptEntry
	Actor      shared.Actor
	OccurredAt time.Time
}

// ListFilter narrows ListOrders.
type ListFilter struct {
	Status  Status
	Page    int
	PerPage int
}

// Page is a page of PO headers.
type Page struct {
	Orders     []PurchaseOrder   `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}
