package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/shared"
)

// MovementType enumerates ledger row kinds.
type MovementType string

const (
	// MovementIn adds stock.
	MovementIn MovementType = "IN"
	// MovementOut removes stock.
	MovementOut MovementType = "OUT"
	// MovementOrder logs purchase intent and never touches stock.
	MovementOrder MovementType = "ORDER"
)

// MovementTypes lists every known type in a stable order.
var MovementTypes = []MovementType{MovementIn, MovementOut, MovementOrder}

// Valid reports whether t is a known type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementOrder:
		return true
	}
	return false
}

// StockSign is the single source of truth for how a movement type affects
// on-hand stock: +1 adds, -1 removes, 0 is ignored.
func (t MovementType) StockSign() int {
	switch t {
	case MovementIn:
		return 1
	case MovementOut:
		return -1
	default:
		return 0
	}
}

// ReferenceType names the document a movement was generated by.
type ReferenceType string

const (
	ReferenceSale          ReferenceType = "SALE"
	ReferencePurchaseOrder ReferenceType = "PURCHASE_ORDER"
)

// Reason classifies why a movement happened.
type Reason string

const (
	ReasonCustomerPurchase Reason = "CUSTOMER_PURCHASE"
	ReasonPOArrival        Reason = "PO_ARRIVAL"
	ReasonPartialArrival   Reason = "PARTIAL_ARRIVAL"
	ReasonBonusStock       Reason = "BONUS_STOCK"
	ReasonOrderPlacement   Reason = "ORDER_PLACEMENT"
	ReasonManualEntry      Reason = "MANUAL_ENTRY"
	ReasonBaselineCount    Reason = "BASELINE_COUNT"
)

type reasonRule struct {
	types     []MovementType
	reference ReferenceType
}

// reasonRules is the closed table of legal type/reference/reason combinations.
// An empty reference means the reason must not carry one.
var reasonRules = map[Reason]reasonRule{
	ReasonCustomerPurchase: {types: []MovementType{MovementOut}, reference: ReferenceSale},
	ReasonPOArrival:        {types: []MovementType{MovementIn}, reference: ReferencePurchaseOrder},
	ReasonPartialArrival:   {types: []MovementType{MovementIn}, reference: ReferencePurchaseOrder},
	ReasonBonusStock:       {types: []MovementType{MovementIn}, reference: ReferencePurchaseOrder},
	ReasonOrderPlacement:   {types: []MovementType{MovementOrder}, reference: ReferencePurchaseOrder},
	ReasonManualEntry:      {types: []MovementType{MovementIn, MovementOut}},
	ReasonBaselineCount:    {types: []MovementType{MovementIn}},
}

// Reference links a movement to its originating document.
type Reference struct {
	ID   int64         `json:"id"`
	Type ReferenceType `json:"type"`
}

// Movement is one immutable ledger row.
type Movement struct {
	ID         int64               `json:"id"`
	ItemID     int64               `json:"item_id"`
	Quantity   int                 `json:"quantity"`
	Type       MovementType        `json:"type"`
	OccurredAt time.Time           `json:"occurred_at"`
	UserID     *int64              `json:"user_id,omitempty"`
	UserName   string              `json:"user_name,omitempty"`
	Reference  *Reference          `json:"reference,omitempty"`
	Reason     Reason              `json:"reason"`
	UnitPrice  decimal.NullDecimal `json:"unit_price"`
	Notes      string              `json:"notes,omitempty"`
}

// MovementInput is the request to append a ledger row.
type MovementInput struct {
	ItemID     int64
	Quantity   int
	Type       MovementType
	Actor      shared.Actor
	Reference  *Reference
	Reason     Reason
	UnitPrice  *decimal.Decimal
	OccurredAt time.Time
	Notes      string
}

// StockLevel is the derived on-hand quantity for an item.
type StockLevel struct {
	ItemID       int64           `json:"item_id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	ReorderLevel int             `json:"reorder_level"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	CostPerPiece decimal.Decimal `json:"cost_per_piece"`
	TotalIn      int             `json:"total_in"`
	TotalOut     int             `json:"total_out"`
	Stock        int             `json:"stock"`
}

// HotItem ranks items by units sold in a window.
type HotItem struct {
	ItemID   int64  `json:"item_id"`
	Name     string `json:"name"`
	UnitsOut int    `json:"units_out"`
	Stock    int    `json:"stock"`
}

// DeadItem is stock that has not moved out within the window.
type DeadItem struct {
	ItemID  int64      `json:"item_id"`
	Name    string     `json:"name"`
	Stock   int        `json:"stock"`
	LastOut *time.Time `json:"last_out,omitempty"`
}

// DashboardStats summarises the ledger for the landing view.
type DashboardStats struct {
	ItemCount       int             `json:"item_count"`
	LowStockCount   int             `json:"low_stock_count"`
	OutOfStockCount int             `json:"out_of_stock_count"`
	UnitsOnHand     int             `json:"units_on_hand"`
	StockValue      decimal.Decimal `json:"stock_value"`
	TodaySalesCount int             `json:"today_sales_count"`
	TodaySales      decimal.Decimal `json:"today_sales"`
	OpenDebtCount   int             `json:"open_debt_count"`
	PendingPOCount  int             `json:"pending_po_count"`
}

// SeriesPoint is the net stock change for one day.
type SeriesPoint struct {
	Day time.Time `json:"day"`
	In  int       `json:"in"`
	Out int       `json:"out"`
	Net int       `json:"net"`
}

// IntegrityReport cross-checks the ledger as a whole.
type IntegrityReport struct {
	Movements      int        `json:"movements"`
	TotalIn        int        `json:"total_in"`
	TotalOut       int        `json:"total_out"`
	TotalOrdered   int        `json:"total_ordered"`
	NegativeItems  []int64    `json:"negative_items"`
	EarliestMoveAt *time.Time `json:"earliest_move_at,omitempty"`
	LatestMoveAt   *time.Time `json:"latest_move_at,omitempty"`
}

// AuditFilter narrows the grouped audit trail.
type AuditFilter struct {
	From    *time.Time
	To      *time.Time
	Type    MovementType
	Search  string
	Page    int
	PerPage int
}

// AuditEntry is one grouped audit-trail row: every movement sharing a
// reference, timestamp, type and reason collapses into one entry.
type AuditEntry struct {
	OccurredAt    time.Time      `json:"occurred_at"`
	Type          MovementType   `json:"type"`
	Reason        Reason         `json:"reason"`
	ReferenceID   *int64         `json:"reference_id,omitempty"`
	ReferenceType *ReferenceType `json:"reference_type,omitempty"`
	UserName      string         `json:"user_name"`
	Items         string         `json:"items"`
	Lines         int            `json:"lines"`
	TotalQuantity int            `json:"total_quantity"`
}

// AuditPage is a page of grouped audit rows.
type AuditPage struct {
	Entries    []AuditEntry      `json:"entries"`
	Pagination shared.Pagination `json:"pagination"`
}
