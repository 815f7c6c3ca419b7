package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/shared"
)

// Status tracks whether a sale has been settled.
type Status string

const (
	StatusPaid       Status = "Paid"
	StatusUnresolved Status = "Unresolved"
	StatusPartial    Status = "Partial"
)

// Sale is the header of a settled transaction.
type Sale struct {
	ID                int64           `json:"id"`
	SalesNumber       string          `json:"sales_number"`
	CustomerName      string          `json:"customer_name"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaymentMethodID   int64           `json:"payment_method_id"`
	PaymentMethodName string          `json:"payment_method,omitempty"`
	ReferenceNo       string          `json:"reference_no,omitempty"`
	Status            Status          `json:"status"`
	MechanicID        *int64          `json:"mechanic_id,omitempty"`
	MechanicName      string          `json:"mechanic,omitempty"`
	ServiceFee        decimal.Decimal `json:"service_fee"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	UserID            *int64          `json:"user_id,omitempty"`
	UserName          string          `json:"user_name,omitempty"`
	Items             []SaleItem      `json:"items,omitempty"`
	Services          []SaleService   `json:"services,omitempty"`
}

// SaleItem records what was actually charged for one item line.
// FinalUnitPrice always equals OriginalUnitPrice minus DiscountAmount.
type SaleItem struct {
	ID                 int64           `json:"id"`
	SaleID             int64           `json:"sale_id"`
	ItemID             int64           `json:"item_id"`
	ItemName           string          `json:"item_name,omitempty"`
	Quantity           int             `json:"quantity"`
	OriginalUnitPrice  decimal.Decimal `json:"original_unit_price"`
	DiscountPercent    decimal.Decimal `json:"discount_percent"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	FinalUnitPrice     decimal.Decimal `json:"final_unit_price"`
	DiscountApprovedBy *int64          `json:"discount_approved_by,omitempty"`
}

// LineTotal is quantity times the discounted price.
func (i SaleItem) LineTotal() decimal.Decimal {
	return i.FinalUnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SaleService is billed labor on a sale.
type SaleService struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ServiceID   int64           `json:"service_id"`
	ServiceName string          `json:"service_name,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// ItemLine is one requested item line. DiscountPercent is a whole number
// (15 means 15%).
type ItemLine struct {
	ItemID          int64
	Quantity        int
	OriginalPrice   decimal.Decimal
	FinalPrice      decimal.Decimal
	DiscountPercent decimal.Decimal
}

// ServiceLine is one requested service. A nil Price bills the catalog price.
type ServiceLine struct {
	ServiceID int64
	Price     *decimal.Decimal
}

// RecordSaleInput is the payload for RecordSale.
type RecordSaleInput struct {
	CustomerName    string
	PaymentMethodID int64
	ReferenceNo     string
	Items           []ItemLine
	Services        []ServiceLine
	MechanicID      *int64
	Notes           string
	Actor           shared.Actor
	OccurredAt      time.Time
	IdempotencyKey  string
}

// ListFilter narrows ListSales.
type ListFilter struct {
	From    *time.Time
	To      *time.Time
	Search  string
	Status  Status
	Page    int
	PerPage int
}

// Page is a page of sale headers.
type Page struct {
	Sales      []Sale            `json:"sales"`
	Pagination shared.Pagination `json:"pagination"`
}
