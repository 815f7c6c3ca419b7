package debt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/sales"
	"github.com/a4s/shopledger/internal/shared"
)

// DefaultEventLimit caps the payment feed.
const DefaultEventLimit = 100

// DerivedStatus is the settlement state computed from payments, independent
// of the stored sale status.
type DerivedStatus string

const (
	DerivedPaid    DerivedStatus = "paid"
	DerivedPartial DerivedStatus = "partial"
	DerivedUnpaid  DerivedStatus = "unpaid"
)

// DeriveStatus classifies a sale from its total and the sum of its payments.
func DeriveStatus(total, paid decimal.Decimal) DerivedStatus {
	switch {
	case shared.Round2(total.Sub(paid)).LessThanOrEqual(decimal.Zero):
		return DerivedPaid
	case paid.IsPositive():
		return DerivedPartial
	default:
		return DerivedUnpaid
	}
}

// Balance is a locked view of one sale's debt position.
type Balance struct {
	SaleID int64
	Status sales.Status
	Total  decimal.Decimal
	Paid   decimal.Decimal
}

// Remaining is total minus paid, rounded to centavos.
func (b Balance) Remaining() decimal.Decimal {
	return shared.Round2(b.Total.Sub(b.Paid))
}

// Debt is an open sale with its payment progress.
type Debt struct {
	SaleID        int64           `json:"sale_id"`
	SalesNumber   string          `json:"sales_number"`
	CustomerName  string          `json:"customer_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        sales.Status    `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	MechanicName  string          `json:"mechanic,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Remaining     decimal.Decimal `json:"remaining"`
}

// Payment is one recorded debt payment.
type Payment struct {
	ID                int64           `json:"id"`
	SaleID            int64           `json:"sale_id"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	PaymentMethodID   int64           `json:"payment_method_id"`
	PaymentMethodName string          `json:"payment_method,omitempty"`
	ReferenceNo       string          `json:"reference_no,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	PaidBy            *int64          `json:"paid_by,omitempty"`
	PaidByName        string          `json:"paid_by_name,omitempty"`
	PaidAt            time.Time       `json:"paid_at"`
}

// Detail is a sale with its lines and full payment history.
type Detail struct {
	Debt     Debt                `json:"sale"`
	Items    []sales.SaleItem    `json:"items"`
	Services []sales.SaleService `json:"services"`
	Payments []Payment           `json:"payments"`
}

// PaymentEvent is one row of the payment feed.
type PaymentEvent struct {
	PaidAt        time.Time       `json:"paid_at"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	ReferenceNo   string          `json:"reference_no,omitempty"`
	SaleID        int64           `json:"sale_id"`
	SalesNumber   string          `json:"sales_number"`
	CustomerName  string          `json:"customer_name"`
	PaidBy        string          `json:"paid_by,omitempty"`
	PaymentMethod string          `json:"payment_method"`
}

// PaymentInput is the payload for RecordPayment.
type PaymentInput struct {
	SaleID          int64
	Amount          decimal.Decimal
	PaymentMethodID int64
	ReferenceNo     string
	Notes           string
	Actor           shared.Actor
	IdempotencyKey  string
}

// PaymentResult reports the sale state after a payment.
type PaymentResult struct {
	PaymentID    int64           `json:"payment_id"`
	NewStatus    sales.Status    `json:"new_status"`
	NewRemaining decimal.Decimal `json:"new_remaining"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
}
