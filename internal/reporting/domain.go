package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/debt"
	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/sales"
)

// DefaultQuota is the daily service floor a mechanic is paid commission on.
var DefaultQuota = decimal.NewFromInt(500)

// SaleLine is one sale as it appears on a report.
type SaleLine struct {
	SaleID         int64           `json:"sale_id"`
	SalesNumber    string          `json:"sales_number"`
	CustomerName   string          `json:"customer_name"`
	MechanicID     *int64          `json:"mechanic_id,omitempty"`
	MechanicName   string          `json:"mechanic,omitempty"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	ServicesTotal  decimal.Decimal `json:"services_total"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         sales.Status    `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MechanicPayout is a mechanic's commission for the reported period.
type MechanicPayout struct {
	MechanicID     int64           `json:"mechanic_id"`
	Name           string          `json:"name"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	ServicesTotal  decimal.Decimal `json:"services_total"`
	EffectiveBase  decimal.Decimal `json:"effective_base"`
	ShopTopUp      decimal.Decimal `json:"shop_topup"`
	Commission     decimal.Decimal `json:"commission"`
}

// ItemSummary aggregates item lines sold in the period.
type ItemSummary struct {
	ItemID   int64           `json:"item_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Report is the end-of-day (or range) sales summary.
type Report struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	Sales            []SaleLine       `json:"sales"`
	Unresolved       []SaleLine       `json:"unresolved"`
	Mechanics        []MechanicPayout `json:"mechanics"`
	Items            []ItemSummary    `json:"items"`
	TotalGross       decimal.Decimal  `json:"total_gross"`
	TotalMechanicCut decimal.Decimal  `json:"total_mechanic_cut"`
	TotalShopTopUp   decimal.Decimal  `json:"total_shop_topup"`
	NetRevenue       decimal.Decimal  `json:"net_revenue"`
}

// DebtRow is a Debt-category sale with its status re-derived from payments.
type DebtRow struct {
	SaleID       int64              `json:"sale_id"`
	SalesNumber  string             `json:"sales_number"`
	CustomerName string             `json:"customer_name"`
	TotalAmount  decimal.Decimal    `json:"total_amount"`
	TotalPaid    decimal.Decimal    `json:"total_paid"`
	Remaining    decimal.Decimal    `json:"remaining"`
	StoredStatus sales.Status       `json:"stored_status"`
	Status       debt.DerivedStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
}

// DebtSummary lists every debt sale with outstanding totals.
type DebtSummary struct {
	Debts       []DebtRow                  `json:"debts"`
	Outstanding decimal.Decimal            `json:"outstanding"`
	Counts      map[debt.DerivedStatus]int `json:"counts"`
}

// StockSnapshot is the stock position with inventory value at cost.
type StockSnapshot struct {
	Since *time.Time             `json:"since,omitempty"`
	Items []inventory.StockLevel `json:"items"`
	Value decimal.Decimal        `json:"value"`
}
