package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// CategoryDebt is the payment-method category that opens a customer debt.
const CategoryDebt = "Debt"

// Item is a stock-keeping unit. Items are never deleted because ledger rows reference them.
type Item struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	PackSize     string          `json:"pack_size"`
	Vendor       string          `json:"vendor"`
	VendorPrice  decimal.Decimal `json:"vendor_price"`
	CostPerPiece decimal.Decimal `json:"cost_per_piece"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Markup       decimal.Decimal `json:"markup"`
	ReorderLevel int             `json:"reorder_level"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ItemInput is the payload for UpsertItem.
type ItemInput struct {
	Name         string
	Description  string
	Category     string
	PackSize     string
	Vendor       string
	VendorPrice  decimal.Decimal
	CostPerPiece decimal.Decimal
	SellingPrice decimal.Decimal
	Markup       decimal.Decimal
	ReorderLevel int
}

// PaymentMethod is a tender type; Category drives sale status.
type PaymentMethod struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Active   bool   `json:"active"`
}

// IsDebt reports whether selling with this method records an utang.
func (m PaymentMethod) IsDebt() bool {
	return strings.EqualFold(m.Category, CategoryDebt)
}

// Service is billable labor.
type Service struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Active   bool            `json:"active"`
}

// Mechanic performs services and earns commission on them.
type Mechanic struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Phone          string          `json:"phone"`
	Active         bool            `json:"active"`
}

// NormalizeName returns the matching key for item names: trimmed, single
// spaced and case folded, so "oil  FILTER " and "Oil Filter" are one item.
func NormalizeName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// CleanName collapses whitespace but keeps the caller's casing for display.
func CleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
