package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a4s/shopledger/internal/catalog"
	"github.com/a4s/shopledger/internal/sales"
)

// Repository runs the report queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesBetween returns every sale created in [from, to) with its services total.
func (r *Repository) SalesBetween(ctx context.Context, from, to time.Time) ([]SaleLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.sales_number, s.customer_name, s.mechanic_id, COALESCE(m.name, ''),
	COALESCE(m.commission_rate, 0), COALESCE(sv.total, 0), s.total_amount, s.status, pm.name, s.notes, s.created_at
FROM sales s
JOIN payment_methods pm ON pm.id = s.payment_method_id
LEFT JOIN mechanics m ON m.id = s.mechanic_id
LEFT JOIN (SELECT sale_id, SUM(price) AS total FROM sale_services GROUP BY sale_id) sv ON sv.sale_id = s.id
WHERE s.created_at >= $1 AND s.created_at < $2
ORDER BY s.created_at ASC, s.id ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaleLine
	for rows.Next() {
		var (
			l          SaleLine
			mechanicID pgtype.Int8
			status     string
		)
		if err := rows.Scan(&l.SaleID, &l.SalesNumber, &l.CustomerName, &mechanicID, &l.MechanicName, &l.CommissionRate,
			&l.ServicesTotal, &l.TotalAmount, &status, &l.PaymentMethod, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		if mechanicID.Valid {
			id := mechanicID.Int64
			l.MechanicID = &id
		}
		l.Status = sales.Status(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

// ItemsBetween aggregates sold item lines in [from, to) at final prices.
func (r *Repository) ItemsBetween(ctx context.Context, from, to time.Time) ([]ItemSummary, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.name, SUM(si.quantity)::int, SUM(si.quantity * si.final_unit_price)
FROM sale_items si
JOIN sales s ON s.id = si.sale_id
JOIN items i ON i.id = si.item_id
WHERE s.created_at >= $1 AND s.created_at < $2
GROUP BY i.id, i.name
ORDER BY 3 DESC, i.name ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ItemSummary{}
	for rows.Next() {
		var it ItemSummary
		if err := rows.Scan(&it.ItemID, &it.Name, &it.Quantity, &it.Revenue); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// DebtSales returns every sale settled with a Debt-category method and its payments total.
func (r *Repository) DebtSales(ctx context.Context) ([]DebtRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.sales_number, s.customer_name, s.total_amount, COALESCE(p.total, 0), s.status, s.created_at
FROM sales s
JOIN payment_methods pm ON pm.id = s.payment_method_id
LEFT JOIN (SELECT sale_id, SUM(amount_paid) AS total FROM debt_payments GROUP BY sale_id) p ON p.sale_id = s.id
WHERE pm.category = $1
ORDER BY s.created_at ASC, s.id ASC`, catalog.CategoryDebt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DebtRow{}
	for rows.Next() {
		var (
			d      DebtRow
			status string
		)
		if err := rows.Scan(&d.SaleID, &d.SalesNumber, &d.CustomerName, &d.TotalAmount, &d.TotalPaid, &status, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.StoredStatus = sales.Status(status)
		out = append(out, d)
	}
	return out, rows.Err()
}
