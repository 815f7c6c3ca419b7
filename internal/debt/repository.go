package debt

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a4s/shopledger/internal/catalog"
	"github.com/a4s/shopledger/internal/platform/db"
	"github.com/a4s/shopledger/internal/sales"
	"github.com/a4s/shopledger/internal/shared"
)

// Repository reads and writes debt payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository describes the payment transaction.
type TxRepository interface {
	GetPaymentMethod(ctx context.Context, id int64) (catalog.PaymentMethod, error)
	// LockBalance locks the sale row and sums its payments.
	LockBalance(ctx context.Context, saleID int64) (Balance, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	// UpdateSaleStatus sets status; a nil paidAt keeps the stored value.
	UpdateSaleStatus(ctx context.Context, saleID int64, status sales.Status, paidAt *time.Time) error
}

type txRepository struct {
	*catalog.Repository
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("debt repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{Repository: catalog.NewRepository(tx), tx: tx})
	})
}

func (t *txRepository) LockBalance(ctx context.Context, saleID int64) (Balance, error) {
	b := Balance{SaleID: saleID}
	var status string
	err := t.tx.QueryRow(ctx, `SELECT total_amount, status FROM sales WHERE id = $1 FOR UPDATE`, saleID).Scan(&b.Total, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, shared.NotFound("sale", saleID)
	}
	if err != nil {
		return Balance{}, err
	}
	b.Status = sales.Status(status)
	err = t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount_paid), 0) FROM debt_payments WHERE sale_id = $1`, saleID).Scan(&b.Paid)
	return b, err
}

func (t *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO debt_payments
	(sale_id, amount_paid, payment_method_id, reference_no, notes, paid_by, paid_by_name, paid_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		p.SaleID, p.AmountPaid, p.PaymentMethodID, p.ReferenceNo, p.Notes, p.PaidBy, p.PaidByName, p.PaidAt).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateSaleStatus(ctx context.Context, saleID int64, status sales.Status, paidAt *time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE sales SET status = $2, paid_at = COALESCE($3, paid_at) WHERE id = $1`, saleID, string(status), paidAt)
	return err
}

const debtSelect = `SELECT s.id, s.sales_number, s.customer_name, s.total_amount, s.status, s.notes, s.created_at, s.paid_at,
	COALESCE(m.name, ''), pm.name, COALESCE(p.total_paid, 0)
FROM sales s
JOIN payment_methods pm ON pm.id = s.payment_method_id
LEFT JOIN mechanics m ON m.id = s.mechanic_id
LEFT JOIN (SELECT sale_id, SUM(amount_paid) AS total_paid FROM debt_payments GROUP BY sale_id) p ON p.sale_id = s.id`

func scanDebt(row pgx.Row) (Debt, error) {
	var (
		d      Debt
		status string
		paidAt pgtype.Timestamptz
	)
	if err := row.Scan(&d.SaleID, &d.SalesNumber, &d.CustomerName, &d.TotalAmount, &status, &d.Notes, &d.CreatedAt, &paidAt,
		&d.MechanicName, &d.PaymentMethod, &d.TotalPaid); err != nil {
		return Debt{}, err
	}
	d.Status = sales.Status(status)
	if paidAt.Valid {
		t := paidAt.Time
		d.PaidAt = &t
	}
	d.Remaining = shared.Round2(d.TotalAmount.Sub(d.TotalPaid))
	return d, nil
}

// ListOpenDebts returns Unresolved and Partial sales, oldest first.
func (r *Repository) ListOpenDebts(ctx context.Context) ([]Debt, error) {
	rows, err := r.pool.Query(ctx, debtSelect+` WHERE s.status IN ('Unresolved', 'Partial') ORDER BY s.created_at ASC, s.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	debts := []Debt{}
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

// GetDetail loads one sale with lines and payment history.
func (r *Repository) GetDetail(ctx context.Context, saleID int64) (Detail, error) {
	d, err := scanDebt(r.pool.QueryRow(ctx, debtSelect+` WHERE s.id = $1`, saleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, shared.NotFound("sale", saleID)
	}
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{Debt: d}
	if detail.Items, err = sales.LoadItems(ctx, r.pool, saleID); err != nil {
		return Detail{}, err
	}
	if detail.Services, err = sales.LoadServices(ctx, r.pool, saleID); err != nil {
		return Detail{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT dp.id, dp.sale_id, dp.amount_paid, dp.payment_method_id, pm.name, dp.reference_no, dp.notes,
	dp.paid_by, COALESCE(u.username, dp.paid_by_name), dp.paid_at
FROM debt_payments dp
JOIN payment_methods pm ON pm.id = dp.payment_method_id
LEFT JOIN users u ON u.id = dp.paid_by
WHERE dp.sale_id = $1 ORDER BY dp.paid_at ASC, dp.id ASC`, saleID)
	if err != nil {
		return Detail{}, err
	}
	defer rows.Close()
	detail.Payments = []Payment{}
	for rows.Next() {
		var (
			p      Payment
			paidBy pgtype.Int8
		)
		if err := rows.Scan(&p.ID, &p.SaleID, &p.AmountPaid, &p.PaymentMethodID, &p.PaymentMethodName, &p.ReferenceNo, &p.Notes,
			&paidBy, &p.PaidByName, &p.PaidAt); err != nil {
			return Detail{}, err
		}
		if paidBy.Valid {
			id := paidBy.Int64
			p.PaidBy = &id
		}
		detail.Payments = append(detail.Payments, p)
	}
	return detail, rows.Err()
}

// ListPaymentEvents returns the newest payments across all sales.
func (r *Repository) ListPaymentEvents(ctx context.Context, limit int) ([]PaymentEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT dp.paid_at, dp.amount_paid, dp.reference_no, s.id, s.sales_number, s.customer_name,
	COALESCE(u.username, dp.paid_by_name), pm.name
FROM debt_payments dp
JOIN sales s ON s.id = dp.sale_id
JOIN payment_methods pm ON pm.id = dp.payment_method_id
LEFT JOIN users u ON u.id = dp.paid_by
ORDER BY dp.paid_at DESC, dp.id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []PaymentEvent{}
	for rows.Next() {
		var e PaymentEvent
		if err := rows.Scan(&e.PaidAt, &e.AmountPaid, &e.ReferenceNo, &e.SaleID, &e.SalesNumber, &e.CustomerName, &e.PaidBy, &e.PaymentMethod); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
