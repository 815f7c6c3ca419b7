package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/platform/db"
	"github.com/a4s/shopledger/internal/shared"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes PO writes performed inside one transaction.
type TxRepository interface {
	inventory.MovementWriter
	CountOrdersBetween(ctx context.Context, from, to time.Time) (int, error)
	InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertLine(ctx context.Context, line LineItem) (int64, error)
	// LockOrder loads the PO and its lines with the header row locked.
	LockOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdateLineReceived(ctx context.Context, lineID int64, received int) error
	UpdateOrderReceipt(ctx context.Context, id int64, status Status, receivedAt time.Time) error
}

type txRepository struct {
	*inventory.Writer
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("procurement repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{Writer: inventory.NewWriter(tx), tx: tx})
	})
}

func (r *txRepository) CountOrdersBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n)
	return n, err
}

func (r *txRepository) InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (po_number, vendor_name, notes, status, total_amount, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		po.PONumber, po.VendorName, po.Notes, string(po.Status), po.TotalAmount, po.CreatedBy, po.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, l LineItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO po_line_items (po_id, item_id, quantity_ordered, quantity_received, unit_cost)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		l.POID, l.ItemID, l.QuantityOrdered, l.QuantityReceived, l.UnitCost).Scan(&id)
	return id, err
}

func (r *txRepository) LockOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders po WHERE po.id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, shared.NotFound("purchase order", id)
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = loadLines(ctx, r.tx, id)
	return po, err
}

func (r *txRepository) UpdateLineReceived(ctx context.Context, lineID int64, received int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE po_line_items SET quantity_received = $2 WHERE id = $1`, lineID, received)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("po line %d: %w", lineID, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) UpdateOrderReceipt(ctx context.Context, id int64, status Status, receivedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, received_at = $3 WHERE id = $1`, id, string(status), receivedAt)
	return err
}

const orderColumns = `po.id, po.po_number, po.vendor_name, po.notes, po.status, po.total_amount, po.created_by, po.created_at, po.received_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var (
		po         PurchaseOrder
		status     string
		createdBy  pgtype.Int8
		receivedAt pgtype.Timestamptz
	)
	if err := row.Scan(&po.ID, &po.PONumber, &po.VendorName, &po.Notes, &status, &po.TotalAmount, &createdBy, &po.CreatedAt, &receivedAt); err != nil {
		return PurchaseOrder{}, err
	}
	po.Status = Status(status)
	if createdBy.Valid {
		v := createdBy.Int64
		po.CreatedBy = &v
	}
	if receivedAt.Valid {
		v := receivedAt.Time
		po.ReceivedAt = &v
	}
	return po, nil
}

func loadLines(ctx context.Context, q db.DBTX, poID int64) ([]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT l.id, l.po_id, l.item_id, i.name, l.quantity_ordered, l.quantity_received, l.unit_cost
FROM po_line_items l JOIN items i ON i.id = l.item_id
WHERE l.po_id = $1 ORDER BY l.id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LineItem
	for rows.Next() {
		var l LineItem
		if err := rows.Scan(&l.ID, &l.POID, &l.ItemID, &l.ItemName, &l.QuantityOrdered, &l.QuantityReceived, &l.UnitCost); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetOrder loads a PO with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders po WHERE po.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, shared.NotFound("purchase order", id)
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = loadLines(ctx, r.pool, id)
	return po, err
}

// ListOrders returns PO headers newest first and the unpaged count.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	where := ""
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = " WHERE po.status = $1"
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders po`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM purchase_orders po%s ORDER BY po.created_at DESC, po.id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, po)
	}
	return orders, total, rows.Err()
}
