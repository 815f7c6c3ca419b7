package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a4s/shopledger/internal/platform/db"
	"github.com/a4s/shopledger/internal/shared"
)

// Repository persists and reads the ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	MovementWriter
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewWriter(tx))
	})
}

// Writer appends ledger rows on any handle, including a foreign transaction.
type Writer struct {
	q db.DBTX
}

// NewWriter binds a Writer to q.
func NewWriter(q db.DBTX) *Writer {
	return &Writer{q: q}
}

// ItemExists reports whether the item id is known.
func (w *Writer) ItemExists(ctx context.Context, itemID int64) (bool, error) {
	var ok bool
	err := w.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id=$1)`, itemID).Scan(&ok)
	return ok, err
}

// InsertMovement writes one immutable row.
func (w *Writer) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var refID pgtype.Int8
	var refType pgtype.Text
	if m.Reference != nil {
		refID = pgtype.Int8{Int64: m.Reference.ID, Valid: true}
		refType = pgtype.Text{String: string(m.Reference.Type), Valid: true}
	}
	var id int64
	err := w.q.QueryRow(ctx, `INSERT INTO inventory_movements
	(item_id, quantity, movement_type, occurred_at, user_id, user_name, reference_id, reference_type, reason, unit_price, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		m.ItemID, m.Quantity, string(m.Type), m.OccurredAt, m.UserID, nullText(m.UserName),
		refID, refType, nullText(string(m.Reason)), m.UnitPrice, nullText(m.Notes)).Scan(&id)
	return id, err
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// stockLevelsSQL takes $1 as the optional snapshot cutoff.
var stockLevelsSQL = fmt.Sprintf(`SELECT i.id, i.name, i.category, i.reorder_level, i.selling_price, i.cost_per_piece,
	COALESCE(SUM(%s), 0) AS total_in,
	COALESCE(SUM(%s), 0) AS total_out,
	COALESCE(SUM(%s), 0) AS stock
FROM items i
LEFT JOIN inventory_movements m ON m.item_id = i.id
GROUP BY i.id`,
	quantityBySignSQL("m", "$1", 1),
	quantityBySignSQL("m", "$1", -1),
	signedQuantitySQL("m", "$1"))

// CurrentStock derives one item's stock. since nil is the all-time view.
func (r *Repository) CurrentStock(ctx context.Context, itemID int64, since *time.Time) (StockLevel, error) {
	var lvl StockLevel
	err := r.pool.QueryRow(ctx, `SELECT * FROM (`+stockLevelsSQL+`) s WHERE s.id = $2`, since, itemID).
		Scan(&lvl.ItemID, &lvl.Name, &lvl.Category, &lvl.ReorderLevel, &lvl.SellingPrice, &lvl.CostPerPiece, &lvl.TotalIn, &lvl.TotalOut, &lvl.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockLevel{}, shared.NotFound("item", itemID)
	}
	return lvl, err
}

// StockLevels derives stock for every item.
func (r *Repository) StockLevels(ctx context.Context, since *time.Time) ([]StockLevel, error) {
	return r.queryLevels(ctx, `SELECT * FROM (`+stockLevelsSQL+`) s ORDER BY s.name`, since)
}

// LowStock lists items at or below their reorder level.
func (r *Repository) LowStock(ctx context.Context) ([]StockLevel, error) {
	return r.queryLevels(ctx, `SELECT * FROM (`+stockLevelsSQL+`) s WHERE s.stock <= s.reorder_level ORDER BY s.stock, s.name`, nil)
}

func (r *Repository) queryLevels(ctx context.Context, sql string, since *time.Time) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, sql, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	levels := []StockLevel{}
	for rows.Next() {
		var lvl StockLevel
		if err := rows.Scan(&lvl.ItemID, &lvl.Name, &lvl.Category, &lvl.ReorderLevel, &lvl.SellingPrice, &lvl.CostPerPiece, &lvl.TotalIn, &lvl.TotalOut, &lvl.Stock); err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

// HotItems ranks items by units sold since the cutoff.
func (r *Repository) HotItems(ctx context.Context, since time.Time, limit int) ([]HotItem, error) {
	rows, err := r.pool.Query(ctx, `WITH levels AS (`+stockLevelsSQL+`),
sold AS (
	SELECT item_id, SUM(quantity) AS units FROM inventory_movements
	WHERE movement_type = $2 AND occurred_at >= $3
	GROUP BY item_id
)
SELECT l.id, l.name, s.units, l.stock
FROM sold s JOIN levels l ON l.id = s.item_id
ORDER BY s.units DESC, l.name
LIMIT $4`, nil, string(MovementOut), since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []HotItem{}
	for rows.Next() {
		var it HotItem
		if err := rows.Scan(&it.ItemID, &it.Name, &it.UnitsOut, &it.Stock); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DeadStock lists items with stock on hand that have not sold since the cutoff.
func (r *Repository) DeadStock(ctx context.Context, since time.Time) ([]DeadItem, error) {
	rows, err := r.pool.Query(ctx, `WITH levels AS (`+stockLevelsSQL+`),
last_out AS (
	SELECT item_id, MAX(occurred_at) AS last_out FROM inventory_movements
	WHERE movement_type = $2
	GROUP BY item_id
)
SELECT l.id, l.name, l.stock, lo.last_out
FROM levels l LEFT JOIN last_out lo ON lo.item_id = l.id
WHERE l.stock > 0 AND (lo.last_out IS NULL OR lo.last_out < $3)
ORDER BY lo.last_out NULLS FIRST, l.name`, nil, string(MovementOut), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DeadItem{}
	for rows.Next() {
		var it DeadItem
		var last pgtype.Timestamptz
		if err := rows.Scan(&it.ItemID, &it.Name, &it.Stock, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			it.LastOut = &t
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DashboardStats aggregates ledger and sales counters for [dayStart, dayEnd).
func (r *Repository) DashboardStats(ctx context.Context, dayStart, dayEnd time.Time) (DashboardStats, error) {
	var st DashboardStats
	err := r.pool.QueryRow(ctx, `WITH levels AS (`+stockLevelsSQL+`)
SELECT
	(SELECT COUNT(*) FROM levels),
	(SELECT COUNT(*) FROM levels WHERE stock <= reorder_level),
	(SELECT COUNT(*) FROM levels WHERE stock <= 0),
	(SELECT COALESCE(SUM(stock), 0) FROM levels WHERE stock > 0),
	(SELECT COALESCE(SUM(stock * cost_per_piece), 0) FROM levels WHERE stock > 0),
	(SELECT COUNT(*) FROM sales WHERE created_at >= $2 AND created_at < $3),
	(SELECT COALESCE(SUM(total_amount), 0) FROM sales WHERE created_at >= $2 AND created_at < $3),
	(SELECT COUNT(*) FROM sales WHERE status IN ('Unresolved', 'Partial')),
	(SELECT COUNT(*) FROM purchase_orders WHERE status <> 'COMPLETED')`, nil, dayStart, dayEnd).
		Scan(&st.ItemCount, &st.LowStockCount, &st.OutOfStockCount, &st.UnitsOnHand, &st.StockValue,
			&st.TodaySalesCount, &st.TodaySales, &st.OpenDebtCount, &st.PendingPOCount)
	return st, err
}

// MovementSeries buckets movements per calendar day in tz since from.
func (r *Repository) MovementSeries(ctx context.Context, itemID *int64, from time.Time, tz string) ([]SeriesPoint, error) {
	sql := fmt.Sprintf(`SELECT (date_trunc('day', m.occurred_at AT TIME ZONE $3))::date AS day,
	COALESCE(SUM(%s), 0), COALESCE(SUM(%s), 0), COALESCE(SUM(%s), 0)
FROM inventory_movements m
WHERE m.occurred_at >= $1 AND ($2::bigint IS NULL OR m.item_id = $2)
GROUP BY day ORDER BY day`,
		quantityBySignSQL("m", "", 1), quantityBySignSQL("m", "", -1), signedQuantitySQL("m", ""))
	rows, err := r.pool.Query(ctx, sql, from, itemID, tz)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	points := []SeriesPoint{}
	for rows.Next() {
		var p SeriesPoint
		var day pgtype.Date
		if err := rows.Scan(&day, &p.In, &p.Out, &p.Net); err != nil {
			return nil, err
		}
		p.Day = day.Time
		points = append(points, p)
	}
	return points, rows.Err()
}

// Integrity summarises the whole ledger and flags items with negative stock.
func (r *Repository) Integrity(ctx context.Context) (IntegrityReport, error) {
	var rep IntegrityReport
	var earliest, latest pgtype.Timestamptz
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*),
	COALESCE(SUM(%s), 0), COALESCE(SUM(%s), 0),
	COALESCE(SUM(CASE WHEN m.movement_type = '%s' THEN m.quantity ELSE 0 END), 0),
	MIN(m.occurred_at), MAX(m.occurred_at)
FROM inventory_movements m`, quantityBySignSQL("m", "", 1), quantityBySignSQL("m", "", -1), MovementOrder)).
		Scan(&rep.Movements, &rep.TotalIn, &rep.TotalOut, &rep.TotalOrdered, &earliest, &latest)
	if err != nil {
		return IntegrityReport{}, err
	}
	if earliest.Valid {
		rep.EarliestMoveAt = &earliest.Time
	}
	if latest.Valid {
		rep.LatestMoveAt = &latest.Time
	}
	rows, err := r.pool.Query(ctx, `SELECT s.id FROM (`+stockLevelsSQL+`) s WHERE s.stock < 0 ORDER BY s.id`, nil)
	if err != nil {
		return IntegrityReport{}, err
	}
	defer rows.Close()
	rep.NegativeItems = []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return IntegrityReport{}, err
		}
		rep.NegativeItems = append(rep.NegativeItems, id)
	}
	return rep, rows.Err()
}

const auditGroupSQL = `FROM inventory_movements m
JOIN items i ON i.id = m.item_id
WHERE ($1::timestamptz IS NULL OR m.occurred_at >= $1)
	AND ($2::timestamptz IS NULL OR m.occurred_at < $2)
	AND ($3 = '' OR m.movement_type = $3)
	AND ($4 = '' OR i.name ILIKE '%' || $4 || '%' OR COALESCE(m.notes, '') ILIKE '%' || $4 || '%')
GROUP BY m.occurred_at, m.movement_type, m.reason, m.reference_id, m.reference_type`

// AuditTrail returns grouped ledger rows newest first.
func (r *Repository) AuditTrail(ctx context.Context, filter AuditFilter) ([]AuditEntry, int, error) {
	args := []any{filter.From, filter.To, string(filter.Type), filter.Search}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM (SELECT 1 `+auditGroupSQL+`) g`, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	rows, err := r.pool.Query(ctx, `SELECT m.occurred_at, m.movement_type, COALESCE(m.reason, ''), m.reference_id, m.reference_type,
	COALESCE(MAX(m.user_name), ''),
	string_agg(i.name || ' x' || m.quantity, ', ' ORDER BY i.name),
	COUNT(*), SUM(m.quantity)
`+auditGroupSQL+`
ORDER BY m.occurred_at DESC
LIMIT $5 OFFSET $6`, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	entries := []AuditEntry{}
	for rows.Next() {
		var (
			e       AuditEntry
			typ     string
			reason  string
			refID   pgtype.Int8
			refType pgtype.Text
		)
		if err := rows.Scan(&e.OccurredAt, &typ, &reason, &refID, &refType, &e.UserName, &e.Items, &e.Lines, &e.TotalQuantity); err != nil {
			return nil, 0, err
		}
		e.Type = MovementType(typ)
		e.Reason = Reason(reason)
		if refID.Valid {
			id := refID.Int64
			e.ReferenceID = &id
		}
		if refType.Valid {
			rt := ReferenceType(refType.String)
			e.ReferenceType = &rt
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// EachMovement streams movements with item names, oldest first.
func (r *Repository) EachMovement(ctx context.Context, from, to *time.Time, fn func(Movement, string) error) error {
	rows, err := r.pool.Query(ctx, `SELECT m.id, m.item_id, i.name, m.quantity, m.movement_type, m.occurred_at, m.user_id,
	COALESCE(m.user_name, ''), m.reference_id, m.reference_type, COALESCE(m.reason, ''), m.unit_price, COALESCE(m.notes, '')
FROM inventory_movements m JOIN items i ON i.id = m.item_id
WHERE ($1::timestamptz IS NULL OR m.occurred_at >= $1) AND ($2::timestamptz IS NULL OR m.occurred_at < $2)
ORDER BY m.occurred_at, m.id`, from, to)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m       Movement
			name    string
			typ     string
			reason  string
			userID  pgtype.Int8
			refID   pgtype.Int8
			refType pgtype.Text
		)
		if err := rows.Scan(&m.ID, &m.ItemID, &name, &m.Quantity, &typ, &m.OccurredAt, &userID,
			&m.UserName, &refID, &refType, &reason, &m.UnitPrice, &m.Notes); err != nil {
			return err
		}
		m.Type = MovementType(typ)
		m.Reason = Reason(reason)
		if userID.Valid {
			id := userID.Int64
			m.UserID = &id
		}
		if refID.Valid && refType.Valid {
			m.Reference = &Reference{ID: refID.Int64, Type: ReferenceType(refType.String)}
		}
		if err := fn(m, name); err != nil {
			return err
		}
	}
	return rows.Err()
}
