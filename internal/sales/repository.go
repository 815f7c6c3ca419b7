package sales

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a4s/shopledger/internal/catalog"
	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/platform/db"
	"github.com/a4s/shopledger/internal/shared"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations settlement performs inside one transaction.
type TxRepository interface {
	inventory.MovementWriter
	GetPaymentMethod(ctx context.Context, id int64) (catalog.PaymentMethod, error)
	GetService(ctx context.Context, id int64) (catalog.Service, error)
	GetMechanic(ctx context.Context, id int64) (catalog.Mechanic, error)
	CountSalesBetween(ctx context.Context, from, to time.Time) (int, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleItem(ctx context.Context, item SaleItem) (int64, error)
	InsertSaleService(ctx context.Context, svc SaleService) (int64, error)
}

type txRepository struct {
	*catalog.Repository
	*inventory.Writer
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			Repository: catalog.NewRepository(tx),
			Writer:     inventory.NewWriter(tx),
			tx:         tx,
		})
	})
}

func (r *txRepository) CountSalesBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n)
	return n, err
}

func (r *txRepository) InsertSale(ctx context.Context, s Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales
	(sales_number, customer_name, total_amount, payment_method_id, reference_no, status, mechanic_id, service_fee, notes, created_at, paid_at, user_id, user_name)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		s.SalesNumber, s.CustomerName, s.TotalAmount, s.PaymentMethodID, s.ReferenceNo, string(s.Status), s.MechanicID,
		s.ServiceFee, s.Notes, s.CreatedAt, s.PaidAt, s.UserID, s.UserName).Scan(&id)
	return id, err
}

func (r *txRepository) InsertSaleItem(ctx context.Context, it SaleItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_items
	(sale_id, item_id, quantity, original_unit_price, discount_percent, discount_amount, final_unit_price, discount_approved_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		it.SaleID, it.ItemID, it.Quantity, it.OriginalUnitPrice, it.DiscountPercent, it.DiscountAmount, it.FinalUnitPrice, it.DiscountApprovedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertSaleService(ctx context.Context, s SaleService) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_services (sale_id, service_id, price) VALUES ($1,$2,$3) RETURNING id`,
		s.SaleID, s.ServiceID, s.Price).Scan(&id)
	return id, err
}

const saleColumns = `s.id, s.sales_number, s.customer_name, s.total_amount, s.payment_method_id, pm.name, s.reference_no, s.status,
	s.mechanic_id, COALESCE(me.name, ''), s.service_fee, s.notes, s.created_at, s.paid_at, s.user_id, s.user_name`

const saleFrom = `FROM sales s
JOIN payment_methods pm ON pm.id = s.payment_method_id
LEFT JOIN mechanics me ON me.id = s.mechanic_id`

// scanSale reads one row selected with saleColumns.
func scanSale(row pgx.Row) (Sale, error) {
	var (
		s          Sale
		status     string
		mechanicID pgtype.Int8
		userID     pgtype.Int8
		paidAt     pgtype.Timestamptz
	)
	if err := row.Scan(&s.ID, &s.SalesNumber, &s.CustomerName, &s.TotalAmount, &s.PaymentMethodID, &s.PaymentMethodName,
		&s.ReferenceNo, &status, &mechanicID, &s.MechanicName, &s.ServiceFee, &s.Notes, &s.CreatedAt, &paidAt, &userID, &s.UserName); err != nil {
		return Sale{}, err
	}
	s.Status = Status(status)
	if mechanicID.Valid {
		id := mechanicID.Int64
		s.MechanicID = &id
	}
	if userID.Valid {
		id := userID.Int64
		s.UserID = &id
	}
	if paidAt.Valid {
		t := paidAt.Time
		s.PaidAt = &t
	}
	return s, nil
}

// GetSale loads a sale with its item and service lines.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	s, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` `+saleFrom+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, shared.NotFound("sale", id)
	}
	if err != nil {
		return Sale{}, err
	}
	if s.Items, err = LoadItems(ctx, r.pool, id); err != nil {
		return Sale{}, err
	}
	if s.Services, err = LoadServices(ctx, r.pool, id); err != nil {
		return Sale{}, err
	}
	return s, nil
}

// LoadItems returns a sale's item lines with item names.
func LoadItems(ctx context.Context, q db.DBTX, saleID int64) ([]SaleItem, error) {
	rows, err := q.Query(ctx, `SELECT si.id, si.sale_id, si.item_id, i.name, si.quantity, si.original_unit_price,
	si.discount_percent, si.discount_amount, si.final_unit_price, si.discount_approved_by
FROM sale_items si JOIN items i ON i.id = si.item_id
WHERE si.sale_id = $1 ORDER BY si.id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SaleItem{}
	for rows.Next() {
		var it SaleItem
		var approver pgtype.Int8
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ItemID, &it.ItemName, &it.Quantity, &it.OriginalUnitPrice,
			&it.DiscountPercent, &it.DiscountAmount, &it.FinalUnitPrice, &approver); err != nil {
			return nil, err
		}
		if approver.Valid {
			id := approver.Int64
			it.DiscountApprovedBy = &id
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// LoadServices returns a sale's service lines with service names.
func LoadServices(ctx context.Context, q db.DBTX, saleID int64) ([]SaleService, error) {
	rows, err := q.Query(ctx, `SELECT ss.id, ss.sale_id, ss.service_id, sv.name, ss.price
FROM sale_services ss JOIN services sv ON sv.id = ss.service_id
WHERE ss.sale_id = $1 ORDER BY ss.id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	services := []SaleService{}
	for rows.Next() {
		var s SaleService
		if err := rows.Scan(&s.ID, &s.SaleID, &s.ServiceID, &s.ServiceName, &s.Price); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

const listWhere = `WHERE ($1::timestamptz IS NULL OR s.created_at >= $1)
	AND ($2::timestamptz IS NULL OR s.created_at < $2)
	AND ($3 = '' OR s.sales_number ILIKE '%' || $3 || '%' OR s.customer_name ILIKE '%' || $3 || '%')
	AND ($4 = '' OR s.status = $4)`

// ListSales returns sale headers newest first and the total match count.
func (r *Repository) ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	args := []any{filter.From, filter.To, filter.Search, string(filter.Status)}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales s `+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` `+saleFrom+` `+listWhere+`
ORDER BY s.created_at DESC, s.id DESC LIMIT $5 OFFSET $6`, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list := []Sale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, s)
	}
	return list, total, rows.Err()
}
