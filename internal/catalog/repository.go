package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/a4s/shopledger/internal/platform/db"
	"github.com/a4s/shopledger/internal/shared"
)

// Repository reads and upserts catalog rows. It runs on whatever handle it
// is given, so other packages can use it inside their own transaction.
type Repository struct {
	q db.DBTX
}

// NewRepository constructs Repository.
func NewRepository(q db.DBTX) *Repository {
	return &Repository{q: q}
}

const itemColumns = `id, name, description, category, pack_size, vendor, vendor_price, cost_per_piece, selling_price, markup, reorder_level, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Category, &it.PackSize, &it.Vendor,
		&it.VendorPrice, &it.CostPerPiece, &it.SellingPrice, &it.Markup, &it.ReorderLevel, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// UpsertItem inserts or updates by normalized name. The bool reports an insert.
func (r *Repository) UpsertItem(ctx context.Context, in ItemInput) (Item, bool, error) {
	var (
		it       Item
		inserted bool
	)
	err := r.q.QueryRow(ctx, `INSERT INTO items (name, name_key, description, category, pack_size, vendor, vendor_price, cost_per_piece, selling_price, markup, reorder_level)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (name_key) DO UPDATE SET
	name=EXCLUDED.name, description=EXCLUDED.description, category=EXCLUDED.category, pack_size=EXCLUDED.pack_size,
	vendor=EXCLUDED.vendor, vendor_price=EXCLUDED.vendor_price, cost_per_piece=EXCLUDED.cost_per_piece,
	selling_price=EXCLUDED.selling_price, markup=EXCLUDED.markup, reorder_level=EXCLUDED.reorder_level, updated_at=NOW()
RETURNING `+itemColumns+`, (xmax = 0)`,
		CleanName(in.Name), NormalizeName(in.Name), in.Description, in.Category, in.PackSize, in.Vendor,
		in.VendorPrice, in.CostPerPiece, in.SellingPrice, in.Markup, in.ReorderLevel).
		Scan(&it.ID, &it.Name, &it.Description, &it.Category, &it.PackSize, &it.Vendor,
			&it.VendorPrice, &it.CostPerPiece, &it.SellingPrice, &it.Markup, &it.ReorderLevel, &it.CreatedAt, &it.UpdatedAt, &inserted)
	if err != nil {
		return Item{}, false, err
	}
	return it, inserted, nil
}

// GetItem loads an item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	it, err := scanItem(r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.NotFound("item", id)
	}
	return it, err
}

// FindItemByName looks an item up by its normalized name.
func (r *Repository) FindItemByName(ctx context.Context, name string) (Item, error) {
	it, err := scanItem(r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE name_key=$1`, NormalizeName(name)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.NotFound("item", name)
	}
	return it, err
}

// ListItems returns every item ordered by name.
func (r *Repository) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := r.q.Query(ctx, `SELECT `+itemColumns+` FROM items ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetPaymentMethod loads a payment method by id.
func (r *Repository) GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error) {
	var m PaymentMethod
	err := r.q.QueryRow(ctx, `SELECT id, name, category, active FROM payment_methods WHERE id=$1`, id).
		Scan(&m.ID, &m.Name, &m.Category, &m.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentMethod{}, shared.NotFound("payment method", id)
	}
	return m, err
}

// ListPaymentMethods returns active methods; debt methods are included when asked.
func (r *Repository) ListPaymentMethods(ctx context.Context, includeDebt bool) ([]PaymentMethod, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, category, active FROM payment_methods
WHERE active AND ($1 OR category <> $2) ORDER BY id`, includeDebt, CategoryDebt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	methods := []PaymentMethod{}
	for rows.Next() {
		var m PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &m.Active); err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

// GetService loads a service by id.
func (r *Repository) GetService(ctx context.Context, id int64) (Service, error) {
	var s Service
	err := r.q.QueryRow(ctx, `SELECT id, name, category, price, active FROM services WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.Category, &s.Price, &s.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Service{}, shared.NotFound("service", id)
	}
	return s, err
}

// ListServices returns active services.
func (r *Repository) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, category, price, active FROM services WHERE active ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	services := []Service{}
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.Price, &s.Active); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// GetMechanic loads a mechanic by id.
func (r *Repository) GetMechanic(ctx context.Context, id int64) (Mechanic, error) {
	var m Mechanic
	err := r.q.QueryRow(ctx, `SELECT id, name, commission_rate, phone, active FROM mechanics WHERE id=$1`, id).
		Scan(&m.ID, &m.Name, &m.CommissionRate, &m.Phone, &m.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Mechanic{}, shared.NotFound("mechanic", id)
	}
	return m, err
}

// ListMechanics returns active mechanics.
func (r *Repository) ListMechanics(ctx context.Context) ([]Mechanic, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, commission_rate, phone, active FROM mechanics WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	mechanics := []Mechanic{}
	for rows.Next() {
		var m Mechanic
		if err := rows.Scan(&m.ID, &m.Name, &m.CommissionRate, &m.Phone, &m.Active); err != nil {
			return nil, err
		}
		mechanics = append(mechanics, m)
	}
	return mechanics, rows.Err()
}
