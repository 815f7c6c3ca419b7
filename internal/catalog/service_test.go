package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/a4s/shopledger/internal/shared"
)

type memoryRepo struct {
	items  map[string]Item
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string]Item)}
}

func (r *memoryRepo) UpsertItem(ctx context.Context, in ItemInput) (Item, bool, error) {
	key := NormalizeName(in.Name)
	existing, ok := r.items[key]
	if !ok {
		r.nextID++
		existing.ID = r.nextID
	}
	existing.Name = CleanName(in.Name)
	existing.Category = in.Category
	existing.SellingPrice = in.SellingPrice
	existing.ReorderLevel = in.ReorderLevel
	r.items[key] = existing
	return existing, !ok, nil
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	for _, it := range r.items {
		if it.ID == id {
			return it, nil
		}
	}
	return Item{}, shared.NotFound("item", id)
}

func (r *memoryRepo) ListItems(ctx context.Context) ([]Item, error) {
	out := make([]Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	return out, nil
}

func (r *memoryRepo) ListPaymentMethods(ctx context.Context, includeDebt bool) ([]PaymentMethod, error) {
	return nil, nil
}

func (r *memoryRepo) ListServices(ctx context.Context) ([]Service, error) { return nil, nil }

func (r *memoryRepo) ListMechanics(ctx context.Context) ([]Mechanic, error) { return nil, nil }

func TestNormalizeName(t *testing.T) {
	require.Equal(t, NormalizeName("Oil Filter"), NormalizeName("  oil   FILTER "))
	require.Equal(t, "Oil Filter", CleanName("  Oil   Filter "))
	require.Empty(t, NormalizeName("   "))
}

func TestUpsertItemMatchesByNormalizedName(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	first, created, err := svc.UpsertItem(ctx, ItemInput{Name: "Oil Filter", SellingPrice: decimal.NewFromInt(250), ReorderLevel: 5})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.UpsertItem(ctx, ItemInput{Name: "oil  filter", SellingPrice: decimal.NewFromInt(275), ReorderLevel: 5})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.SellingPrice.Equal(decimal.NewFromInt(275)))
}

func TestUpsertItemValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, _, err := svc.UpsertItem(ctx, ItemInput{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = svc.UpsertItem(ctx, ItemInput{Name: "Brake Pad", SellingPrice: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "selling price cannot be negative", shared.Message(err))

	_, _, err = svc.UpsertItem(ctx, ItemInput{Name: "Brake Pad", ReorderLevel: -3})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPaymentMethodIsDebt(t *testing.T) {
	require.True(t, PaymentMethod{Category: "Debt"}.IsDebt())
	require.True(t, PaymentMethod{Category: "debt"}.IsDebt())
	require.False(t, PaymentMethod{Category: "Online"}.IsDebt())
}
