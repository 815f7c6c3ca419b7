package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/shared"
)

// RepositoryPort abstracts catalog persistence for CatalogService.
type RepositoryPort interface {
	UpsertItem(ctx context.Context, in ItemInput) (Item, bool, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	ListPaymentMethods(ctx context.Context, includeDebt bool) ([]PaymentMethod, error)
	ListServices(ctx context.Context) ([]Service, error)
	ListMechanics(ctx context.Context) ([]Mechanic, error)
}

// CatalogService exposes catalog lookups and the item upsert primitive shared
// by manual entry and bulk importers. Service is the labor entity.
type CatalogService struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds CatalogService.
func NewService(repo RepositoryPort, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{repo: repo, logger: logger}
}

// UpsertItem validates and stores an item, matching existing rows by normalized name.
func (s *CatalogService) UpsertItem(ctx context.Context, in ItemInput) (Item, bool, error) {
	if err := validateItem(in); err != nil {
		return Item{}, false, err
	}
	item, created, err := s.repo.UpsertItem(ctx, in)
	if err != nil {
		return Item{}, false, fmt.Errorf("catalog: upsert item: %w", err)
	}
	s.logger.Info("item upserted", slog.Int64("item_id", item.ID), slog.String("name", item.Name), slog.Bool("created", created))
	return item, created, nil
}

func validateItem(in ItemInput) error {
	if NormalizeName(in.Name) == "" {
		return shared.Invalid("item name is required")
	}
	prices := []struct {
		label string
		value decimal.Decimal
	}{
		{"vendor price", in.VendorPrice},
		{"cost per piece", in.CostPerPiece},
		{"selling price", in.SellingPrice},
	}
	for _, p := range prices {
		if p.value.IsNegative() {
			return shared.Invalid("%s cannot be negative", p.label)
		}
	}
	if in.ReorderLevel < 0 {
		return shared.Invalid("reorder level cannot be negative")
	}
	return nil
}

// GetItem returns an item or a not-found error.
func (s *CatalogService) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns all items.
func (s *CatalogService) ListItems(ctx context.Context) ([]Item, error) {
	return s.repo.ListItems(ctx)
}

// ListPaymentMethods returns active payment methods.
func (s *CatalogService) ListPaymentMethods(ctx context.Context, includeDebt bool) ([]PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx, includeDebt)
}

// ListServices returns active services.
func (s *CatalogService) ListServices(ctx context.Context) ([]Service, error) {
	return s.repo.ListServices(ctx)
}

// ListMechanics returns active mechanics.
func (s *CatalogService) ListMechanics(ctx context.Context) ([]Mechanic, error) {
	return s.repo.ListMechanics(ctx)
}
