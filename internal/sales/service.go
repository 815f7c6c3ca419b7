package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/shared"
)

const idempotencyModule = "sales"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id int64) (Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against double submission when the client sends a key.
type IdempotencyPort interface {
	Claim(ctx context.Context, module, key string) error
	Release(ctx context.Context, module, key string) error
}

// MetricsPort receives settlement counters.
type MetricsPort interface {
	SaleRecorded(status string)
	MovementRecorded(movementType string)
}

// Service settles sales.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	metrics     MetricsPort
	logger      *slog.Logger
	loc         *time.Location
	now         func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Location *time.Location
	Now      func() time.Time
	Metrics  MetricsPort
	Logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cfg ServiceConfig) *Service {
	svc := &Service{repo: repo, audit: audit, idempotency: idem, metrics: cfg.Metrics, logger: cfg.Logger, loc: cfg.Location, now: cfg.Now}
	if svc.loc == nil {
		svc.loc = time.Local
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// RecordSale writes the sale header, its item and service lines and one
// ledger OUT per item line in a single transaction. Ledger rows carry the
// original unit price; discounts live only on the SaleItem rows.
func (s *Service) RecordSale(ctx context.Context, in RecordSaleInput) (Sale, error) {
	if len(in.Items) == 0 && len(in.Services) == 0 {
		return Sale{}, shared.Invalid("a sale needs at least one item or service")
	}
	if in.PaymentMethodID <= 0 {
		return Sale{}, shared.Invalid("payment method is required")
	}
	items := make([]SaleItem, 0, len(in.Items))
	for _, line := range in.Items {
		it, err := priceItemLine(line)
		if err != nil {
			return Sale{}, err
		}
		if it.DiscountAmount.IsPositive() && !in.Actor.IsSystem() {
			approver := in.Actor.ID
			it.DiscountApprovedBy = &approver
		}
		items = append(items, it)
	}
	for _, line := range in.Services {
		if line.ServiceID <= 0 {
			return Sale{}, shared.Invalid("service is required on every service line")
		}
		if line.Price != nil && line.Price.IsNegative() {
			return Sale{}, shared.Invalid("service price cannot be negative")
		}
	}

	if in.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Claim(ctx, idempotencyModule, in.IdempotencyKey); err != nil {
			return Sale{}, err
		}
	}

	at := in.OccurredAt
	if at.IsZero() {
		at = s.now()
	}
	at = at.Truncate(time.Second)

	var created Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		method, err := tx.GetPaymentMethod(ctx, in.PaymentMethodID)
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Invalid("invalid payment method")
		}
		if err != nil {
			return err
		}
		if !method.Active {
			return shared.Invalid("payment method %s is inactive", method.Name)
		}
		status := StatusPaid
		if method.IsDebt() {
			status = StatusUnresolved
		}

		if in.MechanicID != nil {
			mech, err := tx.GetMechanic(ctx, *in.MechanicID)
			if errors.Is(err, shared.ErrNotFound) {
				return shared.Invalid("unknown mechanic %d", *in.MechanicID)
			}
			if err != nil {
				return err
			}
			if !mech.Active {
				return shared.Invalid("mechanic %s is inactive", mech.Name)
			}
		}

		services := make([]SaleService, 0, len(in.Services))
		for _, line := range in.Services {
			svc, err := tx.GetService(ctx, line.ServiceID)
			if errors.Is(err, shared.ErrNotFound) {
				return shared.Invalid("unknown service %d", line.ServiceID)
			}
			if err != nil {
				return err
			}
			if !svc.Active {
				return shared.Invalid("service %s is inactive", svc.Name)
			}
			price := svc.Price
			if line.Price != nil {
				price = *line.Price
			}
			services = append(services, SaleService{ServiceID: svc.ID, ServiceName: svc.Name, Price: shared.Round2(price)})
		}

		number, err := s.nextNumber(ctx, tx, at)
		if err != nil {
			return err
		}
		serviceFee, total := totals(items, services)
		sale := Sale{
			SalesNumber:       number,
			CustomerName:      strings.TrimSpace(in.CustomerName),
			TotalAmount:       total,
			PaymentMethodID:   method.ID,
			PaymentMethodName: method.Name,
			ReferenceNo:       strings.TrimSpace(in.ReferenceNo),
			Status:            status,
			MechanicID:        in.MechanicID,
			ServiceFee:        serviceFee,
			Notes:             strings.TrimSpace(in.Notes),
			CreatedAt:         at,
			UserName:          in.Actor.Name,
		}
		if status == StatusPaid {
			paidAt := at
			sale.PaidAt = &paidAt
		}
		if !in.Actor.IsSystem() {
			uid := in.Actor.ID
			sale.UserID = &uid
		}
		saleID, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return fmt.Errorf("sales: insert sale: %w", err)
		}
		sale.ID = saleID

		for i := range items {
			it := items[i]
			price := it.OriginalUnitPrice
			if _, err := inventory.Append(ctx, tx, inventory.MovementInput{
				ItemID:     it.ItemID,
				Quantity:   it.Quantity,
				Type:       inventory.MovementOut,
				Actor:      in.Actor,
				Reference:  &inventory.Reference{ID: saleID, Type: inventory.ReferenceSale},
				Reason:     inventory.ReasonCustomerPurchase,
				UnitPrice:  &price,
				OccurredAt: at,
			}); err != nil {
				return err
			}
			it.SaleID = saleID
			id, err := tx.InsertSaleItem(ctx, it)
			if err != nil {
				return fmt.Errorf("sales: insert sale item: %w", err)
			}
			it.ID = id
			items[i] = it
		}
		for i := range services {
			services[i].SaleID = saleID
			id, err := tx.InsertSaleService(ctx, services[i])
			if err != nil {
				return fmt.Errorf("sales: insert sale service: %w", err)
			}
			services[i].ID = id
		}
		sale.Items = items
		sale.Services = services
		created = sale
		return nil
	})
	if err != nil {
		if in.IdempotencyKey != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, idempotencyModule, in.IdempotencyKey); relErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", relErr))
			}
		}
		return Sale{}, err
	}

	if s.metrics != nil {
		s.metrics.SaleRecorded(string(created.Status))
		for range created.Items {
			s.metrics.MovementRecorded(string(inventory.MovementOut))
		}
	}
	s.recordAudit(ctx, in.Actor.ID, "SALE_RECORD", created.ID, map[string]any{
		"sales_number": created.SalesNumber,
		"total":        created.TotalAmount.StringFixed(2),
		"status":       created.Status,
		"items":        len(created.Items),
		"services":     len(created.Services),
	})
	s.logger.Info("sale recorded",
		slog.Int64("sale_id", created.ID),
		slog.String("sales_number", created.SalesNumber),
		slog.String("status", string(created.Status)),
		slog.String("total", created.TotalAmount.StringFixed(2)))
	return created, nil
}

// nextNumber builds SALE-YYYYMMDD-NNN from the count of sales already
// recorded that day. It is a display label, not an identifier.
func (s *Service) nextNumber(ctx context.Context, tx TxRepository, at time.Time) (string, error) {
	local := at.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	n, err := tx.CountSalesBetween(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return "", fmt.Errorf("sales: count sales: %w", err)
	}
	return fmt.Sprintf("SALE-%s-%03d", local.Format("20060102"), n+1), nil
}

// GetSale returns a sale with its lines.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	if id <= 0 {
		return Sale{}, shared.Invalid("sale id is required")
	}
	return s.repo.GetSale(ctx, id)
}

// ListSales returns a page of sale headers.
func (s *Service) ListSales(ctx context.Context, filter ListFilter) (Page, error) {
	switch filter.Status {
	case "", StatusPaid, StatusUnresolved, StatusPartial:
	default:
		return Page{}, shared.Invalid("unknown sale status %q", filter.Status)
	}
	if filter.PerPage <= 0 {
		filter.PerPage = shared.DefaultPerPage
	}
	filter.Search = strings.TrimSpace(filter.Search)
	list, total, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	return Page{Sales: list, Pagination: shared.NewPagination(filter.Page, filter.PerPage, total)}, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("sales audit", slog.Any("error", err))
	}
}
