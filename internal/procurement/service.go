package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives receiving counters.
type MetricsPort interface {
	ReceiptRecorded(status string)
	MovementRecorded(movementType string)
}

// Service orchestrates purchase orders.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
	logger  *slog.Logger
	loc     *time.Location
	now     func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Location *time.Location
	Now      func() time.Time
	Metrics  MetricsPort
	Logger   *slog.Logger
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	svc := &Service{repo: repo, audit: audit, metrics: cfg.Metrics, logger: cfg.Logger, loc: cfg.Location, now: cfg.Now}
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

// CreateOrder persists a PENDING PO and one ORDER movement per line.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (PurchaseOrder, error) {
	vendor := strings.TrimSpace(in.VendorName)
	if vendor == "" {
		return PurchaseOrder{}, shared.Invalid("vendor name is required")
	}
	if len(in.Lines) == 0 {
		return PurchaseOrder{}, shared.Invalid("a purchase order needs at least one line")
	}
	seen := make(map[int64]bool, len(in.Lines))
	total := decimal.Zero
	lines := make([]LineItem, 0, len(in.Lines))
	for _, l := range in.Lines {
		if l.ItemID <= 0 {
			return PurchaseOrder{}, shared.Invalid("item is required on every line")
		}
		if seen[l.ItemID] {
			return PurchaseOrder{}, shared.Invalid("item %d is listed more than once", l.ItemID)
		}
		seen[l.ItemID] = true
		if l.Quantity <= 0 {
			return PurchaseOrder{}, shared.Invalid("quantity for item %d must be positive", l.ItemID)
		}
		if l.UnitCost.IsNegative() {
			return PurchaseOrder{}, shared.Invalid("unit cost for item %d cannot be negative", l.ItemID)
		}
		cost := shared.Round2(l.UnitCost)
		total = total.Add(cost.Mul(decimal.NewFromInt(int64(l.Quantity))))
		lines = append(lines, LineItem{ItemID: l.ItemID, QuantityOrdered: l.Quantity, UnitCost: cost})
	}

	at := in.OccurredAt
	if at.IsZero() {
		at = s.now()
	}
	at = at.Truncate(time.Second)

	var created PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := s.nextNumber(ctx, tx, at)
		if err != nil {
			return err
		}
		po := PurchaseOrder{
			PONumber:    number,
			VendorName:  vendor,
			Notes:       strings.TrimSpace(in.Notes),
			Status:      StatusPending,
			TotalAmount: shared.Round2(total),
			CreatedAt:   at,
		}
		if !in.Actor.IsSystem() {
			uid := in.Actor.ID
			po.CreatedBy = &uid
		}
		id, err := tx.InsertOrder(ctx, po)
		if err != nil {
			return fmt.Errorf("procurement: insert order: %w", err)
		}
		po.ID = id
		for i := range lines {
			l := lines[i]
			cost := l.UnitCost
			if _, err := inventory.Append(ctx, tx, inventory.MovementInput{
				ItemID:     l.ItemID,
				Quantity:   l.QuantityOrdered,
				Type:       inventory.MovementOrder,
				Actor:      in.Actor,
				Reference:  &inventory.Reference{ID: id, Type: inventory.ReferencePurchaseOrder},
				Reason:     inventory.ReasonOrderPlacement,
				UnitPrice:  &cost,
				OccurredAt: at,
			}); err != nil {
				return err
			}
			l.POID = id
			lineID, err := tx.InsertLine(ctx, l)
			if err != nil {
				return fmt.Errorf("procurement: insert line: %w", err)
			}
			l.ID = lineID
			lines[i] = l
		}
		po.Lines = lines
		created = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	if s.metrics != nil {
		for range created.Lines {
			s.metrics.MovementRecorded(string(inventory.MovementOrder))
		}
	}
	s.recordAudit(ctx, in.Actor.ID, "PO_CREATE", created.ID, map[string]any{
		"po_number": created.PONumber,
		"vendor":    created.VendorName,
		"total":     created.TotalAmount.StringFixed(2),
	})
	s.logger.Info("purchase order created",
		slog.Int64("po_id", created.ID),
		slog.String("po_number", created.PONumber),
		slog.Int("lines", len(created.Lines)))
	return created, nil
}

// Receive records arrivals against a PO. Every entry is validated against
// the locked PO before any ledger row is written.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (PurchaseOrder, error) {
	if in.OrderID <= 0 {
		return PurchaseOrder{}, shared.Invalid("purchase order id is required")
	}
	at := in.OccurredAt
	if at.IsZero() {
		at = s.now()
	}
	at = at.Truncate(time.Second)

	var (
		updated PurchaseOrder
		steps   []receiptStep
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		plan, err := planReceipt(po.Lines, in.Entries)
		if err != nil {
			return err
		}
		for _, step := range plan.steps {
			cost := step.line.UnitCost
			if _, err := inventory.Append(ctx, tx, inventory.MovementInput{
				ItemID:     step.line.ItemID,
				Quantity:   step.quantity,
				Type:       inventory.MovementIn,
				Actor:      in.Actor,
				Reference:  &inventory.Reference{ID: po.ID, Type: inventory.ReferencePurchaseOrder},
				Reason:     step.reason,
				UnitPrice:  &cost,
				OccurredAt: at,
				Notes:      step.note,
			}); err != nil {
				return err
			}
		}
		for _, l := range po.Lines {
			if n, ok := plan.received[l.ID]; ok {
				if err := tx.UpdateLineReceived(ctx, l.ID, n); err != nil {
					return fmt.Errorf("procurement: update line: %w", err)
				}
			}
		}
		po.Lines = plan.apply(po.Lines)
		po.Status = DeriveStatus(po.Lines)
		po.ReceivedAt = &at
		if err := tx.UpdateOrderReceipt(ctx, po.ID, po.Status, at); err != nil {
			return fmt.Errorf("procurement: update order: %w", err)
		}
		updated = po
		steps = plan.steps
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	if s.metrics != nil {
		s.metrics.ReceiptRecorded(string(updated.Status))
		for range steps {
			s.metrics.MovementRecorded(string(inventory.MovementIn))
		}
	}
	bonus := 0
	for _, st := range steps {
		if st.reason == inventory.ReasonBonusStock {
			bonus += st.quantity
		}
	}
	s.recordAudit(ctx, in.Actor.ID, "PO_RECEIVE", updated.ID, map[string]any{
		"po_number": updated.PONumber,
		"status":    updated.Status,
		"movements": len(steps),
		"bonus_qty": bonus,
	})
	s.logger.Info("purchase order received",
		slog.Int64("po_id", updated.ID),
		slog.String("status", string(updated.Status)),
		slog.Int("movements", len(steps)))
	return updated, nil
}

func (s *Service) nextNumber(ctx context.Context, tx TxRepository, at time.Time) (string, error) {
	local := at.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	n, err := tx.CountOrdersBetween(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return "", fmt.Errorf("procurement: count orders: %w", err)
	}
	return fmt.Sprintf("PO-%s-%03d", local.Format("20060102"), n+1), nil
}

// GetOrder returns a PO with its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	if id <= 0 {
		return PurchaseOrder{}, shared.Invalid("purchase order id is required")
	}
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns a page of PO headers.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) (Page, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return Page{}, shared.Invalid("unknown purchase order status %q", filter.Status)
	}
	if filter.PerPage <= 0 {
		filter.PerPage = shared.DefaultPerPage
	}
	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	return Page{Orders: orders, Pagination: shared.NewPagination(filter.Page, filter.PerPage, total)}, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("procurement audit", slog.Any("error", err))
	}
}
