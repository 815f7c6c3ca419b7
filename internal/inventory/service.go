package inventory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/a4s/shopledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CurrentStock(ctx context.Context, itemID int64, since *time.Time) (StockLevel, error)
	StockLevels(ctx context.Context, since *time.Time) ([]StockLevel, error)
	LowStock(ctx context.Context) ([]StockLevel, error)
	HotItems(ctx context.Context, since time.Time, limit int) ([]HotItem, error)
	DeadStock(ctx context.Context, since time.Time) ([]DeadItem, error)
	DashboardStats(ctx context.Context, dayStart, dayEnd time.Time) (DashboardStats, error)
	MovementSeries(ctx context.Context, itemID *int64, from time.Time, tz string) ([]SeriesPoint, error)
	Integrity(ctx context.Context) (IntegrityReport, error)
	AuditTrail(ctx context.Context, filter AuditFilter) ([]AuditEntry, int, error)
	EachMovement(ctx context.Context, from, to *time.Time, fn func(Movement, string) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives ledger counters.
type MetricsPort interface {
	MovementRecorded(movementType string)
}

// Service coordinates inventory operations.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
	logger  *slog.Logger
	loc     *time.Location
	now     func() time.Time
	group   singleflight.Group
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Location *time.Location
	Now      func() time.Time
	Metrics  MetricsPort
	Logger   *slog.Logger
}

// NewService builds Service.
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

// RecordMovement appends a manual IN or OUT entry in its own transaction.
// ORDER rows and document references belong to the sale and purchase flows.
func (s *Service) RecordMovement(ctx context.Context, in MovementInput) (Movement, error) {
	if in.Type != MovementIn && in.Type != MovementOut {
		return Movement{}, shared.Invalid("manual entries must be IN or OUT")
	}
	if in.Reference != nil {
		return Movement{}, shared.Invalid("manual entries cannot reference a sale or purchase order")
	}
	if in.Reason == "" {
		in.Reason = ReasonManualEntry
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.now()
	}
	var created Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := Append(ctx, tx, in)
		if err != nil {
			return err
		}
		created = m
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	if s.metrics != nil {
		s.metrics.MovementRecorded(string(created.Type))
	}
	s.recordAudit(ctx, in.Actor.ID, "MOVEMENT_RECORD", created.ID, map[string]any{
		"item_id":  created.ItemID,
		"type":     created.Type,
		"quantity": created.Quantity,
		"reason":   created.Reason,
	})
	return created, nil
}

// CurrentStock returns one item's stock; since nil gives the all-time figure.
func (s *Service) CurrentStock(ctx context.Context, itemID int64, since *time.Time) (StockLevel, error) {
	if itemID <= 0 {
		return StockLevel{}, shared.Invalid("item id is required")
	}
	return s.repo.CurrentStock(ctx, itemID, since)
}

// StockLevels returns stock for every item.
func (s *Service) StockLevels(ctx context.Context, since *time.Time) ([]StockLevel, error) {
	return s.repo.StockLevels(ctx, since)
}

// LowStock lists items at or below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]StockLevel, error) {
	return s.repo.LowStock(ctx)
}

// HotItems ranks best sellers over the last days.
func (s *Service) HotItems(ctx context.Context, days, limit int) ([]HotItem, error) {
	if days <= 0 {
		days = 30
	}
	if limit <= 0 {
		limit = 10
	}
	return s.repo.HotItems(ctx, s.now().AddDate(0, 0, -days), limit)
}

// DeadStock lists items with stock that have not sold in the last days.
func (s *Service) DeadStock(ctx context.Context, days int) ([]DeadItem, error) {
	if days <= 0 {
		days = 60
	}
	return s.repo.DeadStock(ctx, s.now().AddDate(0, 0, -days))
}

// Dashboard returns today's counters. Concurrent callers share one query.
func (s *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	start := startOfDay(s.now(), s.loc)
	v, err, _ := s.group.Do("dashboard:"+start.Format(time.DateOnly), func() (any, error) {
		return s.repo.DashboardStats(ctx, start, start.AddDate(0, 0, 1))
	})
	if err != nil {
		return DashboardStats{}, err
	}
	return v.(DashboardStats), nil
}

// MovementSeries returns per-day net movement over the last days, optionally for one item.
func (s *Service) MovementSeries(ctx context.Context, itemID *int64, days int) ([]SeriesPoint, error) {
	if days <= 0 {
		days = 30
	}
	from := startOfDay(s.now(), s.loc).AddDate(0, 0, -days+1)
	return s.repo.MovementSeries(ctx, itemID, from, s.loc.String())
}

// Integrity cross-checks the ledger.
func (s *Service) Integrity(ctx context.Context) (IntegrityReport, error) {
	return s.repo.Integrity(ctx)
}

// AuditTrail returns a page of grouped ledger rows.
func (s *Service) AuditTrail(ctx context.Context, filter AuditFilter) (AuditPage, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return AuditPage{}, shared.Invalid("unknown movement type %q", filter.Type)
	}
	if filter.PerPage <= 0 {
		filter.PerPage = shared.DefaultPerPage
	}
	entries, total, err := s.repo.AuditTrail(ctx, filter)
	if err != nil {
		return AuditPage{}, err
	}
	return AuditPage{Entries: entries, Pagination: shared.NewPagination(filter.Page, filter.PerPage, total)}, nil
}

var exportHeader = []string{"id", "occurred_at", "item_id", "item", "type", "quantity", "reason", "reference_type", "reference_id", "unit_price", "user", "notes", "running_stock"}

// ExportMovements writes the ledger as CSV. The running_stock column
// accumulates per item within the exported window only.
func (s *Service) ExportMovements(ctx context.Context, w io.Writer, from, to *time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	running := map[int64]int{}
	err := s.repo.EachMovement(ctx, from, to, func(m Movement, itemName string) error {
		running[m.ItemID] += m.Type.StockSign() * m.Quantity
		refType, refID := "", ""
		if m.Reference != nil {
			refType = string(m.Reference.Type)
			refID = strconv.FormatInt(m.Reference.ID, 10)
		}
		price := ""
		if m.UnitPrice.Valid {
			price = m.UnitPrice.Decimal.StringFixed(2)
		}
		return cw.Write([]string{
			strconv.FormatInt(m.ID, 10),
			m.OccurredAt.In(s.loc).Format(time.DateTime),
			strconv.FormatInt(m.ItemID, 10),
			itemName,
			string(m.Type),
			strconv.Itoa(m.Quantity),
			string(m.Reason),
			refType,
			refID,
			price,
			m.UserName,
			m.Notes,
			strconv.Itoa(running[m.ItemID]),
		})
	})
	if err != nil {
		return fmt.Errorf("inventory: export: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory_movement",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("inventory audit", slog.Any("error", err))
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
