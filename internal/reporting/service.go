package reporting

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/debt"
	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/sales"
	"github.com/a4s/shopledger/internal/shared"
)

// RepositoryPort is the read side the reports are derived from.
type RepositoryPort interface {
	SalesBetween(ctx context.Context, from, to time.Time) ([]SaleLine, error)
	ItemsBetween(ctx context.Context, from, to time.Time) ([]ItemSummary, error)
	DebtSales(ctx context.Context) ([]DebtRow, error)
}

// StockPort supplies derived stock levels.
type StockPort interface {
	StockLevels(ctx context.Context, since *time.Time) ([]inventory.StockLevel, error)
}

// Service derives reports on every call; nothing is stored.
type Service struct {
	repo   RepositoryPort
	stock  StockPort
	quota  decimal.Decimal
	loc    *time.Location
	logger *slog.Logger
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Quota    decimal.Decimal
	Location *time.Location
	Logger   *slog.Logger
}

// NewService builds Service. A zero quota falls back to DefaultQuota.
func NewService(repo RepositoryPort, stock StockPort, cfg ServiceConfig) *Service {
	svc := &Service{repo: repo, stock: stock, quota: cfg.Quota, loc: cfg.Location, logger: cfg.Logger}
	if !svc.quota.IsPositive() {
		svc.quota = DefaultQuota
	}
	if svc.loc == nil {
		svc.loc = time.Local
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// DailyReport summarises one shop-local calendar day.
func (s *Service) DailyReport(ctx context.Context, day time.Time) (Report, error) {
	return s.RangeReport(ctx, day, day)
}

// RangeReport summarises the inclusive range of days. The quota applies to
// each day separately.
func (s *Service) RangeReport(ctx context.Context, from, to time.Time) (Report, error) {
	start := s.startOfDay(from)
	last := s.startOfDay(to)
	if last.Before(start) {
		return Report{}, shared.Invalid("end date cannot be before start date")
	}
	end := last.AddDate(0, 0, 1)

	list, err := s.repo.SalesBetween(ctx, start, end)
	if err != nil {
		return Report{}, err
	}
	items, err := s.repo.ItemsBetween(ctx, start, end)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		From:       start.Format(time.DateOnly),
		To:         last.Format(time.DateOnly),
		Sales:      []SaleLine{},
		Unresolved: []SaleLine{},
		Items:      items,
	}
	gross := decimal.Zero
	var (
		days    [][]SaleLine
		current []SaleLine
		dayKey  string
	)
	for _, l := range list {
		if l.Status == sales.StatusPaid {
			rep.Sales = append(rep.Sales, l)
			gross = gross.Add(l.TotalAmount)
		} else {
			rep.Unresolved = append(rep.Unresolved, l)
		}
		key := l.CreatedAt.In(s.loc).Format(time.DateOnly)
		if key != dayKey && current != nil {
			days = append(days, current)
			current = nil
		}
		dayKey = key
		current = append(current, l)
	}
	if current != nil {
		days = append(days, current)
	}

	perDay := make([][]MechanicPayout, 0, len(days))
	for _, d := range days {
		perDay = append(perDay, dayPayouts(d, s.quota))
	}
	rep.Mechanics = mergePayouts(perDay)

	cut, topUp := decimal.Zero, decimal.Zero
	for _, p := range rep.Mechanics {
		cut = cut.Add(p.Commission)
		topUp = topUp.Add(p.ShopTopUp)
	}
	rep.TotalGross = shared.Round2(gross)
	rep.TotalMechanicCut = shared.Round2(cut)
	rep.TotalShopTopUp = shared.Round2(topUp)
	rep.NetRevenue = shared.Round2(gross.Sub(cut).Sub(topUp))
	return rep, nil
}

// DebtSummary re-derives every debt sale's status from its payments, so a
// stale stored status does not leak into the report.
func (s *Service) DebtSummary(ctx context.Context) (DebtSummary, error) {
	rows, err := s.repo.DebtSales(ctx)
	if err != nil {
		return DebtSummary{}, err
	}
	sum := DebtSummary{
		Debts:       rows,
		Outstanding: decimal.Zero,
		Counts:      map[debt.DerivedStatus]int{debt.DerivedPaid: 0, debt.DerivedPartial: 0, debt.DerivedUnpaid: 0},
	}
	for i := range sum.Debts {
		d := &sum.Debts[i]
		d.Remaining = shared.Round2(d.TotalAmount.Sub(d.TotalPaid))
		d.Status = debt.DeriveStatus(d.TotalAmount, d.TotalPaid)
		sum.Counts[d.Status]++
		if d.Remaining.IsPositive() {
			sum.Outstanding = sum.Outstanding.Add(d.Remaining)
		}
		if string(d.Status) != mapStored(d.StoredStatus) {
			s.logger.Warn("debt status drift",
				slog.Int64("sale_id", d.SaleID),
				slog.String("stored", string(d.StoredStatus)),
				slog.String("derived", string(d.Status)))
		}
	}
	return sum, nil
}

func mapStored(st sales.Status) string {
	switch st {
	case sales.StatusPaid:
		return string(debt.DerivedPaid)
	case sales.StatusPartial:
		return string(debt.DerivedPartial)
	default:
		return string(debt.DerivedUnpaid)
	}
}

// StockSnapshot returns stock levels and their value at cost.
func (s *Service) StockSnapshot(ctx context.Context, since *time.Time) (StockSnapshot, error) {
	levels, err := s.stock.StockLevels(ctx, since)
	if err != nil {
		return StockSnapshot{}, err
	}
	value := decimal.Zero
	for _, l := range levels {
		if l.Stock > 0 {
			value = value.Add(l.CostPerPiece.Mul(decimal.NewFromInt(int64(l.Stock))))
		}
	}
	return StockSnapshot{Since: since, Items: levels, Value: shared.Round2(value)}, nil
}

func (s *Service) startOfDay(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}
