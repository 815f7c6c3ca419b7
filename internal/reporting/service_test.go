package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/a4s/shopledger/internal/debt"
	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/sales"
	"github.com/a4s/shopledger/internal/shared"
)

type stubRepo struct {
	sales []SaleLine
	items []ItemSummary
	debts []DebtRow
}

func (r *stubRepo) SalesBetween(ctx context.Context, from, to time.Time) ([]SaleLine, error) {
	var out []SaleLine
	for _, s := range r.sales {
		if !s.CreatedAt.Before(from) && s.CreatedAt.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubRepo) ItemsBetween(ctx context.Context, from, to time.Time) ([]ItemSummary, error) {
	return r.items, nil
}

func (r *stubRepo) DebtSales(ctx context.Context) ([]DebtRow, error) {
	return append([]DebtRow(nil), r.debts...), nil
}

type stubStock []inventory.StockLevel

func (s stubStock) StockLevels(ctx context.Context, since *time.Time) ([]inventory.StockLevel, error) {
	return s, nil
}

var manila = time.FixedZone("PHT", 8*3600)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func jun() *int64 { id := int64(1); return &id }

func newReportService(repo *stubRepo) *Service {
	return NewService(repo, stubStock{}, ServiceConfig{Location: manila})
}

func TestDailyReportQuotaTopUp(t *testing.T) {
	repo := &stubRepo{sales: []SaleLine{{
		SaleID: 1, SalesNumber: "SALE-20240303-001", MechanicID: jun(), MechanicName: "Jun",
		CommissionRate: d("0.80"), ServicesTotal: d("300"), TotalAmount: d("1550"),
		Status: sales.StatusPaid, CreatedAt: time.Date(2024, 3, 3, 10, 0, 0, 0, manila),
	}}}
	rep, err := newReportService(repo).DailyReport(context.Background(), time.Date(2024, 3, 3, 0, 0, 0, 0, manila))
	require.NoError(t, err)

	require.Len(t, rep.Mechanics, 1)
	p := rep.Mechanics[0]
	require.True(t, p.ShopTopUp.Equal(d("200")))
	require.True(t, p.EffectiveBase.Equal(d("500")))
	require.True(t, p.Commission.Equal(d("400")))
	require.True(t, rep.TotalGross.Equal(d("1550")))
	require.True(t, rep.NetRevenue.Equal(d("950")), rep.NetRevenue.String())
	require.Equal(t, "2024-03-03", rep.From)
}

func TestDailyReportCountsUnpaidServicesTowardQuota(t *testing.T) {
	day := time.Date(2024, 3, 4, 9, 0, 0, 0, manila)
	repo := &stubRepo{sales: []SaleLine{
		{SaleID: 1, MechanicID: jun(), MechanicName: "Jun", CommissionRate: d("0.80"), ServicesTotal: d("300"), TotalAmount: d("300"), Status: sales.StatusPaid, CreatedAt: day},
		{SaleID: 2, MechanicID: jun(), MechanicName: "Jun", CommissionRate: d("0.80"), ServicesTotal: d("400"), TotalAmount: d("400"), Status: sales.StatusUnresolved, CreatedAt: day.Add(time.Hour)},
		{SaleID: 3, TotalAmount: d("120"), Status: sales.StatusPaid, CreatedAt: day.Add(2 * time.Hour)},
	}}
	rep, err := newReportService(repo).DailyReport(context.Background(), day)
	require.NoError(t, err)

	require.Len(t, rep.Sales, 2)
	require.Len(t, rep.Unresolved, 1)
	p := rep.Mechanics[0]
	require.True(t, p.ServicesTotal.Equal(d("700")))
	require.True(t, p.ShopTopUp.IsZero())
	require.True(t, p.Commission.Equal(d("560")))
	require.True(t, rep.TotalGross.Equal(d("420")))
	require.True(t, rep.NetRevenue.Equal(d("-140")))
}

func TestRangeReportAppliesQuotaPerDay(t *testing.T) {
	repo := &stubRepo{sales: []SaleLine{
		{SaleID: 1, MechanicID: jun(), MechanicName: "Jun", CommissionRate: d("0.80"), ServicesTotal: d("300"), TotalAmount: d("300"), Status: sales.StatusPaid, CreatedAt: time.Date(2024, 3, 3, 10, 0, 0, 0, manila)},
		{SaleID: 2, MechanicID: jun(), MechanicName: "Jun", CommissionRate: d("0.80"), ServicesTotal: d("300"), TotalAmount: d("300"), Status: sales.StatusPaid, CreatedAt: time.Date(2024, 3, 4, 10, 0, 0, 0, manila)},
	}}
	svc := newReportService(repo)
	rep, err := svc.RangeReport(context.Background(), time.Date(2024, 3, 3, 0, 0, 0, 0, manila), time.Date(2024, 3, 4, 0, 0, 0, 0, manila))
	require.NoError(t, err)

	p := rep.Mechanics[0]
	// two separate 200 top-ups, not one pooled 600 day
	require.True(t, p.ShopTopUp.Equal(d("400")))
	require.True(t, p.Commission.Equal(d("800")))
	require.True(t, rep.TotalShopTopUp.Equal(d("400")))

	_, err = svc.RangeReport(context.Background(), time.Date(2024, 3, 4, 0, 0, 0, 0, manila), time.Date(2024, 3, 3, 0, 0, 0, 0, manila))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDayPayoutsSkipsMechanicsWithoutServices(t *testing.T) {
	out := dayPayouts([]SaleLine{{MechanicID: jun(), MechanicName: "Jun", CommissionRate: d("0.8")}}, DefaultQuota)
	require.Empty(t, out)
}

func TestDebtSummaryDerivesStatus(t *testing.T) {
	repo := &stubRepo{debts: []DebtRow{
		{SaleID: 1, TotalAmount: d("250"), TotalPaid: d("250"), StoredStatus: sales.StatusPartial},
		{SaleID: 2, TotalAmount: d("500"), TotalPaid: d("100"), StoredStatus: sales.StatusPartial},
		{SaleID: 3, TotalAmount: d("80"), TotalPaid: d("0"), StoredStatus: sales.StatusUnresolved},
	}}
	sum, err := newReportService(repo).DebtSummary(context.Background())
	require.NoError(t, err)

	require.Equal(t, debt.DerivedPaid, sum.Debts[0].Status)
	require.Equal(t, debt.DerivedPartial, sum.Debts[1].Status)
	require.Equal(t, debt.DerivedUnpaid, sum.Debts[2].Status)
	require.True(t, sum.Outstanding.Equal(d("480")))
	require.Equal(t, 1, sum.Counts[debt.DerivedPaid])
}

func TestStockSnapshotValue(t *testing.T) {
	svc := NewService(&stubRepo{}, stubStock{
		{ItemID: 1, Stock: 15, CostPerPiece: d("95.50")},
		{ItemID: 2, Stock: -2, CostPerPiece: d("10")},
	}, ServiceConfig{Location: manila})
	snap, err := svc.StockSnapshot(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, snap.Items, 2)
	require.True(t, snap.Value.Equal(d("1432.5")))
}
