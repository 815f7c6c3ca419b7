package debt

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/a4s/shopledger/internal/catalog"
	"github.com/a4s/shopledger/internal/sales"
	"github.com/a4s/shopledger/internal/shared"
)

type memorySale struct {
	total  decimal.Decimal
	status sales.Status
	paidAt *time.Time
}

type memoryRepo struct {
	methods  map[int64]catalog.PaymentMethod
	sales    map[int64]memorySale
	payments []Payment
	nextID   int64
}

type memoryTx struct {
	repo     *memoryRepo
	sales    map[int64]memorySale
	payments []Payment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		methods: map[int64]catalog.PaymentMethod{
			1: {ID: 1, Name: "Cash", Category: "Cash", Active: true},
			5: {ID: 5, Name: "Utang", Category: "Debt", Active: true},
			6: {ID: 6, Name: "Old Card", Category: "Online", Active: false},
		},
		sales: map[int64]memorySale{
			10: {total: decimal.NewFromInt(250), status: sales.StatusUnresolved},
		},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, sales: map[int64]memorySale{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, s := range tx.sales {
		r.sales[id] = s
	}
	r.payments = append(r.payments, tx.payments...)
	return nil
}

func (r *memoryRepo) ListOpenDebts(ctx context.Context) ([]Debt, error) { return nil, nil }

func (r *memoryRepo) GetDetail(ctx context.Context, saleID int64) (Detail, error) {
	return Detail{}, shared.NotFound("sale", saleID)
}

func (r *memoryRepo) ListPaymentEvents(ctx context.Context, limit int) ([]PaymentEvent, error) {
	return make([]PaymentEvent, 0, limit), nil
}

func (tx *memoryTx) GetPaymentMethod(ctx context.Context, id int64) (catalog.PaymentMethod, error) {
	m, ok := tx.repo.methods[id]
	if !ok {
		return catalog.PaymentMethod{}, shared.NotFound("payment method", id)
	}
	return m, nil
}

func (tx *memoryTx) LockBalance(ctx context.Context, saleID int64) (Balance, error) {
	s, ok := tx.repo.sales[saleID]
	if !ok {
		return Balance{}, shared.NotFound("sale", saleID)
	}
	paid := decimal.Zero
	for _, p := range tx.repo.payments {
		if p.SaleID == saleID {
			paid = paid.Add(p.AmountPaid)
		}
	}
	return Balance{SaleID: saleID, Status: s.status, Total: s.total, Paid: paid}, nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.payments = append(tx.payments, p)
	return p.ID, nil
}

func (tx *memoryTx) UpdateSaleStatus(ctx context.Context, saleID int64, status sales.Status, paidAt *time.Time) error {
	s := tx.repo.sales[saleID]
	s.status = status
	if paidAt != nil {
		s.paidAt = paidAt
	}
	tx.sales[saleID] = s
	return nil
}

var payDay = time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC)

func newDebtService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, ServiceConfig{Now: func() time.Time { return payDay }})
}

func TestRecordPaymentSequence(t *testing.T) {
	repo := newMemoryRepo()
	svc := newDebtService(repo)
	ctx := context.Background()
	actor := shared.Actor{ID: 3, Name: "cashier"}

	res, err := svc.RecordPayment(ctx, PaymentInput{SaleID: 10, Amount: decimal.NewFromInt(100), PaymentMethodID: 1, Actor: actor})
	require.NoError(t, err)
	require.Equal(t, sales.StatusPartial, res.NewStatus)
	require.True(t, res.NewRemaining.Equal(decimal.NewFromInt(150)))
	require.Nil(t, repo.sales[10].paidAt)

	_, err = svc.RecordPayment(ctx, PaymentInput{SaleID: 10, Amount: decimal.NewFromInt(200), PaymentMethodID: 1, Actor: actor})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "Payment of ₱200.00 exceeds remaining balance of ₱150.00.", shared.Message(err))
	require.Len(t, repo.payments, 1)

	res, err = svc.RecordPayment(ctx, PaymentInput{SaleID: 10, Amount: decimal.NewFromInt(150), PaymentMethodID: 1, Actor: actor})
	require.NoError(t, err)
	require.Equal(t, sales.StatusPaid, res.NewStatus)
	require.True(t, res.NewRemaining.IsZero())
	require.NotNil(t, repo.sales[10].paidAt)
	require.Equal(t, payDay, *repo.sales[10].paidAt)

	_, err = svc.RecordPayment(ctx, PaymentInput{SaleID: 10, Amount: decimal.RequireFromString("0.01"), PaymentMethodID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	paid := decimal.Zero
	for _, p := range repo.payments {
		paid = paid.Add(p.AmountPaid)
		require.Equal(t, int64(3), *p.PaidBy)
	}
	require.True(t, paid.Equal(decimal.NewFromInt(250)))
}

func TestRecordPaymentRoundsAmount(t *testing.T) {
	repo := newMemoryRepo()
	svc := newDebtService(repo)

	res, err := svc.RecordPayment(context.Background(), PaymentInput{SaleID: 10, Amount: decimal.RequireFromString("99.999"), PaymentMethodID: 1})
	require.NoError(t, err)
	require.True(t, res.AmountPaid.Equal(decimal.NewFromInt(100)))
	require.True(t, repo.payments[0].AmountPaid.Equal(decimal.NewFromInt(100)))
	require.Nil(t, repo.payments[0].PaidBy)
}

func TestRecordPaymentRejections(t *testing.T) {
	repo := newMemoryRepo()
	svc := newDebtService(repo)
	ctx := context.Background()
	hundred := decimal.NewFromInt(100)

	_, err := svc.RecordPayment(ctx, PaymentInput{SaleID: 10, Amount: decimal.Zero, PaymentMethodID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RecordPayment(ctx, PaymentInput{SaleID: 10, Amount: hundred.Neg(), PaymentMethodID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RecordPayment(ctx, PaymentInput{SaleID: 10, Amount: hundred, PaymentMethodID: 5})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RecordPayment(ctx, PaymentInput{SaleID: 10, Amount: hundred, PaymentMethodID: 6})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RecordPayment(ctx, PaymentInput{SaleID: 10, Amount: hundred, PaymentMethodID: 42})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RecordPayment(ctx, PaymentInput{SaleID: 77, Amount: hundred, PaymentMethodID: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.payments)
	require.Equal(t, sales.StatusUnresolved, repo.sales[10].status)
}

func TestRecordPaymentRejectsSettledSale(t *testing.T) {
	repo := newMemoryRepo()
	repo.sales[11] = memorySale{total: decimal.NewFromInt(300), status: sales.StatusPaid}
	svc := newDebtService(repo)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{SaleID: 11, Amount: decimal.NewFromInt(100), PaymentMethodID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "sale is not an open debt", shared.Message(err))
	require.Empty(t, repo.payments)
	require.Equal(t, sales.StatusPaid, repo.sales[11].status)
}

func TestDeriveStatus(t *testing.T) {
	d := decimal.RequireFromString
	require.Equal(t, DerivedPaid, DeriveStatus(d("250"), d("250")))
	require.Equal(t, DerivedPaid, DeriveStatus(d("250"), d("260")))
	require.Equal(t, DerivedPartial, DeriveStatus(d("250"), d("100")))
	require.Equal(t, DerivedUnpaid, DeriveStatus(d("250"), d("0")))
	require.Equal(t, DerivedPaid, DeriveStatus(d("0"), d("0")))
}

func TestListPaymentEventsCapsLimit(t *testing.T) {
	svc := newDebtService(newMemoryRepo())
	events, err := svc.ListPaymentEvents(context.Background(), 5000)
	require.NoError(t, err)
	require.Equal(t, DefaultEventLimit, cap(events))
}
