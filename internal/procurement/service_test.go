package procurement

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/shared"
)

type memoryProcRepo struct {
	items     map[int64]bool
	orders    map[int64]PurchaseOrder
	movements []inventory.Movement
	nextID    int64
}

// memoryProcTx stages writes until the callback succeeds.
type memoryProcTx struct {
	repo      *memoryProcRepo
	orders    map[int64]PurchaseOrder
	movements []inventory.Movement
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		items:  map[int64]bool{1: true, 2: true, 3: true},
		orders: make(map[int64]PurchaseOrder),
	}
}

func cloneOrder(po PurchaseOrder) PurchaseOrder {
	po.Lines = append([]LineItem(nil), po.Lines...)
	return po
}

func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryProcTx{repo: r, orders: make(map[int64]PurchaseOrder)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, po := range tx.orders {
		r.orders[id] = po
	}
	r.movements = append(r.movements, tx.movements...)
	return nil
}

func (r *memoryProcRepo) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, shared.NotFound("purchase order", id)
	}
	return cloneOrder(po), nil
}

func (r *memoryProcRepo) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for _, po := range r.orders {
		if filter.Status == "" || po.Status == filter.Status {
			out = append(out, po)
		}
	}
	return out, len(out), nil
}

func (tx *memoryProcTx) order(id int64) (PurchaseOrder, bool) {
	if po, ok := tx.orders[id]; ok {
		return po, true
	}
	po, ok := tx.repo.orders[id]
	if ok {
		po = cloneOrder(po)
		tx.orders[id] = po
	}
	return po, ok
}

func (tx *memoryProcTx) ItemExists(ctx context.Context, itemID int64) (bool, error) {
	return tx.repo.items[itemID], nil
}

func (tx *memoryProcTx) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.movements = append(tx.movements, m)
	return m.ID, nil
}

func (tx *memoryProcTx) CountOrdersBetween(ctx context.Context, from, to time.Time) (int, error) {
	n := 0
	for _, po := range tx.repo.orders {
		if !po.CreatedAt.Before(from) && po.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (tx *memoryProcTx) InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	tx.repo.nextID++
	po.ID = tx.repo.nextID
	tx.orders[po.ID] = po
	return po.ID, nil
}

func (tx *memoryProcTx) InsertLine(ctx context.Context, l LineItem) (int64, error) {
	po, _ := tx.order(l.POID)
	tx.repo.nextID++
	l.ID = tx.repo.nextID
	po.Lines = append(po.Lines, l)
	tx.orders[l.POID] = po
	return l.ID, nil
}

func (tx *memoryProcTx) LockOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := tx.order(id)
	if !ok {
		return PurchaseOrder{}, shared.NotFound("purchase order", id)
	}
	return cloneOrder(po), nil
}

func (tx *memoryProcTx) UpdateLineReceived(ctx context.Context, lineID int64, received int) error {
	for id := range tx.repo.orders {
		po, _ := tx.order(id)
		for i := range po.Lines {
			if po.Lines[i].ID == lineID {
				po.Lines[i].QuantityReceived = received
				tx.orders[id] = po
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (tx *memoryProcTx) UpdateOrderReceipt(ctx context.Context, id int64, status Status, receivedAt time.Time) error {
	po, ok := tx.order(id)
	if !ok {
		return shared.ErrNotFound
	}
	po.Status = status
	po.ReceivedAt = &receivedAt
	tx.orders[id] = po
	return nil
}

var orderDay = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newProcService(repo *memoryProcRepo) *Service {
	return NewService(repo, nil, ServiceConfig{Location: time.UTC, Now: func() time.Time { return orderDay }})
}

func seedOrder(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	po, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		VendorName: "Petron Supply",
		Lines: []OrderLine{
			{ItemID: 1, Quantity: 10, UnitCost: decimal.RequireFromString("120.50")},
			{ItemID: 2, Quantity: 4, UnitCost: decimal.RequireFromString("300")},
		},
		Actor: shared.Actor{ID: 2, Name: "owner"},
	})
	require.NoError(t, err)
	return po
}

func TestCreateOrderWritesOrderMovements(t *testing.T) {
	repo := newMemoryProcRepo()
	po := seedOrder(t, newProcService(repo))

	require.Equal(t, "PO-20240510-001", po.PONumber)
	require.Equal(t, StatusPending, po.Status)
	require.True(t, po.TotalAmount.Equal(decimal.RequireFromString("2405")), po.TotalAmount.String())
	require.Len(t, repo.movements, 2)
	for _, m := range repo.movements {
		require.Equal(t, inventory.MovementOrder, m.Type)
		require.Equal(t, inventory.ReasonOrderPlacement, m.Reason)
		require.Equal(t, &inventory.Reference{ID: po.ID, Type: inventory.ReferencePurchaseOrder}, m.Reference)
	}
	// ORDER rows never count toward stock
	require.Equal(t, 0, inventory.DeriveStock(repo.movements, nil))
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newProcService(newMemoryProcRepo())
	ctx := context.Background()
	one := []OrderLine{{ItemID: 1, Quantity: 1}}

	_, err := svc.CreateOrder(ctx, CreateOrderInput{Lines: one})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateOrder(ctx, CreateOrderInput{VendorName: "V"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateOrder(ctx, CreateOrderInput{VendorName: "V", Lines: []OrderLine{{ItemID: 1, Quantity: 0}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateOrder(ctx, CreateOrderInput{VendorName: "V", Lines: []OrderLine{{ItemID: 1, Quantity: 1, UnitCost: decimal.NewFromInt(-1)}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateOrder(ctx, CreateOrderInput{VendorName: "V", Lines: []OrderLine{{ItemID: 1, Quantity: 1}, {ItemID: 1, Quantity: 2}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateOrder(ctx, CreateOrderInput{VendorName: "V", Lines: []OrderLine{{ItemID: 99, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReceivePartialThenComplete(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := newProcService(repo)
	po := seedOrder(t, svc)
	ctx := context.Background()

	got, err := svc.Receive(ctx, ReceiveInput{OrderID: po.ID, Entries: []ReceiptEntry{{ItemID: 1, Quantity: 6}, {ItemID: 2, Quantity: 0}}})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, got.Status)
	require.NotNil(t, got.ReceivedAt)
	last := repo.movements[len(repo.movements)-1]
	require.Equal(t, inventory.MovementIn, last.Type)
	require.Equal(t, inventory.ReasonPartialArrival, last.Reason)
	require.Equal(t, 6, last.Quantity)
	require.True(t, last.UnitPrice.Decimal.Equal(decimal.RequireFromString("120.50")))

	got, err = svc.Receive(ctx, ReceiveInput{OrderID: po.ID, Entries: []ReceiptEntry{{ItemID: 1, Quantity: 4}, {ItemID: 2, Quantity: 4}}})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	for _, m := range repo.movements[len(repo.movements)-2:] {
		require.Equal(t, inventory.ReasonPOArrival, m.Reason)
	}
	stored, err := svc.GetOrder(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.Equal(t, 10, stored.Lines[0].QuantityReceived)
}

func TestReceiveOverReceiptSplitsIntoBonus(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := newProcService(repo)
	po := seedOrder(t, svc)
	before := len(repo.movements)

	got, err := svc.Receive(context.Background(), ReceiveInput{OrderID: po.ID, Entries: []ReceiptEntry{
		{ItemID: 1, Quantity: 12, Note: "supplier freebies"},
		{ItemID: 2, Quantity: 4},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, 12, got.Lines[0].QuantityReceived)

	written := repo.movements[before:]
	require.Len(t, written, 3)
	require.Equal(t, inventory.ReasonPOArrival, written[0].Reason)
	require.Equal(t, 10, written[0].Quantity)
	require.Equal(t, inventory.ReasonBonusStock, written[1].Reason)
	require.Equal(t, 2, written[1].Quantity)
	require.Equal(t, "supplier freebies", written[1].Notes)
}

func TestReceiveOverReceiptWithoutNoteWritesNothing(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := newProcService(repo)
	po := seedOrder(t, svc)
	before := len(repo.movements)

	_, err := svc.Receive(context.Background(), ReceiveInput{OrderID: po.ID, Entries: []ReceiptEntry{
		{ItemID: 2, Quantity: 4},
		{ItemID: 1, Quantity: 11},
	}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, repo.movements, before)
	stored, _ := svc.GetOrder(context.Background(), po.ID)
	require.Equal(t, StatusPending, stored.Status)
	require.Zero(t, stored.Lines[1].QuantityReceived)
}

func TestReceiveRejectsUnknownAndEmptyEntries(t *testing.T) {
	svc := newProcService(newMemoryProcRepo())
	po := seedOrder(t, svc)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{OrderID: po.ID, Entries: []ReceiptEntry{{ItemID: 3, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Receive(ctx, ReceiveInput{OrderID: po.ID, Entries: []ReceiptEntry{{ItemID: 1, Quantity: 0}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Receive(ctx, ReceiveInput{OrderID: po.ID, Entries: []ReceiptEntry{{ItemID: 1, Quantity: -2}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Receive(ctx, ReceiveInput{OrderID: 404, Entries: []ReceiptEntry{{ItemID: 1, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReceiveAgainstCompletedOrderIsBonusOnly(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := newProcService(repo)
	po := seedOrder(t, svc)
	ctx := context.Background()
	_, err := svc.Receive(ctx, ReceiveInput{OrderID: po.ID, Entries: []ReceiptEntry{{ItemID: 1, Quantity: 10}, {ItemID: 2, Quantity: 4}}})
	require.NoError(t, err)

	got, err := svc.Receive(ctx, ReceiveInput{OrderID: po.ID, Entries: []ReceiptEntry{{ItemID: 2, Quantity: 1, Note: "replacement for dented can"}}})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	last := repo.movements[len(repo.movements)-1]
	require.Equal(t, inventory.ReasonBonusStock, last.Reason)
	require.Equal(t, 1, last.Quantity)
}

func TestDeriveStatus(t *testing.T) {
	require.Equal(t, StatusPending, DeriveStatus(nil))
	require.Equal(t, StatusPending, DeriveStatus([]LineItem{{QuantityOrdered: 3}}))
	require.Equal(t, StatusPartial, DeriveStatus([]LineItem{{QuantityOrdered: 3, QuantityReceived: 3}, {QuantityOrdered: 2}}))
	require.Equal(t, StatusCompleted, DeriveStatus([]LineItem{{QuantityOrdered: 3, QuantityReceived: 5}, {QuantityOrdered: 2, QuantityReceived: 2}}))
}
