package inventory

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStockSign(t *testing.T) {
	require.Equal(t, 1, MovementIn.StockSign())
	require.Equal(t, -1, MovementOut.StockSign())
	require.Equal(t, 0, MovementOrder.StockSign())
	require.Equal(t, 0, MovementType("BOGUS").StockSign())
}

func TestSignedQuantitySQLFollowsStockSign(t *testing.T) {
	sql := signedQuantitySQL("m", "")
	require.Contains(t, sql, "m.movement_type = 'IN' THEN 1 * m.quantity")
	require.Contains(t, sql, "m.movement_type = 'OUT' THEN -1 * m.quantity")
	require.NotContains(t, sql, "ORDER")
	require.True(t, strings.HasSuffix(sql, "ELSE 0 END"))
}

func TestSignedQuantitySQLCutoffOnlyOnRemovals(t *testing.T) {
	sql := signedQuantitySQL("m", "$1")
	require.Equal(t, 2, strings.Count(sql, "$1::timestamptz"))
	inClause := sql[:strings.Index(sql, "'OUT'")]
	require.NotContains(t, inClause, "$1")
}

func TestQuantityBySignSQL(t *testing.T) {
	require.Equal(t, "CASE WHEN m.movement_type IN ('IN') THEN m.quantity ELSE 0 END", quantityBySignSQL("m", "", 1))
	require.Contains(t, quantityBySignSQL("m", "$1", -1), "m.occurred_at >= $1::timestamptz")
	require.Contains(t, quantityBySignSQL("m", "", 0), "'ORDER'")
}

func TestDeriveStockMatchesSums(t *testing.T) {
	moves := []Movement{
		{Type: MovementIn, Quantity: 20, OccurredAt: day1},
		{Type: MovementOut, Quantity: 5, OccurredAt: day1.Add(48 * time.Hour)},
		{Type: MovementOrder, Quantity: 100, OccurredAt: day1.Add(48 * time.Hour)},
		{Type: MovementIn, Quantity: 4, OccurredAt: day1.Add(72 * time.Hour)},
		{Type: MovementOut, Quantity: 2, OccurredAt: day1.Add(96 * time.Hour)},
	}
	in, out := 0, 0
	for _, m := range moves {
		switch m.Type {
		case MovementIn:
			in += m.Quantity
		case MovementOut:
			out += m.Quantity
		}
	}
	require.Equal(t, in-out, DeriveStock(moves, nil))

	cutoff := day1.Add(72 * time.Hour)
	require.Equal(t, 24-2, DeriveStock(moves, &cutoff))
}
