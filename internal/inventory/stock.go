package inventory

import (
	"fmt"
	"strings"
	"time"
)

// signedQuantitySQL renders the per-row stock contribution as a SQL CASE
// built from StockSign. alias is the table alias; cutoff, when non-empty, is a
// placeholder for an optional timestamp: removals before it are ignored
// while additions always count.
func signedQuantitySQL(alias, cutoff string) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, t := range MovementTypes {
		sign := t.StockSign()
		if sign == 0 {
			continue
		}
		cond := fmt.Sprintf("%s.movement_type = '%s'", alias, t)
		if sign < 0 && cutoff != "" {
			cond += fmt.Sprintf(" AND (%[1]s::timestamptz IS NULL OR %[2]s.occurred_at >= %[1]s::timestamptz)", cutoff, alias)
		}
		fmt.Fprintf(&b, " WHEN %s THEN %d * %s.quantity", cond, sign, alias)
	}
	b.WriteString(" ELSE 0 END")
	return b.String()
}

// quantityBySignSQL sums only the rows whose type has the given sign, as a
// positive quantity. The cutoff placeholder applies as in signedQuantitySQL.
func quantityBySignSQL(alias, cutoff string, sign int) string {
	var conds []string
	for _, t := range MovementTypes {
		if t.StockSign() == sign {
			conds = append(conds, fmt.Sprintf("'%s'", t))
		}
	}
	if len(conds) == 0 {
		return "0"
	}
	cond := fmt.Sprintf("%s.movement_type IN (%s)", alias, strings.Join(conds, ", "))
	if sign < 0 && cutoff != "" {
		cond += fmt.Sprintf(" AND (%[1]s::timestamptz IS NULL OR %[2]s.occurred_at >= %[1]s::timestamptz)", cutoff, alias)
	}
	return fmt.Sprintf("CASE WHEN %s THEN %s.quantity ELSE 0 END", cond, alias)
}

// DeriveStock recomputes stock from movements. With since set, removals
// dated before it are skipped; additions always count.
func DeriveStock(movements []Movement, since *time.Time) int {
	total := 0
	for _, m := range movements {
		sign := m.Type.StockSign()
		if sign < 0 && since != nil && m.OccurredAt.Before(*since) {
			continue
		}
		total += sign * m.Quantity
	}
	return total
}
