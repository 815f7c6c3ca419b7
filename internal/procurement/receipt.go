package procurement

import (
	"strings"

	"github.com/a4s/shopledger/internal/inventory"
	"github.com/a4s/shopledger/internal/shared"
)

// receiptStep is one ledger IN produced by a receipt.
type receiptStep struct {
	line     LineItem
	quantity int
	reason   inventory.Reason
	note     string
}

// receiptPlan is the validated outcome of a receipt against locked lines.
type receiptPlan struct {
	steps []receiptStep
	// received maps line id to its new quantity_received.
	received map[int64]int
}

// planReceipt validates every entry before anything is written. Quantities
// beyond the remaining amount split into a PO_ARRIVAL for the remainder and
// a BONUS_STOCK carrying the note.
func planReceipt(lines []LineItem, entries []ReceiptEntry) (receiptPlan, error) {
	if len(entries) == 0 {
		return receiptPlan{}, shared.Invalid("no received quantities supplied")
	}
	byItem := make(map[int64]LineItem, len(lines))
	for _, l := range lines {
		byItem[l.ItemID] = l
	}
	seen := make(map[int64]bool, len(entries))
	plan := receiptPlan{received: make(map[int64]int)}
	for _, e := range entries {
		line, ok := byItem[e.ItemID]
		if !ok {
			return receiptPlan{}, shared.Invalid("item %d is not on this purchase order", e.ItemID)
		}
		if seen[e.ItemID] {
			return receiptPlan{}, shared.Invalid("item %d is listed more than once", e.ItemID)
		}
		seen[e.ItemID] = true
		if e.Quantity < 0 {
			return receiptPlan{}, shared.Invalid("received quantity for item %d cannot be negative", e.ItemID)
		}
		if e.Quantity == 0 {
			continue
		}
		remaining := line.Remaining()
		note := strings.TrimSpace(e.Note)
		if e.Quantity > remaining && note == "" {
			return receiptPlan{}, shared.Invalid("item %d: received %d but only %d expected; a note is required for the extra stock", e.ItemID, e.Quantity, remaining)
		}
		switch {
		case e.Quantity == remaining:
			plan.steps = append(plan.steps, receiptStep{line: line, quantity: e.Quantity, reason: inventory.ReasonPOArrival})
		case e.Quantity < remaining:
			plan.steps = append(plan.steps, receiptStep{line: line, quantity: e.Quantity, reason: inventory.ReasonPartialArrival})
		default:
			if remaining > 0 {
				plan.steps = append(plan.steps, receiptStep{line: line, quantity: remaining, reason: inventory.ReasonPOArrival})
			}
			plan.steps = append(plan.steps, receiptStep{line: line, quantity: e.Quantity - remaining, reason: inventory.ReasonBonusStock, note: note})
		}
		plan.received[line.ID] = line.QuantityReceived + e.Quantity
	}
	if len(plan.received) == 0 {
		return receiptPlan{}, shared.Invalid("at least one received quantity must be positive")
	}
	return plan, nil
}

// apply returns lines with the planned quantities folded in.
func (p receiptPlan) apply(lines []LineItem) []LineItem {
	out := make([]LineItem, len(lines))
	for i, l := range lines {
		if n, ok := p.received[l.ID]; ok {
			l.QuantityReceived = n
		}
		out[i] = l
	}
	return out
}
