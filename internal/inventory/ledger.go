package inventory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/a4s/shopledger/internal/shared"
)

// MovementWriter is the narrow persistence contract for appending ledger
// rows. Implementations run on a caller-owned transaction so settlement and
// receiving can append movements atomically with their own rows.
type MovementWriter interface {
	ItemExists(ctx context.Context, itemID int64) (bool, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// Validate rejects movements whose type, reference and reason do not form a
// legal combination.
func Validate(m Movement) error {
	if m.ItemID <= 0 {
		return shared.Invalid("item is required")
	}
	if m.Quantity <= 0 {
		return shared.Invalid("quantity must be a positive whole number")
	}
	if !m.Type.Valid() {
		return shared.Invalid("unknown movement type %q", m.Type)
	}
	if m.Reason == "" {
		if m.Reference != nil {
			return shared.Invalid("a referenced movement needs a reason")
		}
		return nil
	}
	rule, ok := reasonRules[m.Reason]
	if !ok {
		return shared.Invalid("unknown movement reason %q", m.Reason)
	}
	if !slices.Contains(rule.types, m.Type) {
		return shared.Invalid("reason %s cannot be used on %s movements", m.Reason, m.Type)
	}
	switch {
	case rule.reference == "" && m.Reference != nil:
		return shared.Invalid("reason %s cannot carry a reference", m.Reason)
	case rule.reference != "" && m.Reference == nil:
		return shared.Invalid("reason %s requires a %s reference", m.Reason, rule.reference)
	case m.Reference != nil && (m.Reference.Type != rule.reference || m.Reference.ID <= 0):
		return shared.Invalid("reason %s requires a %s reference", m.Reason, rule.reference)
	}
	if m.UnitPrice.Valid && m.UnitPrice.Decimal.IsNegative() {
		return shared.Invalid("unit price cannot be negative")
	}
	return nil
}

// Append validates in and writes exactly one ledger row through w. A zero
// OccurredAt means now; every timestamp is truncated to the second.
func Append(ctx context.Context, w MovementWriter, in MovementInput) (Movement, error) {
	at := in.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	m := Movement{
		ItemID:     in.ItemID,
		Quantity:   in.Quantity,
		Type:       in.Type,
		OccurredAt: at.Truncate(time.Second),
		Reference:  in.Reference,
		Reason:     in.Reason,
		Notes:      strings.TrimSpace(in.Notes),
	}
	if !in.Actor.IsSystem() {
		id := in.Actor.ID
		m.UserID = &id
		m.UserName = in.Actor.Name
	}
	if in.UnitPrice != nil {
		m.UnitPrice.Decimal = shared.Round2(*in.UnitPrice)
		m.UnitPrice.Valid = true
	}
	if err := Validate(m); err != nil {
		return Movement{}, err
	}
	ok, err := w.ItemExists(ctx, m.ItemID)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: check item: %w", err)
	}
	if !ok {
		return Movement{}, shared.NotFound("item", m.ItemID)
	}
	id, err := w.InsertMovement(ctx, m)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	m.ID = id
	return m, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseTimestamp parses an operator supplied timestamp in loc. Minute
// precision input ("2024-03-01 14:30" or "2024-03-01T14:30") gets ":00"
// appended before parsing.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, shared.Invalid("timestamp is required")
	}
	if loc == nil {
		loc = time.Local
	}
	if len(raw) == len("2006-01-02 15:04") {
		raw += ":00"
	}
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	return time.Time{}, shared.Invalid("timestamp %q is not in YYYY-MM-DD HH:MM[:SS] form", raw)
}
