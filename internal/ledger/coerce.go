package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"eraforge/internal/extract"
)

// Cost coerces an extracted estimated_cost. Absent, empty, non-numeric and
// negative values all become zero.
func (l *Ledger) Cost(v extract.Value, lookupErr error) decimal.Decimal {
	cost, ok := l.coerce("estimated_cost", v, lookupErr)
	if !ok {
		return decimal.Zero
	}
	if cost.IsNegative() {
		l.log.Warn("negative estimated cost treated as zero", "value", cost.String())
		return decimal.Zero
	}
	return cost
}

// MultiplierDelta coerces an extracted money_multiplier_change. Anything
// unusable becomes zero. Negative deltas are kept.
func (l *Ledger) MultiplierDelta(v extract.Value, lookupErr error) decimal.Decimal {
	delta, ok := l.coerce("money_multiplier_change", v, lookupErr)
	if !ok {
		return decimal.Zero
	}
	return delta
}

// Oracle amounts outside these bounds are treated as unusable.
const (
	maxExponent = 30
	maxDigits   = 40
)

func (l *Ledger) coerce(field string, v extract.Value, lookupErr error) (decimal.Decimal, bool) {
	if lookupErr != nil {
		l.log.Warn("financial field unavailable, using zero", "field", field, "error", lookupErr)
		return decimal.Zero, false
	}

	switch v.Kind() {
	case extract.KindNull:
		return decimal.Zero, false
	case extract.KindNumber, extract.KindString:
		text := strings.TrimSpace(v.Text())
		if text == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(text)
		if err != nil {
			l.log.Warn("non-numeric financial field, using zero", "field", field, "value", truncate(v.Text()))
			return decimal.Zero, false
		}
		if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent || d.NumDigits() > maxDigits {
			l.log.Warn("financial field out of range, using zero", "field", field, "value", truncate(text))
			return decimal.Zero, false
		}
		return d, true
	default:
		l.log.Warn("unexpected financial field type, using zero", "field", field, "kind", v.Kind().String())
		return decimal.Zero, false
	}
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
