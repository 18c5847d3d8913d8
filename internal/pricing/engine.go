package pricing

import "github.com/shopspring/decimal"

// Matches reports whether cartTotal and distanceKm both fall inside the
// rule's closed ranges.
func (r Rule) Matches(cartTotal decimal.Decimal, distanceKm float64) bool {
	if cartTotal.LessThan(r.MinOrder) {
		return false
	}
	if r.MaxOrder != nil && cartTotal.GreaterThan(*r.MaxOrder) {
		return false
	}
	if distanceKm < r.MinDistance {
		return false
	}
	if r.MaxDistance != nil && distanceKm > *r.MaxDistance {
		return false
	}
	return true
}

// Charge applies the rule's policy to distanceKm. The extra distance is
// computed in decimal so 2.2 - 1.2 is exactly one km.
func (r Rule) Charge(distanceKm float64) decimal.Decimal {
	switch r.ChargeType {
	case ChargeFlat:
		return r.ChargeAmount
	case ChargeBasePlusPerKm:
		extra := decimal.NewFromFloat(distanceKm).Sub(decimal.NewFromFloat(r.BaseDistance))
		if !extra.IsPositive() {
			return r.ChargeAmount
		}
		return r.ChargeAmount.Add(r.PerKmCharge.Mul(extra.Ceil()))
	default:
		return decimal.Zero
	}
}

// Select returns the matching rule with the smallest min distance, then the
// smallest min order, then the most recent creation time and highest id.
func Select(rules []Rule, cartTotal decimal.Decimal, distanceKm float64) *Rule {
	var best *Rule
	for i := range rules {
		r := &rules[i]
		if !r.IsActive || !r.Matches(cartTotal, distanceKm) {
			continue
		}
		if best == nil || preferred(r, best) {
			best = r
		}
	}
	return best
}

func preferred(a, b *Rule) bool {
	if a.MinDistance != b.MinDistance {
		return a.MinDistance < b.MinDistance
	}
	if !a.MinOrder.Equal(b.MinOrder) {
		return a.MinOrder.LessThan(b.MinOrder)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Compute is the full engine: select then charge, zero when nothing matches.
func Compute(rules []Rule, cartTotal decimal.Decimal, distanceKm float64) (decimal.Decimal, *Rule) {
	rule := Select(rules, cartTotal, distanceKm)
	if rule == nil {
		return decimal.Zero, nil
	}
	return rule.Charge(distanceKm), rule
}
