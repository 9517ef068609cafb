package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// ManualKind distinguishes the two manual discount flavours.
type ManualKind string

const (
	// ManualPercent deducts a percentage of the running post-discount total.
	ManualPercent ManualKind = "percent"
	// ManualFixed deducts a flat amount, capped at the running total.
	ManualFixed ManualKind = "fixed"
)

// ManualDiscount is an ad-hoc, non-coupon deduction against the overall
// total. ComputedTotal is fixed in minor units at apply time and never
// distributed to individual items.
type ManualDiscount struct {
	ID            string
	Kind          ManualKind
	Amount        decimal.Decimal
	ComputedTotal int64
}

// ApplyManualDiscount parses spec, either a fixed amount ("5.00") or a
// percentage ("10%"), computes its deduction against the current
// post-discount total, and records it under a generated id. Unparseable
// specs are rejected with KindInvalidDiscount.
func (e *Engine) ApplyManualDiscount(spec string) (*ManualDiscount, error) {
	kind, amount, err := parseManualSpec(spec)
	if err != nil {
		return nil, coupon.NewValidationError(coupon.KindInvalidDiscount, "")
	}

	base := e.manualBase()

	var computed int64
	switch kind {
	case ManualPercent:
		// Aggregate-only deduction: truncated at minor-unit precision, no
		// per-item flooring or distribution.
		computed = decimal.NewFromInt(base).Mul(amount).Div(hundred).IntPart()
	case ManualFixed:
		computed = cart.ToMinorUnits(amount)
		if computed > base {
			computed = base
		}
	}
	if computed < 0 {
		computed = 0
	}

	md := ManualDiscount{
		ID:            e.manualID(kind, amount),
		Kind:          kind,
		Amount:        amount,
		ComputedTotal: computed,
	}
	e.manual = append(e.manual, md)

	return &md, nil
}

// ManualDiscounts returns the manual discounts recorded so far, in apply order.
func (e *Engine) ManualDiscounts() []ManualDiscount {
	out := make([]ManualDiscount, len(e.manual))
	copy(out, e.manual)
	return out
}

// manualBase is the amount still open to manual discounting: item remainders
// plus fees and shipping, less manual discounts already applied.
func (e *Engine) manualBase() int64 {
	var total int64
	for _, it := range e.items {
		total += e.remaining(it.Key, it.Price)
	}
	total += e.cfg.FeeTotal + e.cfg.ShippingTotal
	for _, md := range e.manual {
		total -= md.ComputedTotal
	}
	if total < 0 {
		return 0
	}
	return total
}

func (e *Engine) manualID(kind ManualKind, amount decimal.Decimal) string {
	base := "discount-" + amount.String()
	if kind == ManualPercent {
		base += "%"
	}

	id := base
	for n := 2; e.hasManualID(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

func (e *Engine) hasManualID(id string) bool {
	for _, md := range e.manual {
		if md.ID == id {
			return true
		}
	}
	return false
}

func parseManualSpec(spec string) (ManualKind, decimal.Decimal, error) {
	s := strings.TrimSpace(spec)
	if v, ok := strings.CutSuffix(s, "%"); ok {
		amount, err := decimal.NewFromString(strings.TrimSpace(v))
		return ManualPercent, amount, err
	}
	amount, err := decimal.NewFromString(s)
	return ManualFixed, amount, err
}
