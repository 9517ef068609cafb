// Package pricing implements the discount allocation engine: it decides how
// much of each coupon's discount lands on each cart item, in integer minor
// units, with deterministic rounding and remainder placement.
package pricing

// ManualDiscountKey is the pseudo-coupon key under which manual discounts
// appear in aggregated views.
const ManualDiscountKey = "manual"

// Ledger records per-coupon, per-item discount amounts for a single pricing
// pass. It is created empty at the start of a pass and discarded once the
// aggregated views have been read.
type Ledger struct {
	codes   []string
	entries map[string]map[string]int64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]map[string]int64)}
}

// Add records amount minor units of discount for the item under the coupon.
func (l *Ledger) Add(code, itemKey string, amount int64) {
	if amount <= 0 {
		return
	}
	m, ok := l.entries[code]
	if !ok {
		m = make(map[string]int64)
		l.entries[code] = m
		l.codes = append(l.codes, code)
	}
	m[itemKey] += amount
}

// Remove drops every entry recorded under the coupon.
func (l *Ledger) Remove(code string) {
	if _, ok := l.entries[code]; !ok {
		return
	}
	delete(l.entries, code)
	for i, c := range l.codes {
		if c == code {
			l.codes = append(l.codes[:i], l.codes[i+1:]...)
			break
		}
	}
}

// Codes returns the coupon codes in application order.
func (l *Ledger) Codes() []string {
	out := make([]string, len(l.codes))
	copy(out, l.codes)
	return out
}

// CouponTotal returns the sum of the coupon's per-item amounts.
func (l *Ledger) CouponTotal(code string) int64 {
	var sum int64
	for _, v := range l.entries[code] {
		sum += v
	}
	return sum
}

// ItemTotal returns the discount accumulated on the item across all coupons.
func (l *Ledger) ItemTotal(itemKey string) int64 {
	var sum int64
	for _, m := range l.entries {
		sum += m[itemKey]
	}
	return sum
}

// ItemAmounts returns a copy of the coupon's per-item discount map.
func (l *Ledger) ItemAmounts(code string) map[string]int64 {
	m, ok := l.entries[code]
	if !ok {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
