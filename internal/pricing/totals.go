package pricing

import "github.com/xenking/kart-pricing/internal/domain/cart"

// Read-side views over the ledgers. Clamping to zero happens here, at the
// read boundary; ledger entries themselves are never rewritten.

// Items returns the canonical item snapshot in allocation order.
func (e *Engine) Items() []cart.Item {
	out := make([]cart.Item, len(e.items))
	copy(out, e.items)
	return out
}

// Subtotal returns the pre-discount sum of all item prices in minor units.
func (e *Engine) Subtotal() int64 {
	return cart.Subtotal(e.items)
}

// DiscountsByCoupon returns each applied coupon's total discount, with all
// manual discounts folded into a single ManualDiscountKey entry.
func (e *Engine) DiscountsByCoupon() map[string]int64 {
	out := make(map[string]int64, len(e.ledger.codes)+1)
	for _, code := range e.ledger.codes {
		out[code] = e.ledger.CouponTotal(code)
	}
	if mt := e.manualTotal(); mt > 0 {
		out[ManualDiscountKey] = mt
	}
	return out
}

// DiscountsByItem returns the coupon discount accumulated on each item key.
// Manual discounts are aggregate-only and do not appear per item.
func (e *Engine) DiscountsByItem() map[string]int64 {
	out := make(map[string]int64, len(e.items))
	for _, it := range e.items {
		if total := e.ledger.ItemTotal(it.Key); total > 0 {
			out[it.Key] = total
		}
	}
	return out
}

// ItemDiscounts returns a copy of one coupon's per-item allocation map.
func (e *Engine) ItemDiscounts(code string) map[string]int64 {
	return e.ledger.ItemAmounts(code)
}

// DiscountedPrice returns the item's price after all coupon discounts,
// clamped at zero. Unknown keys return zero.
func (e *Engine) DiscountedPrice(key string) int64 {
	for _, it := range e.items {
		if it.Key == key {
			return e.remaining(it.Key, it.Price)
		}
	}
	return 0
}

// TotalDiscount returns the overall deduction of the pass: coupon
// allocations plus manual discounts.
func (e *Engine) TotalDiscount() int64 {
	var total int64
	for _, code := range e.ledger.codes {
		total += e.ledger.CouponTotal(code)
	}
	return total + e.manualTotal()
}

// Total returns subtotal plus fees and shipping, less all discounts,
// clamped at zero.
func (e *Engine) Total() int64 {
	total := e.Subtotal() + e.cfg.FeeTotal + e.cfg.ShippingTotal - e.TotalDiscount()
	if total < 0 {
		return 0
	}
	return total
}

func (e *Engine) manualTotal() int64 {
	var total int64
	for _, md := range e.manual {
		total += md.ComputedTotal
	}
	return total
}
