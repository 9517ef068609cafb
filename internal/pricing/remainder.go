package pricing

import "github.com/xenking/kart-pricing/internal/domain/cart"

// distributeRemainder spreads amount one minor unit at a time across the
// working copies, in the descending-price order established by the
// normalizer, one unit of quantity per item per sweep. Each placement is
// capped by the item's remaining discountable amount, so flooring leftovers
// land deterministically and never push an item past its price. Returns the
// amount actually distributed, which is less than amount only when every
// item runs out of capacity.
func (e *Engine) distributeRemainder(amount int64, copies []cart.Item, code string) int64 {
	var distributed int64

	for amount > 0 {
		progressed := false
		for _, wc := range copies {
			for unit := int64(0); unit < wc.Quantity; unit++ {
				if amount == 0 {
					return distributed
				}
				if e.remaining(wc.Key, wc.Price) <= 0 {
					break
				}
				e.ledger.Add(code, wc.Key, 1)
				amount--
				distributed++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	return distributed
}
