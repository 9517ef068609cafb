package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// maxCartSplitIterations bounds the fixed-cart split loop so a pathological
// item set cannot spin the leftover redistribution forever.
const maxCartSplitIterations = 50

var hundred = decimal.NewFromInt(100)

// CustomAmountFunc computes the per-item discount for a TypeCustom coupon.
// basis is the item's remaining discountable amount in minor units; the
// returned amount is clamped to [0, basis] by the engine.
type CustomAmountFunc func(item cart.Item, basis int64, c *coupon.Coupon) int64

// CouponValidator gates coupon application. coupon.Validator satisfies it.
type CouponValidator interface {
	Validate(ctx context.Context, c *coupon.Coupon, items []cart.Item, userID string) error
}

// Config carries the pass-scoped knobs of the engine. The zero value is a
// usable default: non-sequential percent basis and FixedPerItem behaviour
// for custom coupons.
type Config struct {
	// SequentialPercent makes later percent coupons compute their rate off
	// what earlier coupons left, instead of the pre-discount price.
	SequentialPercent bool
	// CustomAmount overrides the per-item amount for TypeCustom coupons.
	CustomAmount CustomAmountFunc
	// UserID identifies the current user for per-user usage limits.
	UserID string
	// FeeTotal and ShippingTotal feed the manual-discount base, in minor units.
	FeeTotal      int64
	ShippingTotal int64
}

// Engine allocates coupon and manual discounts over a snapshot of cart
// items. It never mutates the snapshot; quantity-capped coupons operate on
// working copies scoped to a single application. An Engine is bound to one
// pricing pass and is not safe for concurrent use.
type Engine struct {
	items     []cart.Item
	ledger    *Ledger
	manual    []ManualDiscount
	validator CouponValidator
	cfg       Config
}

// NewEngine creates an engine over the given normalized items. The items
// slice must already be in the normalizer's descending-price order. The
// validator may be nil when callers validate separately.
func NewEngine(items []cart.Item, validator CouponValidator, cfg Config) *Engine {
	snapshot := make([]cart.Item, len(items))
	copy(snapshot, items)
	return &Engine{
		items:     snapshot,
		ledger:    NewLedger(),
		validator: validator,
		cfg:       cfg,
	}
}

// ApplyCoupon validates the coupon and allocates its discount across the
// eligible items. Validation failures are returned unchanged; a validated
// coupon that finds nothing left to discount is a no-op, not an error.
// Unknown discount types are ignored for forward compatibility.
func (e *Engine) ApplyCoupon(ctx context.Context, c *coupon.Coupon) error {
	if e.validator != nil {
		if err := e.validator.Validate(ctx, c, e.items, e.cfg.UserID); err != nil {
			return err
		}
	}

	copies := e.itemsToApply(c)
	if len(copies) == 0 {
		return nil
	}

	switch c.Type {
	case coupon.TypePercent:
		e.applyPercent(c, copies)
	case coupon.TypeFixedPerItem:
		e.applyFixedPerItem(copies, cart.ToMinorUnits(c.Amount), c.Code)
	case coupon.TypeFixedCart:
		e.applyFixedCart(c, copies)
	case coupon.TypeCustom:
		e.applyCustom(c, copies)
	default:
	}

	return nil
}

// RemoveCoupon drops a previously applied coupon's allocations, e.g. when an
// individual-use coupon displaces it.
func (e *Engine) RemoveCoupon(code string) {
	e.ledger.Remove(code)
}

// remaining returns the undiscounted portion of the item identified by key,
// measured against the given price (canonical or working-copy).
func (e *Engine) remaining(key string, price int64) int64 {
	rem := price - e.ledger.ItemTotal(key)
	if rem < 0 {
		return 0
	}
	return rem
}

// itemsToApply builds the working copies for one coupon application: items
// with discountable remainder that pass the coupon's eligibility predicate,
// truncated at the coupon's quantity cap. An item straddling the cap is
// included as a proportionally shrunk copy so only the allowed portion is
// discounted.
func (e *Engine) itemsToApply(c *coupon.Coupon) []cart.Item {
	copies := make([]cart.Item, 0, len(e.items))
	var counted int64

	for _, it := range e.items {
		if e.remaining(it.Key, it.Price) <= 0 {
			continue
		}
		if !c.IsCartWide() && !c.AppliesToItem(it.Ref) {
			continue
		}

		wc := it
		if c.LimitToQuantity > 0 {
			if counted >= c.LimitToQuantity {
				break
			}
			if left := c.LimitToQuantity - counted; wc.Quantity > left {
				wc.Price = wc.Price * left / wc.Quantity
				wc.Quantity = left
			}
		}
		counted += wc.Quantity
		copies = append(copies, wc)
	}

	return copies
}

// applyPercent allocates floor(basis * rate / 100) to each item, then closes
// the gap to the half-up rounded cart-level total via the remainder
// distributor, so the coupon's total matches the theoretical discount
// exactly.
func (e *Engine) applyPercent(c *coupon.Coupon, copies []cart.Item) {
	var applied int64
	theoretical := decimal.Zero

	for _, wc := range copies {
		rem := e.remaining(wc.Key, wc.Price)
		basis := wc.Price
		if e.cfg.SequentialPercent {
			basis = rem
		}

		exact := decimal.NewFromInt(basis).Mul(c.Amount).Div(hundred)
		d := exact.Floor().IntPart()
		if d > rem {
			d = rem
		}
		if d > 0 {
			e.ledger.Add(c.Code, wc.Key, d)
			applied += d
		}
		theoretical = theoretical.Add(exact)
	}

	if want := theoretical.Round(0).IntPart(); applied < want {
		e.distributeRemainder(want-applied, copies, c.Code)
	}
}

// applyFixedPerItem discounts min(remaining, perUnit * quantity) from each
// item and returns the total actually applied. It also serves as the split
// step of fixed-cart allocation, with perUnit set to the per-unit share.
func (e *Engine) applyFixedPerItem(copies []cart.Item, perUnit int64, code string) int64 {
	var total int64
	for _, wc := range copies {
		rem := e.remaining(wc.Key, wc.Price)
		d := perUnit * wc.Quantity
		if d > rem {
			d = rem
		}
		if d <= 0 {
			continue
		}
		e.ledger.Add(code, wc.Key, d)
		total += d
	}
	return total
}

// applyFixedCart spreads the coupon's total amount over the eligible items:
// an equal per-unit share first, then repeated narrower splits over items
// that still have remainder, and finally unit-at-a-time distribution once
// the share rounds down to zero.
func (e *Engine) applyFixedCart(c *coupon.Coupon, copies []cart.Item) {
	left := cart.ToMinorUnits(c.Amount)

	for iter := 0; iter < maxCartSplitIterations && left > 0; iter++ {
		live := copies[:0:0]
		var qty int64
		for _, wc := range copies {
			if e.remaining(wc.Key, wc.Price) > 0 {
				live = append(live, wc)
				qty += wc.Quantity
			}
		}
		if len(live) == 0 || qty <= 0 {
			return
		}

		share := left / qty
		if share == 0 {
			e.distributeRemainder(left, live, c.Code)
			return
		}

		applied := e.applyFixedPerItem(live, share, c.Code)
		if applied == 0 {
			return
		}
		left -= applied
	}
}

// applyCustom delegates the per-item amount to the configured strategy,
// falling back to FixedPerItem semantics when none is set.
func (e *Engine) applyCustom(c *coupon.Coupon, copies []cart.Item) {
	fn := e.cfg.CustomAmount
	if fn == nil {
		e.applyFixedPerItem(copies, cart.ToMinorUnits(c.Amount), c.Code)
		return
	}

	for _, wc := range copies {
		rem := e.remaining(wc.Key, wc.Price)
		if rem <= 0 {
			continue
		}
		d := fn(wc, rem, c)
		if d > rem {
			d = rem
		}
		if d > 0 {
			e.ledger.Add(c.Code, wc.Key, d)
		}
	}
}
