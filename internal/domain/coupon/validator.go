package coupon

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-pricing/internal/domain/cart"
)

// Hook is a caller-supplied predicate run after the built-in rule chain.
// Returning a non-nil error vetoes the coupon; a returned *ValidationError
// is propagated unchanged, any other error is reported as KindRejectedByHook.
type Hook func(c *Coupon, items []cart.Item) error

// Validator runs the fixed eligibility rule chain against a coupon and the
// current item set. The first failing rule short-circuits the chain.
type Validator struct {
	counter UsageCounter
	hook    Hook
	now     func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithHook installs a custom business-rule predicate at the end of the chain.
func WithHook(h Hook) Option {
	return func(v *Validator) { v.hook = h }
}

// NewValidator creates a Validator. The counter backs the per-user usage
// limit check and may be nil when per-user limits are not enforced.
func NewValidator(counter UsageCounter, opts ...Option) *Validator {
	v := &Validator{counter: counter, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks the coupon against the item set. It returns nil when the
// coupon may be applied, a *ValidationError describing the first failing
// rule otherwise. Lookups against the usage counter are the only blocking
// calls; their failures are returned as plain wrapped errors, distinct from
// the validation taxonomy.
func (v *Validator) Validate(ctx context.Context, c *Coupon, items []cart.Item, userID string) error {
	if c == nil {
		return NewValidationError(KindNotExists, "")
	}

	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return NewValidationError(KindUsageLimitReached, c.Code)
	}

	// Only the id-based limit is enforced here; checkout validation repeats
	// the check against the customer's email addresses.
	if c.UsageLimitPerUser > 0 && userID != "" && v.counter != nil {
		used, err := v.counter.UsageCountByUser(ctx, c.Code, userID)
		if err != nil {
			return errors.Wrapf(err, "usage count for coupon %q", c.Code)
		}
		if used >= c.UsageLimitPerUser {
			return NewValidationError(KindUsageLimitReachedUser, c.Code)
		}
	}

	if c.ExpiresAt != nil && v.now().After(*c.ExpiresAt) {
		return NewValidationError(KindExpired, c.Code)
	}

	subtotal := cart.Subtotal(items)
	if c.MinSpend.IsPositive() && subtotal < cart.ToMinorUnits(c.MinSpend) {
		return NewValidationError(KindMinSpendNotMet, c.Code)
	}
	if c.MaxSpend.IsPositive() && subtotal > cart.ToMinorUnits(c.MaxSpend) {
		return NewValidationError(KindMaxSpendExceeded, c.Code)
	}

	if err := v.checkItemFilters(c, items); err != nil {
		return err
	}

	if v.hook != nil {
		if err := v.hook(c, items); err != nil {
			if verr := AsValidation(err); verr != nil {
				return verr
			}
			return NewValidationError(KindRejectedByHook, c.Code)
		}
	}

	return nil
}

func (v *Validator) checkItemFilters(c *Coupon, items []cart.Item) error {
	if len(c.ProductIDs) > 0 && !anyItem(items, func(it cart.Item) bool {
		return slices.Contains(c.ProductIDs, it.Ref.ProductID)
	}) {
		return NewValidationError(KindNoMatchingProducts, c.Code)
	}

	if len(c.CategoryIDs) > 0 && !anyItem(items, func(it cart.Item) bool {
		return intersects(c.CategoryIDs, it.Ref.CategoryIDs)
	}) {
		return NewValidationError(KindNoMatchingCategories, c.Code)
	}

	if c.ExcludeSaleItems && len(items) > 0 && !anyItem(items, func(it cart.Item) bool {
		return !it.Ref.OnSale
	}) {
		return NewValidationError(KindNotValidForSaleItems, c.Code)
	}

	// Exclusion lists invalidate cart-wide coupons outright; item-targeted
	// coupons silently skip the excluded items during allocation instead.
	if c.IsCartWide() {
		if anyItem(items, func(it cart.Item) bool {
			return slices.Contains(c.ExcludedProductIDs, it.Ref.ProductID)
		}) {
			return NewValidationError(KindExcludedProducts, c.Code)
		}
		if anyItem(items, func(it cart.Item) bool {
			return intersects(c.ExcludedCategoryIDs, it.Ref.CategoryIDs)
		}) {
			return NewValidationError(KindExcludedCategories, c.Code)
		}
		if len(items) > 0 && !anyItem(items, func(it cart.Item) bool {
			return c.AppliesToItem(it.Ref)
		}) {
			return NewValidationError(KindNoEligibleItems, c.Code)
		}
	}

	return nil
}

func anyItem(items []cart.Item, pred func(cart.Item) bool) bool {
	for _, it := range items {
		if pred(it) {
			return true
		}
	}
	return false
}
