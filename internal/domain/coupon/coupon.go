// Package coupon defines coupon records, the validation error taxonomy, and
// the eligibility rule chain that gates discount allocation.
package coupon

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/cart"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// TypePercent discounts each eligible item by a percentage of its basis.
	TypePercent DiscountType = "percent"
	// TypeFixedPerItem discounts a fixed amount per unit of each eligible item.
	TypeFixedPerItem DiscountType = "fixed_product"
	// TypeFixedCart spreads a fixed total amount across all eligible items.
	TypeFixedCart DiscountType = "fixed_cart"
	// TypeCustom delegates the per-item amount to a caller-supplied strategy.
	TypeCustom DiscountType = "custom"
)

// ErrNotFound is returned by repositories when no coupon exists for a code.
var ErrNotFound = errors.New("coupon not found")

// Coupon is a read-only discount specification. Amount is a percentage rate
// for TypePercent and a monetary amount at display precision otherwise.
type Coupon struct {
	Code        string
	Type        DiscountType
	Amount      decimal.Decimal
	Description string

	UsageLimit        int
	UsageCount        int
	UsageLimitPerUser int

	// LimitToQuantity caps the total item quantity the coupon may discount.
	// Zero means no cap.
	LimitToQuantity int64

	ExpiresAt *time.Time
	MinSpend  decimal.Decimal
	MaxSpend  decimal.Decimal

	ProductIDs          []string
	CategoryIDs         []string
	ExcludedProductIDs  []string
	ExcludedCategoryIDs []string
	ExcludeSaleItems    bool
	IndividualUse       bool
}

// IsCartWide reports whether the coupon targets the whole cart rather than
// individual items. Cart-wide coupons skip the per-item eligibility filter
// during allocation.
func (c *Coupon) IsCartWide() bool {
	return c.Type == TypeFixedCart
}

// AppliesToItem reports whether the coupon may discount an item backed by
// the given product reference.
func (c *Coupon) AppliesToItem(ref cart.ProductRef) bool {
	if len(c.ProductIDs) > 0 && !slices.Contains(c.ProductIDs, ref.ProductID) {
		return false
	}
	if len(c.CategoryIDs) > 0 && !intersects(c.CategoryIDs, ref.CategoryIDs) {
		return false
	}
	if slices.Contains(c.ExcludedProductIDs, ref.ProductID) {
		return false
	}
	if intersects(c.ExcludedCategoryIDs, ref.CategoryIDs) {
		return false
	}
	if c.ExcludeSaleItems && ref.OnSale {
		return false
	}
	return true
}

func intersects(a, b []string) bool {
	for _, v := range b {
		if slices.Contains(a, v) {
			return true
		}
	}
	return false
}

// Repository provides coupon lookup and redemption accounting.
type Repository interface {
	// FindByCode looks up a coupon by its code, case-insensitively.
	// Returns ErrNotFound when no matching active coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// UsageCountByUser returns how many times the given user has redeemed
	// the coupon.
	UsageCountByUser(ctx context.Context, code, userID string) (int, error)
}

// UsageCounter is the subset of Repository the validator needs for the
// per-user usage limit check.
type UsageCounter interface {
	UsageCountByUser(ctx context.Context, code, userID string) (int, error)
}
