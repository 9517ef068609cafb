// Package cart normalizes external order lines into the integer-precision
// item records the discount engine operates on.
package cart

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places of the working precision.
// Line totals are stored as integers scaled by 10^PriceScale, two digits
// finer than display precision so repeated allocations do not accumulate
// rounding loss.
const PriceScale = 4

// ProductRef carries the catalog attributes of the line's backing product.
// The discount engine reads it only through coupon eligibility predicates.
type ProductRef struct {
	ProductID   string
	CategoryIDs []string
	OnSale      bool
}

// Line is a single external cart or order line before normalization.
type Line struct {
	Key       string
	UnitPrice decimal.Decimal
	Quantity  int64
	Taxable   bool
	TaxClass  string
	Ref       ProductRef
}

// Item is a normalized line with its total price in minor units at the
// working precision. Price and Quantity may shrink on a scoped working copy
// during a single coupon application; the canonical item list is never
// mutated.
type Item struct {
	Key      string
	Price    int64
	Quantity int64
	Taxable  bool
	TaxClass string
	Ref      ProductRef
}

// ToMinorUnits converts a display-precision amount to working minor units,
// rounding half away from zero.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(PriceScale).Round(0).IntPart()
}

// FromMinorUnits converts working minor units back to a display amount.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Shift(-PriceScale)
}

// Normalize converts external lines into items with integer line totals and
// sorts them by descending price. The sort is stable, so lines with equal
// totals keep their original relative order; downstream allocation depends
// on this order being deterministic.
func Normalize(lines []Line) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		total := l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
		items = append(items, Item{
			Key:      l.Key,
			Price:    ToMinorUnits(total),
			Quantity: l.Quantity,
			Taxable:  l.Taxable,
			TaxClass: l.TaxClass,
			Ref:      l.Ref,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Price > items[j].Price
	})

	return items
}

// Subtotal returns the sum of all item prices in minor units.
func Subtotal(items []Item) int64 {
	var sum int64
	for _, it := range items {
		sum += it.Price
	}
	return sum
}
