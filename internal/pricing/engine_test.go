package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// item builds a test item with price given directly in minor units.
func item(key string, price, qty int64) cart.Item {
	return cart.Item{Key: key, Price: price, Quantity: qty}
}

func TestApplyCouponPercent(t *testing.T) {
	tests := []struct {
		name       string
		items      []cart.Item
		rate       string
		sequential bool
		want       map[string]int64
	}{
		{
			name:  "remainder unit goes to highest priced item",
			items: []cart.Item{item("a", 1000, 1), item("b", 999, 1)},
			rate:  "10",
			// floor: 100 + 99 = 199, theoretical round(199.9) = 200,
			// the missing unit lands on the first item.
			want: map[string]int64{"a": 101, "b": 99},
		},
		{
			name:  "exact division leaves no remainder",
			items: []cart.Item{item("a", 1000, 1), item("b", 500, 1)},
			rate:  "10",
			want:  map[string]int64{"a": 100, "b": 50},
		},
		{
			name:  "rate above 100 is capped at the item price",
			items: []cart.Item{item("a", 1000, 1)},
			rate:  "150",
			want:  map[string]int64{"a": 1000},
		},
		{
			name:  "100 percent consumes everything",
			items: []cart.Item{item("a", 777, 1), item("b", 333, 2)},
			rate:  "100",
			want:  map[string]int64{"a": 777, "b": 333},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.items, nil, Config{SequentialPercent: tt.sequential})
			c := &coupon.Coupon{Code: "PCT", Type: coupon.TypePercent, Amount: d(tt.rate)}

			require.NoError(t, e.ApplyCoupon(context.Background(), c))
			assert.Equal(t, tt.want, e.ItemDiscounts("PCT"))
		})
	}
}

func TestApplyCouponPercentBasisSelection(t *testing.T) {
	items := []cart.Item{item("a", 1000, 1)}
	first := &coupon.Coupon{Code: "FIRST", Type: coupon.TypePercent, Amount: d("10")}
	second := &coupon.Coupon{Code: "SECOND", Type: coupon.TypePercent, Amount: d("10")}

	t.Run("non-sequential computes off the pre-discount price", func(t *testing.T) {
		e := NewEngine(items, nil, Config{})
		require.NoError(t, e.ApplyCoupon(context.Background(), first))
		require.NoError(t, e.ApplyCoupon(context.Background(), second))

		assert.Equal(t, int64(100), e.ledger.CouponTotal("FIRST"))
		assert.Equal(t, int64(100), e.ledger.CouponTotal("SECOND"))
	})

	t.Run("sequential computes off what earlier coupons left", func(t *testing.T) {
		e := NewEngine(items, nil, Config{SequentialPercent: true})
		require.NoError(t, e.ApplyCoupon(context.Background(), first))
		require.NoError(t, e.ApplyCoupon(context.Background(), second))

		assert.Equal(t, int64(100), e.ledger.CouponTotal("FIRST"))
		assert.Equal(t, int64(90), e.ledger.CouponTotal("SECOND"))
	})
}

func TestApplyCouponFixedCart(t *testing.T) {
	t.Run("even spread with unit remainder", func(t *testing.T) {
		items := []cart.Item{item("a", 100, 1), item("b", 100, 1), item("c", 100, 1)}
		e := NewEngine(items, nil, Config{})
		c := &coupon.Coupon{Code: "CART", Type: coupon.TypeFixedCart, Amount: cart.FromMinorUnits(50)}

		require.NoError(t, e.ApplyCoupon(context.Background(), c))

		// per-unit share 16 applies 48, the leftover 2 goes one unit at a
		// time in item order.
		assert.Equal(t, map[string]int64{"a": 17, "b": 17, "c": 16}, e.ItemDiscounts("CART"))
		assert.Equal(t, int64(50), e.ledger.CouponTotal("CART"))
	})

	t.Run("ceiling-hit items trigger a narrower second split", func(t *testing.T) {
		items := []cart.Item{item("a", 1000, 1), item("b", 30, 1)}
		e := NewEngine(items, nil, Config{})
		c := &coupon.Coupon{Code: "CART", Type: coupon.TypeFixedCart, Amount: cart.FromMinorUnits(500)}

		require.NoError(t, e.ApplyCoupon(context.Background(), c))

		// First split 250/250 caps item b at 30; the 220 leftover is
		// re-split over the item with remainder.
		assert.Equal(t, int64(500), e.ledger.CouponTotal("CART"))
		assert.Equal(t, map[string]int64{"a": 470, "b": 30}, e.ItemDiscounts("CART"))
	})

	t.Run("amount smaller than item count goes straight to distribution", func(t *testing.T) {
		items := []cart.Item{item("a", 100, 1), item("b", 100, 1), item("c", 100, 1)}
		e := NewEngine(items, nil, Config{})
		c := &coupon.Coupon{Code: "CART", Type: coupon.TypeFixedCart, Amount: cart.FromMinorUnits(2)}

		require.NoError(t, e.ApplyCoupon(context.Background(), c))
		assert.Equal(t, map[string]int64{"a": 1, "b": 1}, e.ItemDiscounts("CART"))
	})

	t.Run("allocates exactly the amount whenever it fits", func(t *testing.T) {
		items := []cart.Item{item("a", 10000, 1), item("b", 5000, 2), item("c", 3333, 1)}
		e := NewEngine(items, nil, Config{})
		c := &coupon.Coupon{Code: "CART", Type: coupon.TypeFixedCart, Amount: cart.FromMinorUnits(1234)}

		require.NoError(t, e.ApplyCoupon(context.Background(), c))
		assert.Equal(t, int64(1234), e.ledger.CouponTotal("CART"))
	})

	t.Run("amount above total prices allocates everything available", func(t *testing.T) {
		items := []cart.Item{item("a", 100, 1), item("b", 50, 1)}
		e := NewEngine(items, nil, Config{})
		c := &coupon.Coupon{Code: "CART", Type: coupon.TypeFixedCart, Amount: cart.FromMinorUnits(500)}

		require.NoError(t, e.ApplyCoupon(context.Background(), c))
		assert.Equal(t, int64(150), e.ledger.CouponTotal("CART"))
	})
}

func TestApplyCouponFixedPerItem(t *testing.T) {
	items := []cart.Item{item("a", 1000, 2), item("b", 300, 1)}
	e := NewEngine(items, nil, Config{})
	c := &coupon.Coupon{Code: "FIX", Type: coupon.TypeFixedPerItem, Amount: cart.FromMinorUnits(400)}

	require.NoError(t, e.ApplyCoupon(context.Background(), c))

	// a: 400 * 2 = 800 fits; b: 400 capped at the 300 remaining.
	assert.Equal(t, map[string]int64{"a": 800, "b": 300}, e.ItemDiscounts("FIX"))
}

func TestApplyCouponCustom(t *testing.T) {
	items := []cart.Item{item("a", 1000, 1), item("b", 10, 1)}

	t.Run("delegates to the configured strategy, clamped at remaining", func(t *testing.T) {
		e := NewEngine(items, nil, Config{
			CustomAmount: func(_ cart.Item, basis int64, _ *coupon.Coupon) int64 {
				return basis / 2
			},
		})
		c := &coupon.Coupon{Code: "CUST", Type: coupon.TypeCustom}

		require.NoError(t, e.ApplyCoupon(context.Background(), c))
		assert.Equal(t, map[string]int64{"a": 500, "b": 5}, e.ItemDiscounts("CUST"))
	})

	t.Run("defaults to fixed-per-item behaviour", func(t *testing.T) {
		e := NewEngine(items, nil, Config{})
		c := &coupon.Coupon{Code: "CUST", Type: coupon.TypeCustom, Amount: cart.FromMinorUnits(100)}

		require.NoError(t, e.ApplyCoupon(context.Background(), c))
		assert.Equal(t, map[string]int64{"a": 100, "b": 10}, e.ItemDiscounts("CUST"))
	})
}

func TestApplyCouponQuantityCap(t *testing.T) {
	items := []cart.Item{item("a", 3000, 3), item("b", 2000, 2)}
	e := NewEngine(items, nil, Config{})
	c := &coupon.Coupon{
		Code:            "CAP",
		Type:            coupon.TypeFixedPerItem,
		Amount:          cart.FromMinorUnits(1000),
		LimitToQuantity: 4,
	}

	require.NoError(t, e.ApplyCoupon(context.Background(), c))

	// Item a contributes its full 3 units; item b straddles the cap and is
	// shrunk to 1 unit with a proportional price of 1000.
	assert.Equal(t, map[string]int64{"a": 3000, "b": 1000}, e.ItemDiscounts("CAP"))

	// The canonical snapshot is untouched.
	got := e.Items()
	assert.Equal(t, int64(2000), got[1].Price)
	assert.Equal(t, int64(2), got[1].Quantity)
}

func TestApplyCouponFiltersIneligibleItems(t *testing.T) {
	items := []cart.Item{
		{Key: "a", Price: 1000, Quantity: 1, Ref: cart.ProductRef{ProductID: "p1"}},
		{Key: "b", Price: 1000, Quantity: 1, Ref: cart.ProductRef{ProductID: "p2"}},
	}
	e := NewEngine(items, nil, Config{})
	c := &coupon.Coupon{
		Code:       "ONLY1",
		Type:       coupon.TypePercent,
		Amount:     d("10"),
		ProductIDs: []string{"p1"},
	}

	require.NoError(t, e.ApplyCoupon(context.Background(), c))
	assert.Equal(t, map[string]int64{"a": 100}, e.ItemDiscounts("ONLY1"))
}

func TestApplyCouponNoEligibleItemsIsNoop(t *testing.T) {
	items := []cart.Item{
		{Key: "a", Price: 1000, Quantity: 1, Ref: cart.ProductRef{ProductID: "p1"}},
	}
	e := NewEngine(items, nil, Config{})
	c := &coupon.Coupon{
		Code:       "NOPE",
		Type:       coupon.TypePercent,
		Amount:     d("10"),
		ProductIDs: []string{"p9"},
	}

	require.NoError(t, e.ApplyCoupon(context.Background(), c))
	assert.Empty(t, e.ItemDiscounts("NOPE"))
	assert.Zero(t, e.TotalDiscount())
}

func TestApplyCouponFullyDiscountedItemsAreSkipped(t *testing.T) {
	items := []cart.Item{item("a", 1000, 1)}
	e := NewEngine(items, nil, Config{})

	free := &coupon.Coupon{Code: "FREE", Type: coupon.TypePercent, Amount: d("100")}
	require.NoError(t, e.ApplyCoupon(context.Background(), free))

	fix := &coupon.Coupon{Code: "FIX", Type: coupon.TypeFixedPerItem, Amount: cart.FromMinorUnits(100)}
	require.NoError(t, e.ApplyCoupon(context.Background(), fix))

	assert.Equal(t, int64(1000), e.ledger.CouponTotal("FREE"))
	assert.Zero(t, e.ledger.CouponTotal("FIX"))
}

func TestApplyCouponUnknownTypeIgnored(t *testing.T) {
	items := []cart.Item{item("a", 1000, 1)}
	e := NewEngine(items, nil, Config{})
	c := &coupon.Coupon{Code: "BOGO", Type: coupon.DiscountType("buy_one_get_one"), Amount: d("1")}

	require.NoError(t, e.ApplyCoupon(context.Background(), c))
	assert.Zero(t, e.TotalDiscount())
}

func TestConservationAcrossCouponCombinations(t *testing.T) {
	items := []cart.Item{item("a", 997, 3), item("b", 401, 1), item("c", 89, 2)}
	coupons := []*coupon.Coupon{
		{Code: "P33", Type: coupon.TypePercent, Amount: d("33.3")},
		{Code: "CART", Type: coupon.TypeFixedCart, Amount: cart.FromMinorUnits(700)},
		{Code: "FIX", Type: coupon.TypeFixedPerItem, Amount: cart.FromMinorUnits(150)},
		{Code: "P90", Type: coupon.TypePercent, Amount: d("90")},
	}

	e := NewEngine(items, nil, Config{SequentialPercent: true})
	for _, c := range coupons {
		require.NoError(t, e.ApplyCoupon(context.Background(), c))
	}

	for _, it := range items {
		total := e.ledger.ItemTotal(it.Key)
		assert.LessOrEqual(t, total, it.Price, "item %s over-discounted", it.Key)
		assert.GreaterOrEqual(t, e.DiscountedPrice(it.Key), int64(0))
	}
}

func TestAllocationIsDeterministic(t *testing.T) {
	items := []cart.Item{item("a", 999, 2), item("b", 999, 1), item("c", 250, 4)}
	coupons := []*coupon.Coupon{
		{Code: "P10", Type: coupon.TypePercent, Amount: d("10")},
		{Code: "CART", Type: coupon.TypeFixedCart, Amount: cart.FromMinorUnits(123)},
	}

	run := func() map[string]int64 {
		e := NewEngine(items, nil, Config{})
		for _, c := range coupons {
			require.NoError(t, e.ApplyCoupon(context.Background(), c))
		}
		return e.DiscountsByItem()
	}

	first := run()
	for range 10 {
		assert.Equal(t, first, run())
	}
}

func TestRemoveCoupon(t *testing.T) {
	items := []cart.Item{item("a", 1000, 1)}
	e := NewEngine(items, nil, Config{})
	c := &coupon.Coupon{Code: "GONE", Type: coupon.TypePercent, Amount: d("10")}

	require.NoError(t, e.ApplyCoupon(context.Background(), c))
	require.Equal(t, int64(100), e.TotalDiscount())

	e.RemoveCoupon("GONE")
	assert.Zero(t, e.TotalDiscount())
	assert.Empty(t, e.ledger.Codes())
}

func TestDistributeRemainderRespectsCapacity(t *testing.T) {
	items := []cart.Item{item("a", 3, 1), item("b", 2, 1)}
	e := NewEngine(items, nil, Config{})

	distributed := e.distributeRemainder(10, items, "REM")

	// Only 5 units of capacity exist in total.
	assert.Equal(t, int64(5), distributed)
	assert.Equal(t, map[string]int64{"a": 3, "b": 2}, e.ItemDiscounts("REM"))
}

func TestDistributeRemainderSweepsByQuantity(t *testing.T) {
	items := []cart.Item{item("a", 100, 2), item("b", 100, 1)}
	e := NewEngine(items, nil, Config{})

	distributed := e.distributeRemainder(3, items, "REM")

	// One sweep: two units on the first item, one on the second.
	assert.Equal(t, int64(3), distributed)
	assert.Equal(t, map[string]int64{"a": 2, "b": 1}, e.ItemDiscounts("REM"))
}

func TestApplyCouponRunsValidator(t *testing.T) {
	items := []cart.Item{item("a", 1000, 1)}
	verr := coupon.NewValidationError(coupon.KindExpired, "OLD")
	e := NewEngine(items, stubValidator{err: verr}, Config{})

	err := e.ApplyCoupon(context.Background(), &coupon.Coupon{Code: "OLD", Type: coupon.TypePercent, Amount: d("10")})

	require.Error(t, err)
	assert.Equal(t, verr, coupon.AsValidation(err))
	assert.Zero(t, e.TotalDiscount())
}

type stubValidator struct {
	err error
}

func (s stubValidator) Validate(context.Context, *coupon.Coupon, []cart.Item, string) error {
	return s.err
}
