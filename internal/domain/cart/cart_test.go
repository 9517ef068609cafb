package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		lines      []Line
		wantKeys   []string
		wantPrices []int64
	}{
		{
			name:  "empty input yields empty items",
			lines: nil,
		},
		{
			name: "line total is unit price times quantity at working precision",
			lines: []Line{
				{Key: "a", UnitPrice: d("2.50"), Quantity: 3},
			},
			wantKeys:   []string{"a"},
			wantPrices: []int64{75000},
		},
		{
			name: "items sorted by descending line total",
			lines: []Line{
				{Key: "cheap", UnitPrice: d("1.00"), Quantity: 1},
				{Key: "mid", UnitPrice: d("2.00"), Quantity: 2},
				{Key: "dear", UnitPrice: d("10.00"), Quantity: 1},
			},
			wantKeys:   []string{"dear", "mid", "cheap"},
			wantPrices: []int64{100000, 40000, 10000},
		},
		{
			name: "equal totals keep original relative order",
			lines: []Line{
				{Key: "first", UnitPrice: d("5.00"), Quantity: 1},
				{Key: "second", UnitPrice: d("2.50"), Quantity: 2},
				{Key: "third", UnitPrice: d("5.00"), Quantity: 1},
			},
			wantKeys:   []string{"first", "second", "third"},
			wantPrices: []int64{50000, 50000, 50000},
		},
		{
			name: "sub-cent unit prices survive scaling",
			lines: []Line{
				{Key: "a", UnitPrice: d("0.0001"), Quantity: 1},
			},
			wantKeys:   []string{"a"},
			wantPrices: []int64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := Normalize(tt.lines)
			require.Len(t, items, len(tt.wantKeys))
			for i := range items {
				assert.Equal(t, tt.wantKeys[i], items[i].Key)
				assert.Equal(t, tt.wantPrices[i], items[i].Price)
			}
		})
	}
}

func TestNormalizeKeepsLineAttributes(t *testing.T) {
	items := Normalize([]Line{
		{
			Key:       "a",
			UnitPrice: d("3.00"),
			Quantity:  2,
			Taxable:   true,
			TaxClass:  "standard",
			Ref:       ProductRef{ProductID: "p1", CategoryIDs: []string{"c1"}, OnSale: true},
		},
	})

	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, int64(2), it.Quantity)
	assert.True(t, it.Taxable)
	assert.Equal(t, "standard", it.TaxClass)
	assert.Equal(t, "p1", it.Ref.ProductID)
	assert.True(t, it.Ref.OnSale)
}

func TestMinorUnitsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(12345), ToMinorUnits(d("1.2345")))
	assert.Equal(t, int64(10000), ToMinorUnits(d("1")))
	// Half away from zero at the working precision boundary.
	assert.Equal(t, int64(13), ToMinorUnits(d("0.00125")))
	assert.True(t, d("1.2345").Equal(FromMinorUnits(12345)))
}

func TestSubtotal(t *testing.T) {
	items := Normalize([]Line{
		{Key: "a", UnitPrice: d("1.00"), Quantity: 2},
		{Key: "b", UnitPrice: d("0.50"), Quantity: 1},
	})
	assert.Equal(t, int64(25000), Subtotal(items))
	assert.Zero(t, Subtotal(nil))
}
