package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

func TestCouponStore(t *testing.T) {
	ctx := context.Background()
	s := NewCouponStore()
	s.Add(coupon.Coupon{Code: "SAVE10", Type: coupon.TypePercent, Amount: decimal.NewFromInt(10)})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		c, err := s.FindByCode(ctx, "save10")
		require.NoError(t, err)
		assert.Equal(t, "SAVE10", c.Code)
	})

	t.Run("unknown code returns ErrNotFound", func(t *testing.T) {
		_, err := s.FindByCode(ctx, "NOPE")
		assert.ErrorIs(t, err, coupon.ErrNotFound)
	})

	t.Run("returned coupon is a copy", func(t *testing.T) {
		c, err := s.FindByCode(ctx, "SAVE10")
		require.NoError(t, err)
		c.UsageCount = 99

		again, err := s.FindByCode(ctx, "SAVE10")
		require.NoError(t, err)
		assert.Zero(t, again.UsageCount)
	})

	t.Run("redemptions accumulate per user and globally", func(t *testing.T) {
		require.NoError(t, s.RecordRedemption(ctx, "save10", "u1"))
		require.NoError(t, s.RecordRedemption(ctx, "SAVE10", "u1"))
		require.NoError(t, s.RecordRedemption(ctx, "SAVE10", "u2"))

		n, err := s.UsageCountByUser(ctx, "SAVE10", "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		c, err := s.FindByCode(ctx, "SAVE10")
		require.NoError(t, err)
		assert.Equal(t, 3, c.UsageCount)
	})

	t.Run("unknown user has zero count", func(t *testing.T) {
		n, err := s.UsageCountByUser(ctx, "SAVE10", "nobody")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
