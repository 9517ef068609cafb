package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, amount, description,
		usage_limit, usage_count, usage_limit_per_user, limit_to_quantity,
		expires_at, min_spend, max_spend,
		product_ids, category_ids, excluded_product_ids, excluded_category_ids,
		exclude_sale_items, individual_use
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	usageCountByUserSQL = `SELECT COUNT(*) FROM coupon_redemptions
		WHERE UPPER(code) = UPPER($1) AND user_id = $2`

	recordRedemptionSQL = `INSERT INTO coupon_redemptions (code, user_id) VALUES ($1, $2)`

	incrementUsageCountSQL = `UPDATE coupons SET usage_count = usage_count + 1 WHERE code = $1`

	upsertCouponSQL = `INSERT INTO coupons (
			code, discount_type, amount, description,
			usage_limit, usage_limit_per_user, limit_to_quantity,
			expires_at, min_spend, max_spend,
			product_ids, category_ids, excluded_product_ids, excluded_category_ids,
			exclude_sale_items, individual_use, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			COALESCE($11, '{}'), COALESCE($12, '{}'), COALESCE($13, '{}'), COALESCE($14, '{}'),
			$15, $16, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			amount = EXCLUDED.amount,
			description = EXCLUDED.description,
			usage_limit = EXCLUDED.usage_limit,
			usage_limit_per_user = EXCLUDED.usage_limit_per_user,
			limit_to_quantity = EXCLUDED.limit_to_quantity,
			expires_at = EXCLUDED.expires_at,
			min_spend = EXCLUDED.min_spend,
			max_spend = EXCLUDED.max_spend,
			product_ids = EXCLUDED.product_ids,
			category_ids = EXCLUDED.category_ids,
			excluded_product_ids = EXCLUDED.excluded_product_ids,
			excluded_category_ids = EXCLUDED.excluded_category_ids,
			exclude_sale_items = EXCLUDED.exclude_sale_items,
			individual_use = EXCLUDED.individual_use,
			active = TRUE`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// UsageCountByUser returns how many times the user has redeemed the coupon.
func (r *CouponRepository) UsageCountByUser(ctx context.Context, code, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, usageCountByUserSQL, code, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting redemptions for coupon %q: %w", code, err)
	}
	return count, nil
}

// RecordRedemption stores a redemption for the user and bumps the coupon's
// global usage counter, atomically.
func (r *CouponRepository) RecordRedemption(ctx context.Context, code, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("recording redemption for coupon %q: %w", code, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, recordRedemptionSQL, code, userID); err != nil {
		return fmt.Errorf("recording redemption for coupon %q: %w", code, err)
	}
	if _, err := tx.Exec(ctx, incrementUsageCountSQL, code); err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("recording redemption for coupon %q: %w", code, err)
	}
	return nil
}

// UpsertBatch inserts or updates coupons in a single pipelined batch.
// Existing rows keep their usage_count; everything else is overwritten.
func (r *CouponRepository) UpsertBatch(ctx context.Context, coupons []coupon.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(upsertCouponSQL,
			c.Code, string(c.Type), c.Amount, c.Description,
			c.UsageLimit, c.UsageLimitPerUser, int32(c.LimitToQuantity),
			c.ExpiresAt, c.MinSpend, c.MaxSpend,
			c.ProductIDs, c.CategoryIDs, c.ExcludedProductIDs, c.ExcludedCategoryIDs,
			c.ExcludeSaleItems, c.IndividualUse,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close() //nolint:errcheck

	for _, c := range coupons {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
		}
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		limitToQty   int32
		expiresAt    *time.Time
		minSpend     decimal.Decimal
		maxSpend     decimal.Decimal
	)
	err := row.Scan(
		&c.Code, &discountType, &c.Amount, &c.Description,
		&c.UsageLimit, &c.UsageCount, &c.UsageLimitPerUser, &limitToQty,
		&expiresAt, &minSpend, &maxSpend,
		&c.ProductIDs, &c.CategoryIDs, &c.ExcludedProductIDs, &c.ExcludedCategoryIDs,
		&c.ExcludeSaleItems, &c.IndividualUse,
	)
	c.Type = coupon.DiscountType(discountType)
	c.LimitToQuantity = int64(limitToQty)
	c.ExpiresAt = expiresAt
	c.MinSpend = minSpend
	c.MaxSpend = maxSpend
	return c, err
}
