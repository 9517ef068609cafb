// Command seed-db runs migrations and loads the sample catalog and coupons
// from db/seed into PostgreSQL. Meant for local development and demos.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	OnSale   bool            `json:"on_sale"`
	Taxable  *bool           `json:"taxable"`
	TaxClass string          `json:"tax_class"`
}

type couponJSON struct {
	Code                string          `json:"code"`
	Type                string          `json:"type"`
	Amount              decimal.Decimal `json:"amount"`
	Description         string          `json:"description"`
	UsageLimit          int             `json:"usage_limit"`
	UsageLimitPerUser   int             `json:"usage_limit_per_user"`
	LimitToQuantity     int64           `json:"limit_to_quantity"`
	ExpiresAt           *time.Time      `json:"expires_at"`
	MinSpend            decimal.Decimal `json:"min_spend"`
	MaxSpend            decimal.Decimal `json:"max_spend"`
	ProductIDs          []string        `json:"product_ids"`
	CategoryIDs         []string        `json:"category_ids"`
	ExcludedProductIDs  []string        `json:"excluded_product_ids"`
	ExcludedCategoryIDs []string        `json:"excluded_category_ids"`
	ExcludeSaleItems    bool            `json:"exclude_sale_items"`
	IndividualUse       bool            `json:"individual_use"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		couponsFile  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&couponsFile, "coupons-file", "db/seed/coupons.json", "path to coupons JSON file")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "create logger:", err)
		os.Exit(1)
	}
	defer lg.Sync() //nolint:errcheck

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, productsFile, couponsFile); err != nil {
		lg.Error("seed failed", zap.Error(err))
		os.Exit(1)
	}

	lg.Info("seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile, couponsFile string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, lg, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, lg, postgres.NewCouponRepository(pool), couponsFile); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedProducts(ctx context.Context, lg *zap.Logger, repo *postgres.ProductRepository, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	lg.Info("upserting products", zap.Int("count", len(products)))

	for _, p := range products {
		taxable := true
		if p.Taxable != nil {
			taxable = *p.Taxable
		}
		taxClass := p.TaxClass
		if taxClass == "" {
			taxClass = "standard"
		}

		if err := repo.Upsert(ctx, product.Product{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Category: p.Category,
			OnSale:   p.OnSale,
			Taxable:  taxable,
			TaxClass: taxClass,
		}); err != nil {
			return err
		}

		lg.Info("upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, lg *zap.Logger, repo *postgres.CouponRepository, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read coupons file")
	}

	var raw []couponJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "parse coupons JSON")
	}

	coupons := make([]coupon.Coupon, 0, len(raw))
	for _, c := range raw {
		coupons = append(coupons, coupon.Coupon{
			Code:                c.Code,
			Type:                coupon.DiscountType(c.Type),
			Amount:              c.Amount,
			Description:         c.Description,
			UsageLimit:          c.UsageLimit,
			UsageLimitPerUser:   c.UsageLimitPerUser,
			LimitToQuantity:     c.LimitToQuantity,
			ExpiresAt:           c.ExpiresAt,
			MinSpend:            c.MinSpend,
			MaxSpend:            c.MaxSpend,
			ProductIDs:          c.ProductIDs,
			CategoryIDs:         c.CategoryIDs,
			ExcludedProductIDs:  c.ExcludedProductIDs,
			ExcludedCategoryIDs: c.ExcludedCategoryIDs,
			ExcludeSaleItems:    c.ExcludeSaleItems,
			IndividualUse:       c.IndividualUse,
		})
	}

	lg.Info("upserting coupons", zap.Int("count", len(coupons)))

	if err := repo.UpsertBatch(ctx, coupons); err != nil {
		return err
	}

	for _, c := range coupons {
		lg.Info("upserted coupon", zap.String("code", c.Code), zap.String("description", c.Description))
	}

	return nil
}
