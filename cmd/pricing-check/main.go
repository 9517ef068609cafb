// Command pricing-check runs a full pricing pass over a cart file against
// the coupon store and prints the per-item and per-coupon discount
// breakdown. It exists for support and debugging: given a cart a customer
// reports, it shows exactly where every minor unit of discount landed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/pricing"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
)

func main() {
	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "create logger:", err)
		os.Exit(1)
	}
	defer lg.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg); err != nil {
		lg.Error("pricing check failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *zap.Logger) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	entries, err := readCartFile(cfg.CartFile)
	if err != nil {
		return err
	}

	lines, err := resolveLines(ctx, postgres.NewProductRepository(pool), entries)
	if err != nil {
		return err
	}

	svc := pricing.NewService(
		postgres.NewCouponRepository(pool),
		pricing.Config{SequentialPercent: cfg.Sequential},
		nil,
		lg,
	)

	res, err := svc.Price(ctx, pricing.Request{
		Lines:           lines,
		CouponCodes:     cfg.Coupons,
		ManualDiscounts: cfg.Manual,
		UserID:          cfg.UserID,
	})
	if err != nil {
		return errors.Wrap(err, "price cart")
	}

	printResult(res)
	return nil
}

// cartEntry is one line of the cart file: a product reference and quantity.
type cartEntry struct {
	ProductID string
	Quantity  int64
}

func readCartFile(path string) ([]cartEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read cart file")
	}

	var entries []cartEntry
	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		var e cartEntry
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product":
				e.ProductID, err = d.Str()
			case "quantity":
				e.Quantity, err = d.Int64()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart file")
	}

	return entries, nil
}

// resolveLines fetches the referenced products in one batch and builds the
// normalizer's input lines in cart-file order.
func resolveLines(ctx context.Context, products product.Repository, entries []cartEntry) ([]cart.Line, error) {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ProductID
	}

	fetched, err := products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]cart.Line, 0, len(entries))
	for i, e := range entries {
		p, ok := byID[e.ProductID]
		if !ok {
			return nil, errors.Errorf("product %q not found", e.ProductID)
		}
		lines = append(lines, cart.Line{
			Key:       fmt.Sprintf("line-%d", i+1),
			UnitPrice: p.Price,
			Quantity:  e.Quantity,
			Taxable:   p.Taxable,
			TaxClass:  p.TaxClass,
			Ref: cart.ProductRef{
				ProductID:   p.ID,
				CategoryIDs: []string{p.Category},
				OnSale:      p.OnSale,
			},
		})
	}
	return lines, nil
}

func printResult(res *pricing.Result) {
	money := func(v int64) string {
		return cart.FromMinorUnits(v).StringFixed(2)
	}

	fmt.Printf("pass %s\n\n", res.PassID)

	fmt.Println("items:")
	for _, it := range res.Items {
		fmt.Printf("  %-10s price %10s  qty %3d  discount %10s  final %10s\n",
			it.Key, money(it.Price), it.Quantity,
			money(res.ByItem[it.Key]), money(it.Price-res.ByItem[it.Key]))
	}

	if len(res.ByCoupon) > 0 {
		fmt.Println("\ndiscounts:")
		for code, total := range res.ByCoupon {
			fmt.Printf("  %-12s %10s\n", code, money(total))
		}
	}

	for _, rc := range res.RejectedCoupons {
		fmt.Printf("\nrejected %s: %s\n", rc.Code, rc.Err.Kind.Message())
	}
	for _, rm := range res.RejectedManual {
		fmt.Printf("rejected manual %q: %s\n", rm.Spec, rm.Err.Kind.Message())
	}

	fmt.Printf("\nsubtotal %s  discount %s  total %s\n",
		money(res.Subtotal), money(res.DiscountTotal), money(res.Total))
}
