// Command coupon-ingest loads promo codes from the gz-compressed partner
// dump files into the coupons table. A code is considered valid only when
// it appears in at least two of the three dump files; the cross-file check
// runs in two passes over bloom filters so the multi-gigabyte dumps never
// have to fit in memory.
package main

import (
	"bufio"
	"context"
	"fmt"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
	upsertChunk   = 1000
)

// knownRules carries the discount rules for codes the marketing team has
// briefed us on. Every other valid code falls back to defaultRule.
var knownRules = map[string]coupon.Coupon{
	"FIFTYOFF": {
		Type:        coupon.TypePercent,
		Amount:      decimal.NewFromInt(50),
		Description: "50% off entire order",
		UsageLimit:  1000,
	},
	"HAPPYHRS": {
		Type:        coupon.TypePercent,
		Amount:      decimal.NewFromInt(18),
		Description: "Happy Hours: 18% off",
	},
	"GNULINUX": {
		Type:        coupon.TypePercent,
		Amount:      decimal.NewFromInt(15),
		Description: "Open source discount: 15% off",
	},
	"OVER9000": {
		Type:        coupon.TypeFixedCart,
		Amount:      decimal.NewFromInt(9),
		Description: "$9 off your order",
		MinSpend:    decimal.NewFromInt(20),
	},
	"SOLOSAVE": {
		Type:          coupon.TypePercent,
		Amount:        decimal.NewFromInt(25),
		Description:   "25% off, not combinable with other coupons",
		IndividualUse: true,
	},
	"FIRSTTRY": {
		Type:              coupon.TypePercent,
		Amount:            decimal.NewFromInt(30),
		Description:       "30% off your first order",
		UsageLimitPerUser: 1,
	},
}

var defaultRule = coupon.Coupon{
	Type:        coupon.TypePercent,
	Amount:      decimal.NewFromInt(10),
	Description: "Valid promo code: 10% off",
}

// fileResult holds candidate codes found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
}

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
		lg.Error("coupon ingest failed", zap.Error(err))
		os.Exit(1)
	}

	lg.Info("coupon ingest completed")
}

func run(ctx context.Context, lg *zap.Logger) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(cfg.DataDir, fmt.Sprintf("couponbase%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	lg.Info("pass 1: building bloom filters", zap.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, lg, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	lg.Info("pass 2: finding codes present in 2+ files")

	validCodes, err := findValidCodes(ctx, lg, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	lg.Info("valid codes found", zap.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		lg.Info("no valid codes to insert")
		return nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewCouponRepository(pool)
	if err := writeCoupons(ctx, lg, repo, validCodes, cfg.ExpiresIn); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, lg *zap.Logger, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, lg, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, lg *zap.Logger, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					lg.Info("pass 1 progress",
						zap.Int("file", idx+1),
						zap.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		lg.Info("pass 1 complete",
			zap.Int("file", idx+1),
			zap.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each file and checks codes against the OTHER
// files' bloom filters. A code is valid if it appears in 2 or more files.
func findValidCodes(ctx context.Context, lg *zap.Logger, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, lg, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge per-file presence bitmasks.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}

	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	lg *zap.Logger,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				lg.Info("pass 2 progress",
					zap.Int("file", idx+1),
					zap.Uint64("codes", count),
				)
			}

			// Bloom filters can report false positives, never false
			// negatives, so this pass may only over-collect candidates;
			// the final membership check is the merge across real files.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		lg.Info("pass 2 complete",
			zap.Int("file", idx+1),
			zap.Uint64("total_codes", count),
			zap.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeCoupons upserts all valid codes in chunked batches. Codes with a
// known rule keep it; everything else gets the default 10% rule. When
// expiresIn is set, every ingested coupon expires that far from now.
func writeCoupons(ctx context.Context, lg *zap.Logger, repo *postgres.CouponRepository, codes []string, expiresIn time.Duration) error {
	lg.Info("writing coupons to database", zap.Int("count", len(codes)))

	var expiresAt *time.Time
	if expiresIn > 0 {
		t := time.Now().Add(expiresIn)
		expiresAt = &t
	}

	rows := make([]coupon.Coupon, 0, upsertChunk)
	written := 0
	flush := func() error {
		if err := repo.UpsertBatch(ctx, rows); err != nil {
			return err
		}
		written += len(rows)
		rows = rows[:0]
		return nil
	}

	for _, code := range codes {
		c, ok := knownRules[code]
		if !ok {
			c = defaultRule
		}
		c.Code = code
		if c.ExpiresAt == nil {
			c.ExpiresAt = expiresAt
		}

		rows = append(rows, c)
		if len(rows) == upsertChunk {
			if err := flush(); err != nil {
				return err
			}
			lg.Info("upsert progress", zap.Int("written", written))
		}
	}
	if err := flush(); err != nil {
		return err
	}

	lg.Info("coupons written", zap.Int("written", written))
	return nil
}
