package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// Request describes one totals-recalculation pass: the raw cart lines, the
// coupon codes in application order, and any manual discount specs.
type Request struct {
	Lines           []cart.Line
	CouponCodes     []string
	ManualDiscounts []string
	UserID          string
}

// RejectedCoupon pairs a coupon code with the validation error that
// rejected it.
type RejectedCoupon struct {
	Code string
	Err  *coupon.ValidationError
}

// RejectedManual pairs a manual discount spec with its rejection error.
type RejectedManual struct {
	Spec string
	Err  *coupon.ValidationError
}

// Result is the read-only outcome of a pricing pass. All monetary values
// are in working minor units.
type Result struct {
	PassID string
	Items  []cart.Item

	AppliedCoupons  []string
	RejectedCoupons []RejectedCoupon
	// RemovedCoupons were applied and then displaced by a later
	// individual-use coupon.
	RemovedCoupons []string

	ManualDiscounts []ManualDiscount
	RejectedManual  []RejectedManual

	Subtotal      int64
	DiscountTotal int64
	Total         int64

	ByItem   map[string]int64
	ByCoupon map[string]int64
}

// Service orchestrates a full pricing pass: normalize lines, validate and
// apply each coupon, apply manual discounts, and aggregate. A coupon's
// rejection never aborts the pass; it is logged, reported, and skipped.
type Service struct {
	coupons coupon.Repository
	cfg     Config
	hook    coupon.Hook
	lg      *zap.Logger
}

// NewService creates a pricing Service. hook may be nil.
func NewService(coupons coupon.Repository, cfg Config, hook coupon.Hook, lg *zap.Logger) *Service {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{coupons: coupons, cfg: cfg, hook: hook, lg: lg}
}

// Price runs one pricing pass over a fresh item snapshot. Only
// infrastructure failures (coupon store, usage counter) return an error;
// every validation outcome is reported in the Result.
func (s *Service) Price(ctx context.Context, req Request) (*Result, error) {
	passID := uuid.New().String()
	lg := s.lg.With(zap.String("pass_id", passID))

	items := cart.Normalize(req.Lines)

	cfg := s.cfg
	cfg.UserID = req.UserID

	opts := []coupon.Option{}
	if s.hook != nil {
		opts = append(opts, coupon.WithHook(s.hook))
	}
	validator := coupon.NewValidator(s.coupons, opts...)
	engine := NewEngine(items, validator, cfg)

	res := &Result{PassID: passID}

	resolved, rejected, err := s.resolveCoupons(ctx, req.CouponCodes)
	if err != nil {
		return nil, err
	}
	res.RejectedCoupons = rejected

	toApply, removed, conflicts := resolveIndividualUse(resolved)
	res.RemovedCoupons = removed
	res.RejectedCoupons = append(res.RejectedCoupons, conflicts...)

	for _, c := range toApply {
		if err := engine.ApplyCoupon(ctx, c); err != nil {
			verr := coupon.AsValidation(err)
			if verr == nil {
				return nil, errors.Wrapf(err, "apply coupon %q", c.Code)
			}
			lg.Info("coupon rejected",
				zap.String("code", c.Code),
				zap.Int("kind", int(verr.Kind)),
				zap.String("reason", verr.Kind.Message()))
			res.RejectedCoupons = append(res.RejectedCoupons, RejectedCoupon{Code: c.Code, Err: verr})
			continue
		}
		res.AppliedCoupons = append(res.AppliedCoupons, c.Code)
	}

	for _, spec := range req.ManualDiscounts {
		md, err := engine.ApplyManualDiscount(spec)
		if err != nil {
			verr := coupon.AsValidation(err)
			if verr == nil {
				return nil, errors.Wrapf(err, "apply manual discount %q", spec)
			}
			lg.Info("manual discount rejected", zap.String("spec", spec))
			res.RejectedManual = append(res.RejectedManual, RejectedManual{Spec: spec, Err: verr})
			continue
		}
		res.ManualDiscounts = append(res.ManualDiscounts, *md)
	}

	res.Items = engine.Items()
	res.Subtotal = engine.Subtotal()
	res.DiscountTotal = engine.TotalDiscount()
	res.Total = engine.Total()
	res.ByItem = engine.DiscountsByItem()
	res.ByCoupon = engine.DiscountsByCoupon()

	lg.Info("pricing pass complete",
		zap.Int("items", len(res.Items)),
		zap.Int("applied_coupons", len(res.AppliedCoupons)),
		zap.Int("rejected_coupons", len(res.RejectedCoupons)),
		zap.Int64("subtotal", res.Subtotal),
		zap.Int64("discount", res.DiscountTotal),
		zap.Int64("total", res.Total))

	return res, nil
}

// resolveCoupons fetches coupon records for the requested codes. Unknown
// codes become rejections; store failures abort the pass.
func (s *Service) resolveCoupons(ctx context.Context, codes []string) ([]*coupon.Coupon, []RejectedCoupon, error) {
	resolved := make([]*coupon.Coupon, 0, len(codes))
	var rejected []RejectedCoupon

	for _, code := range codes {
		c, err := s.coupons.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, coupon.ErrNotFound) {
				rejected = append(rejected, RejectedCoupon{
					Code: code,
					Err:  coupon.NewValidationError(coupon.KindNotExists, code),
				})
				continue
			}
			return nil, nil, errors.Wrapf(err, "lookup coupon %q", code)
		}
		resolved = append(resolved, c)
	}

	return resolved, rejected, nil
}

// resolveIndividualUse enforces individual-use stacking before allocation:
// an individual-use coupon displaces everything applied before it, and any
// coupon following an individual-use one is rejected.
func resolveIndividualUse(coupons []*coupon.Coupon) (apply []*coupon.Coupon, removed []string, rejected []RejectedCoupon) {
	for _, c := range coupons {
		if c.IndividualUse {
			for _, prev := range apply {
				removed = append(removed, prev.Code)
			}
			apply = append(apply[:0], c)
			continue
		}

		conflict := false
		for _, prev := range apply {
			if prev.IndividualUse {
				conflict = true
				break
			}
		}
		if conflict {
			rejected = append(rejected, RejectedCoupon{
				Code: c.Code,
				Err:  coupon.NewValidationError(coupon.KindIndividualUseOnly, c.Code),
			})
			continue
		}
		apply = append(apply, c)
	}
	return apply, removed, rejected
}
