package coupon

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrorKind identifies a validation failure. The numeric codes are a public
// contract consumed by UI layers and must never be renumbered; new kinds are
// appended with the next free code.
type ErrorKind int

const (
	// KindNotExists: the coupon code does not exist.
	KindNotExists ErrorKind = 100
	// KindUsageLimitReached: the coupon's global usage limit is exhausted.
	KindUsageLimitReached ErrorKind = 101
	// KindUsageLimitReachedUser: the current user has exhausted their
	// personal usage limit.
	KindUsageLimitReachedUser ErrorKind = 102
	// KindExpired: the coupon is past its expiry timestamp.
	KindExpired ErrorKind = 103
	// KindMinSpendNotMet: the cart subtotal is below the coupon's minimum.
	KindMinSpendNotMet ErrorKind = 104
	// KindMaxSpendExceeded: the cart subtotal is above the coupon's maximum.
	KindMaxSpendExceeded ErrorKind = 105
	// KindNoMatchingProducts: none of the cart items match the coupon's
	// allowed product list.
	KindNoMatchingProducts ErrorKind = 106
	// KindNoMatchingCategories: none of the cart items match the coupon's
	// allowed category list.
	KindNoMatchingCategories ErrorKind = 107
	// KindNotValidForSaleItems: the coupon excludes sale items and every
	// item in the cart is on sale.
	KindNotValidForSaleItems ErrorKind = 108
	// KindExcludedProducts: the cart contains a product the coupon excludes.
	KindExcludedProducts ErrorKind = 109
	// KindExcludedCategories: the cart contains a category the coupon excludes.
	KindExcludedCategories ErrorKind = 110
	// KindNoEligibleItems: a cart-wide coupon found no item passing its
	// product and category filters.
	KindNoEligibleItems ErrorKind = 111
	// KindRejectedByHook: a caller-supplied validation hook vetoed the coupon.
	KindRejectedByHook ErrorKind = 112
	// KindInvalidDiscount: a manual discount spec is neither a number nor a
	// percentage.
	KindInvalidDiscount ErrorKind = 113
	// KindIndividualUseOnly: the coupon cannot be combined with an applied
	// individual-use coupon.
	KindIndividualUseOnly ErrorKind = 114
)

var kindMessages = map[ErrorKind]string{
	KindNotExists:             "coupon does not exist",
	KindUsageLimitReached:     "coupon usage limit has been reached",
	KindUsageLimitReachedUser: "coupon usage limit has been reached for this user",
	KindExpired:               "coupon has expired",
	KindMinSpendNotMet:        "minimum spend for this coupon is not met",
	KindMaxSpendExceeded:      "maximum spend for this coupon is exceeded",
	KindNoMatchingProducts:    "coupon is not applicable to any product in the cart",
	KindNoMatchingCategories:  "coupon is not applicable to any category in the cart",
	KindNotValidForSaleItems:  "coupon is not valid for sale items",
	KindExcludedProducts:      "cart contains a product excluded from this coupon",
	KindExcludedCategories:    "cart contains a category excluded from this coupon",
	KindNoEligibleItems:       "coupon is not applicable to any item in the cart",
	KindRejectedByHook:        "coupon was rejected",
	KindInvalidDiscount:       "invalid discount amount",
	KindIndividualUseOnly:     "coupon cannot be used in conjunction with an individual-use coupon",
}

// Message returns the human-readable text for the kind.
func (k ErrorKind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return "coupon is invalid"
}

// ValidationError is a recoverable coupon rejection. Callers drop the
// rejected coupon and continue the pricing pass.
type ValidationError struct {
	Kind ErrorKind
	Code string
}

// NewValidationError builds a ValidationError for the given coupon code.
func NewValidationError(kind ErrorKind, code string) *ValidationError {
	return &ValidationError{Kind: kind, Code: code}
}

func (e *ValidationError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("coupon validation failed (%d): %s", e.Kind, e.Kind.Message())
	}
	return fmt.Sprintf("coupon %q validation failed (%d): %s", e.Code, e.Kind, e.Kind.Message())
}

// AsValidation unwraps err into a ValidationError, or returns nil if err is
// not a validation failure.
func AsValidation(err error) *ValidationError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return nil
}
