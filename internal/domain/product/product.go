// Package product defines the catalog records cart lines are priced from.
package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Category and OnSale feed coupon eligibility
// predicates via the cart's product references.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	OnSale   bool
	Taxable  bool
	TaxClass string
}

// Repository defines read access to the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
