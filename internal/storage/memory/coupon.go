// Package memory provides map-backed repositories for tests and local runs
// without a database.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponStore)(nil)

// CouponStore is an in-memory coupon.Repository. Safe for concurrent use.
type CouponStore struct {
	mu          sync.RWMutex
	coupons     map[string]coupon.Coupon
	redemptions map[string]map[string]int
}

// NewCouponStore returns an empty store.
func NewCouponStore() *CouponStore {
	return &CouponStore{
		coupons:     make(map[string]coupon.Coupon),
		redemptions: make(map[string]map[string]int),
	}
}

// Add inserts or replaces a coupon, keyed by upper-cased code.
func (s *CouponStore) Add(c coupon.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[strings.ToUpper(c.Code)] = c
}

// FindByCode looks up a coupon case-insensitively. Returns a copy so callers
// cannot mutate stored state.
func (s *CouponStore) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

// UsageCountByUser returns the user's redemption count for the coupon.
func (s *CouponStore) UsageCountByUser(_ context.Context, code, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.redemptions[strings.ToUpper(code)][userID], nil
}

// RecordRedemption bumps both the per-user count and the coupon's global
// usage counter.
func (s *CouponStore) RecordRedemption(_ context.Context, code, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToUpper(code)
	if s.redemptions[key] == nil {
		s.redemptions[key] = make(map[string]int)
	}
	s.redemptions[key][userID]++

	if c, ok := s.coupons[key]; ok {
		c.UsageCount++
		s.coupons[key] = c
	}
	return nil
}
