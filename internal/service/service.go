package service

import (
	"context"

	"coupon-engine/internal/model"
)

// CouponService defines the coupon engine operations.
type CouponService interface {
	// Create validates the attributes and stores a new coupon.
	// Returns a *model.ValidationError for malformed attributes and
	// model.ErrCouponCodeTaken if the code is already in use.
	Create(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error)

	// GetByCode retrieves a coupon by its exact code.
	// Returns nil, nil if the coupon does not exist.
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)

	// FindValidByCode retrieves a coupon only if it is redeemable now.
	// Returns nil, nil if the coupon does not exist or is not redeemable.
	FindValidByCode(ctx context.Context, code string) (*model.Coupon, error)

	// Apply computes the discount for an amount without recording usage.
	// Unknown, expired, not yet started and exhausted codes yield a zero discount.
	Apply(ctx context.Context, code string, req *model.PricingRequest) (*model.PricingResult, error)

	// Redeem applies the coupon and records one redemption.
	// Codes that are not redeemable yield a zero discount and no record.
	// Returns a *model.PersistenceError if the redemption cannot be stored.
	Redeem(ctx context.Context, code string, req *model.PricingRequest) (*model.PricingResult, error)

	// List retrieves coupons with pagination.
	List(ctx context.Context, limit, offset int) ([]model.Coupon, error)

	// ListRedemptions retrieves the redemptions of a coupon with pagination.
	// Returns model.ErrCouponNotFound if the coupon does not exist.
	ListRedemptions(ctx context.Context, code string, limit, offset int) ([]model.Redemption, error)
}
