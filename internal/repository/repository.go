package repository

import (
	"context"
	"time"

	"coupon-engine/internal/model"

	"github.com/google/uuid"
)

// CouponRepository defines the interface for coupon data access operations.
type CouponRepository interface {
	// Create inserts a new coupon.
	// Returns model.ErrCouponCodeTaken if the code already exists and a
	// *model.ValidationError if the row violates a schema constraint.
	Create(ctx context.Context, coupon *model.Coupon) error

	// GetByCode retrieves a coupon by its exact code, including its live redemption count.
	// Returns nil, nil if no coupon has the code.
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)

	// List retrieves coupons, newest first, with pagination support.
	List(ctx context.Context, limit, offset int) ([]model.Coupon, error)

	// RecordRedemption re-checks that the coupon is redeemable at now and, in
	// the same transaction, increments its redemption count and inserts the
	// redemption. Returns model.ErrCouponNotRedeemable if the re-check fails
	// and a *model.PersistenceError if the write cannot be completed.
	RecordRedemption(ctx context.Context, coupon *model.Coupon, redemption *model.Redemption, now time.Time) error

	// ListRedemptions retrieves the redemptions of a coupon, newest first.
	ListRedemptions(ctx context.Context, couponID uuid.UUID, limit, offset int) ([]model.Redemption, error)
}
