package model

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType determines how a coupon's discount value is applied.
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixedAmount
}

// Coupon represents a discount code.
type Coupon struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	Code            string       `json:"code" db:"code"`
	Description     string       `json:"description,omitempty" db:"description"`
	DiscountType    DiscountType `json:"discountType" db:"discount_type"`
	DiscountValue   float64      `json:"discountValue" db:"discount_value"`
	RedemptionLimit *int         `json:"redemptionLimit,omitempty" db:"redemption_limit"`
	RedemptionCount int          `json:"redemptionCount" db:"redemption_count"`
	ValidFrom       *time.Time   `json:"validFrom,omitempty" db:"valid_from"`
	ExpiresAt       *time.Time   `json:"expiresAt,omitempty" db:"expires_at"`
	CreatedAt       time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time    `json:"updatedAt" db:"updated_at"`
}

// Started reports whether the coupon's validity window has opened at now.
func (c *Coupon) Started(now time.Time) bool {
	return c.ValidFrom == nil || !c.ValidFrom.After(now)
}

// Expired reports whether the coupon has expired at now.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// HasAvailableRedemptions reports whether the redemption count is still below the limit.
// A nil limit means unlimited.
func (c *Coupon) HasAvailableRedemptions() bool {
	return c.RedemptionLimit == nil || c.RedemptionCount < *c.RedemptionLimit
}

// Redeemable reports whether the coupon may be used at now.
func (c *Coupon) Redeemable(now time.Time) bool {
	return c.Started(now) && !c.Expired(now) && c.HasAvailableRedemptions()
}

// Discount computes the discount this coupon grants on amount.
// The result never exceeds amount.
func (c *Coupon) Discount(amount float64) float64 {
	var discount float64
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = amount * c.DiscountValue / 100
	case DiscountTypeFixedAmount:
		discount = min(c.DiscountValue, amount)
	}

	if discount < 0 {
		return 0
	}
	return min(discount, amount)
}

// CreateCouponRequest represents the attributes used to create a coupon.
type CreateCouponRequest struct {
	Code            string       `json:"code" yaml:"code"`
	Description     string       `json:"description,omitempty" yaml:"description"`
	DiscountType    DiscountType `json:"discountType" yaml:"discountType"`
	DiscountValue   float64      `json:"discountValue" yaml:"discountValue"`
	RedemptionLimit *int         `json:"redemptionLimit,omitempty" yaml:"redemptionLimit"`
	ValidFrom       *time.Time   `json:"validFrom,omitempty" yaml:"validFrom"`
	ExpiresAt       *time.Time   `json:"expiresAt,omitempty" yaml:"expiresAt"`
}

// Redemption records one successful use of a coupon.
type Redemption struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CouponID  uuid.UUID `json:"couponId" db:"coupon_id"`
	UserID    *string   `json:"userId,omitempty" db:"user_id"`
	OrderID   *string   `json:"orderId,omitempty" db:"order_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
