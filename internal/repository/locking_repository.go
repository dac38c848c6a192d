package repository

import (
	"context"
	"time"

	"coupon-engine/internal/lock"
	"coupon-engine/internal/model"

	"github.com/rs/zerolog"
)

// lockingCouponRepository serialises RecordRedemption per coupon code with a
// distributed lock. The wrapped repository still enforces the limit on its own,
// so a lock that cannot be taken only costs contention, never correctness.
type lockingCouponRepository struct {
	CouponRepository
	locker lock.Locker
	logger zerolog.Logger
}

// NewLockingCouponRepository wraps next so redemptions of one code run one at a time.
func NewLockingCouponRepository(next CouponRepository, locker lock.Locker, logger zerolog.Logger) CouponRepository {
	return &lockingCouponRepository{
		CouponRepository: next,
		locker:           locker,
		logger:           logger.With().Str("repository", "coupon-locking").Logger(),
	}
}

// RecordRedemption takes the per-code lock, then delegates.
func (r *lockingCouponRepository) RecordRedemption(ctx context.Context, coupon *model.Coupon, redemption *model.Redemption, now time.Time) error {
	held, err := r.locker.Acquire(ctx, coupon.Code)
	if err != nil {
		if ctx.Err() != nil {
			return &model.PersistenceError{Op: "acquire redemption lock", Err: ctx.Err()}
		}
		r.logger.Warn().
			Err(err).
			Str("code", coupon.Code).
			Msg("redemption lock unavailable, relying on transactional check")
		return r.CouponRepository.RecordRedemption(ctx, coupon, redemption, now)
	}

	defer func() {
		// Release even if ctx was cancelled mid-redemption
		if relErr := held.Release(context.WithoutCancel(ctx)); relErr != nil {
			r.logger.Warn().Err(relErr).Str("code", coupon.Code).Msg("failed to release redemption lock")
		}
	}()

	return r.CouponRepository.RecordRedemption(ctx, coupon, redemption, now)
}
