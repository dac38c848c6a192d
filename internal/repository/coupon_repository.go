package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coupon-engine/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgreSQL error codes mapped to domain errors.
const (
	pgUniqueViolation   = "23505"
	pgCheckViolation    = "23514"
	pgNumericOutOfRange = "22003"
)

const couponColumns = `
	id, code, description, discount_type, discount_value,
	redemption_limit, redemption_count, valid_from, expires_at,
	created_at, updated_at
`

// couponRepository implements the CouponRepository interface using PostgreSQL.
type couponRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(pool *pgxpool.Pool, logger zerolog.Logger) CouponRepository {
	return &couponRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "coupon").Logger(),
	}
}

// Create inserts a new coupon.
func (r *couponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	query := `
		INSERT INTO coupons (
			id, code, description, discount_type, discount_value,
			redemption_limit, redemption_count, valid_from, expires_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		coupon.ID,
		coupon.Code,
		coupon.Description,
		string(coupon.DiscountType),
		coupon.DiscountValue,
		coupon.RedemptionLimit,
		coupon.RedemptionCount,
		coupon.ValidFrom,
		coupon.ExpiresAt,
		coupon.CreatedAt,
		coupon.UpdatedAt,
	)
	if err != nil {
		return r.createError(coupon, err)
	}

	r.logger.Debug().
		Str("coupon_id", coupon.ID.String()).
		Str("code", coupon.Code).
		Msg("coupon created successfully")

	return nil
}

// createError maps an insert failure to a domain error where the store rejected the values.
func (r *couponRepository) createError(coupon *model.Coupon, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			r.logger.Debug().Str("code", coupon.Code).Msg("coupon code already exists")
			return model.ErrCouponCodeTaken
		case pgCheckViolation:
			r.logger.Debug().
				Str("code", coupon.Code).
				Str("constraint", pgErr.ConstraintName).
				Msg("coupon violates constraint")
			return &model.ValidationError{Message: "violates constraint " + pgErr.ConstraintName}
		case pgNumericOutOfRange:
			r.logger.Debug().Str("code", coupon.Code).Msg("coupon value out of range")
			return &model.ValidationError{Message: "value out of range"}
		}
	}

	r.logger.Error().Err(err).Str("code", coupon.Code).Msg("failed to create coupon")
	return fmt.Errorf("failed to create coupon: %w", err)
}

// GetByCode retrieves a coupon by its exact code.
func (r *couponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	coupon, err := scanCoupon(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("code", code).Msg("coupon not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query coupon")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}

	return coupon, nil
}

// List retrieves coupons, newest first, with pagination support.
func (r *couponRepository) List(ctx context.Context, limit, offset int) ([]model.Coupon, error) {
	query := `
		SELECT ` + couponColumns + `
		FROM coupons
		ORDER BY created_at DESC, code
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query coupons")
		return nil, fmt.Errorf("failed to query coupons: %w", err)
	}
	defer rows.Close()

	coupons := []model.Coupon{}
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan coupon row")
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, *coupon)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating coupon rows")
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}

	return coupons, nil
}

// RecordRedemption re-checks redeemability and records the redemption in one transaction.
func (r *couponRepository) RecordRedemption(ctx context.Context, coupon *model.Coupon, redemption *model.Redemption, now time.Time) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return &model.PersistenceError{Op: "begin transaction", Err: err}
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	// The row lock taken by this update serialises concurrent redemptions of
	// the same coupon; waiting transactions re-evaluate the predicate against
	// the committed count.
	claim := `
		UPDATE coupons
		SET redemption_count = redemption_count + 1, updated_at = $2
		WHERE id = $1
		  AND (redemption_limit IS NULL OR redemption_count < redemption_limit)
		  AND (valid_from IS NULL OR valid_from <= $2)
		  AND (expires_at IS NULL OR expires_at > $2)
		RETURNING redemption_count
	`

	var count int
	err = tx.QueryRow(ctx, claim, coupon.ID, now).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().
				Str("coupon_id", coupon.ID.String()).
				Str("code", coupon.Code).
				Msg("coupon no longer redeemable")
			err = model.ErrCouponNotRedeemable
			return err
		}
		r.logger.Error().Err(err).Str("coupon_id", coupon.ID.String()).Msg("failed to claim redemption")
		err = &model.PersistenceError{Op: "claim redemption", Err: err}
		return err
	}

	insert := `
		INSERT INTO coupon_redemptions (id, coupon_id, user_id, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = tx.Exec(ctx, insert,
		redemption.ID,
		coupon.ID,
		redemption.UserID,
		redemption.OrderID,
		redemption.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("coupon_id", coupon.ID.String()).
			Str("redemption_id", redemption.ID.String()).
			Msg("failed to insert redemption")
		err = &model.PersistenceError{Op: "insert redemption", Err: err}
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Str("coupon_id", coupon.ID.String()).Msg("failed to commit transaction")
		err = &model.PersistenceError{Op: "commit redemption", Err: err}
		return err
	}

	redemption.CouponID = coupon.ID
	coupon.RedemptionCount = count

	r.logger.Debug().
		Str("coupon_id", coupon.ID.String()).
		Str("redemption_id", redemption.ID.String()).
		Int("redemption_count", count).
		Msg("redemption recorded successfully")

	return nil
}

// ListRedemptions retrieves the redemptions of a coupon, newest first.
func (r *couponRepository) ListRedemptions(ctx context.Context, couponID uuid.UUID, limit, offset int) ([]model.Redemption, error) {
	query := `
		SELECT id, coupon_id, user_id, order_id, created_at
		FROM coupon_redemptions
		WHERE coupon_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, couponID, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", couponID.String()).Msg("failed to query redemptions")
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	redemptions := []model.Redemption{}
	for rows.Next() {
		var red model.Redemption
		if err := rows.Scan(&red.ID, &red.CouponID, &red.UserID, &red.OrderID, &red.CreatedAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan redemption row")
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		redemptions = append(redemptions, red)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating redemption rows")
		return nil, fmt.Errorf("error iterating redemptions: %w", err)
	}

	return redemptions, nil
}

// scanCoupon scans a row selected with couponColumns.
func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	var discountType string
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Description,
		&discountType,
		&c.DiscountValue,
		&c.RedemptionLimit,
		&c.RedemptionCount,
		&c.ValidFrom,
		&c.ExpiresAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.DiscountType = model.DiscountType(discountType)
	return &c, nil
}
