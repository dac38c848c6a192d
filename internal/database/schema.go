package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Schema is the DDL for coupons and their redemptions. It is idempotent.
const Schema = `
	CREATE TABLE IF NOT EXISTS coupons (
		id               UUID PRIMARY KEY,
		code             TEXT NOT NULL UNIQUE,
		description      TEXT NOT NULL DEFAULT '',
		discount_type    TEXT NOT NULL CHECK (discount_type IN ('percentage', 'fixed_amount')),
		discount_value   DOUBLE PRECISION NOT NULL CHECK (discount_value >= 0),
		redemption_limit BIGINT CHECK (redemption_limit >= 0),
		redemption_count BIGINT NOT NULL DEFAULT 0 CHECK (redemption_count >= 0),
		valid_from       TIMESTAMPTZ,
		expires_at       TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT coupons_percentage_range CHECK (discount_type <> 'percentage' OR discount_value <= 100)
	);

	-- Column types match model.Coupon so values round-trip unchanged.
	ALTER TABLE coupons
		ALTER COLUMN discount_value TYPE DOUBLE PRECISION,
		ALTER COLUMN redemption_limit TYPE BIGINT,
		ALTER COLUMN redemption_count TYPE BIGINT;

	CREATE INDEX IF NOT EXISTS idx_coupons_created_at ON coupons(created_at DESC);

	CREATE TABLE IF NOT EXISTS coupon_redemptions (
		id         UUID PRIMARY KEY,
		coupon_id  UUID NOT NULL REFERENCES coupons(id) ON DELETE CASCADE,
		user_id    TEXT,
		order_id   TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_coupon_redemptions_coupon_id ON coupon_redemptions(coupon_id, created_at DESC);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		logger.Error().Err(err).Msg("failed to apply database schema")
		return fmt.Errorf("failed to apply database schema: %w", err)
	}

	logger.Info().Msg("database schema applied")
	return nil
}
