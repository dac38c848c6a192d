//go:build ignore

package main

import (
	"context"
	"fmt"
	"os"

	"coupon-engine/internal/config"
	"coupon-engine/internal/database"
)

// checkDB connects with the DB_* environment, applies the schema and
// prints how many coupons and redemptions are stored.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logger)
	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	var dbName string
	var coupons, redemptions int
	err = pool.QueryRow(ctx, `
		SELECT current_database(),
		       (SELECT COUNT(*) FROM coupons),
		       (SELECT COUNT(*) FROM coupon_redemptions)
	`).Scan(&dbName, &coupons, &redemptions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "QueryRow failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Connected to database %s: %d coupons, %d redemptions\n", dbName, coupons, redemptions)
}
