// Package importer bulk-loads coupon definitions at start-up.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"coupon-engine/internal/metrics"
	"coupon-engine/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentFiles bounds how many definition files are processed at once.
const maxConcurrentFiles = 4

// Loader defines the interface for loading coupon definition files.
type Loader interface {
	// Load reads a YAML definition file, plain or gzipped, and returns its coupons.
	Load(ctx context.Context, path string) ([]model.CreateCouponRequest, error)
}

// Creator creates coupons from definitions.
type Creator interface {
	Create(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error)
}

// Summary counts the outcome of an import run.
type Summary struct {
	Files   int `json:"files"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Invalid int `json:"invalid"`
}

// Importer loads definition files and creates the coupons they describe.
type Importer struct {
	loader  Loader
	creator Creator
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a new importer.
func New(loader Loader, creator Creator, m *metrics.Metrics, logger zerolog.Logger) *Importer {
	return &Importer{
		loader:  loader,
		creator: creator,
		metrics: m,
		logger:  logger.With().Str("component", "coupon-importer").Logger(),
	}
}

// Run imports every file in paths concurrently.
// Codes that already exist are skipped and invalid definitions are counted;
// neither stops the run. A file that cannot be loaded, or a store failure,
// aborts the remaining work and is returned.
func (im *Importer) Run(ctx context.Context, paths []string) (*Summary, error) {
	summary := &Summary{}
	if len(paths) == 0 {
		return summary, nil
	}

	im.logger.Info().Int("file_count", len(paths)).Msg("starting coupon import")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)

	for _, path := range paths {
		g.Go(func() error {
			fileSummary, err := im.importFile(gctx, path)
			if err != nil {
				return err
			}

			mu.Lock()
			summary.Files++
			summary.Created += fileSummary.Created
			summary.Skipped += fileSummary.Skipped
			summary.Invalid += fileSummary.Invalid
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		im.logger.Error().Err(err).Msg("coupon import failed")
		return summary, err
	}

	im.logger.Info().
		Int("files", summary.Files).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("invalid", summary.Invalid).
		Msg("coupon import completed")

	return summary, nil
}

func (im *Importer) importFile(ctx context.Context, path string) (*Summary, error) {
	definitions, err := im.loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon definitions %s: %w", path, err)
	}

	summary := &Summary{}
	for i := range definitions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		def := &definitions[i]
		_, err := im.creator.Create(ctx, def)

		var validationErr *model.ValidationError
		switch {
		case err == nil:
			summary.Created++
			im.metrics.ImportedCoupons.WithLabelValues(metrics.ImportCreated).Inc()
		case errors.Is(err, model.ErrCouponCodeTaken):
			summary.Skipped++
			im.metrics.ImportedCoupons.WithLabelValues(metrics.ImportSkipped).Inc()
		case errors.As(err, &validationErr):
			summary.Invalid++
			im.metrics.ImportedCoupons.WithLabelValues(metrics.ImportInvalid).Inc()
			im.logger.Warn().
				Err(err).
				Str("file", path).
				Int("index", i).
				Str("code", def.Code).
				Msg("skipping invalid coupon definition")
		default:
			return nil, fmt.Errorf("failed to import coupon %q from %s: %w", def.Code, path, err)
		}
	}

	im.logger.Info().
		Str("file", path).
		Int("definitions", len(definitions)).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("invalid", summary.Invalid).
		Msg("coupon file imported")

	return summary, nil
}
