package importer

import (
	"context"
	"fmt"
	"os"

	"coupon-engine/internal/model"

	"github.com/rs/zerolog"
)

// fileLoader implements Loader for definition files on the local file system.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based definition loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "coupon-loader").Logger(),
	}
}

// Load reads a definition file and returns its coupons.
func (l *fileLoader) Load(ctx context.Context, filePath string) ([]model.CreateCouponRequest, error) {
	l.logger.Info().Str("file", filePath).Msg("loading coupon definitions")

	file, err := os.Open(filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to open definition file")
		return nil, fmt.Errorf("failed to open definition file %s: %w", filePath, err)
	}
	defer file.Close()

	definitions, err := decodeDefinitions(ctx, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to read definition file")
		return nil, fmt.Errorf("failed to read definition file %s: %w", filePath, err)
	}

	l.logger.Info().
		Str("file", filePath).
		Int("definitions_loaded", len(definitions)).
		Msg("coupon definitions loaded successfully")

	return definitions, nil
}
