//go:build ignore

package main

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coupon-engine/internal/model"

	"gopkg.in/yaml.v3"
)

// generateSampleCoupons writes coupon definition files for IMPORT_PATHS.
// spring.yaml.gz holds two YAML documents and is gzip compressed;
// summer.yaml is plain and repeats ABC123 to show that existing codes are skipped.
func main() {
	dataDir := "data/coupons"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	springStart := now.AddDate(0, 0, 7)
	springEnd := now.AddDate(0, 3, 0)
	summerEnd := now.AddDate(0, 6, 0)

	files := map[string][][]model.CreateCouponRequest{
		"spring.yaml.gz": {
			{
				{Code: "ABC123", Description: "Thirty percent off, single use", DiscountType: model.DiscountTypePercentage, DiscountValue: 30, RedemptionLimit: intPtr(1)},
				{Code: "WELCOME10", Description: "Ten percent welcome discount", DiscountType: model.DiscountTypePercentage, DiscountValue: 10},
			},
			{
				{Code: "SPRING15", Description: "Spring sale", DiscountType: model.DiscountTypePercentage, DiscountValue: 15, ValidFrom: &springStart, ExpiresAt: &springEnd},
			},
		},
		"summer.yaml": {
			{
				{Code: "ABC123", DiscountType: model.DiscountTypePercentage, DiscountValue: 30, RedemptionLimit: intPtr(1)},
				{Code: "FIVEOFF", Description: "Five off any order", DiscountType: model.DiscountTypeFixedAmount, DiscountValue: 5, RedemptionLimit: intPtr(100), ExpiresAt: &summerEnd},
				{Code: "FREESHIP", Description: "Covers standard shipping", DiscountType: model.DiscountTypeFixedAmount, DiscountValue: 4.99},
			},
		},
	}

	for filename, documents := range files {
		filePath := filepath.Join(dataDir, filename)

		if err := writeDefinitions(filePath, documents); err != nil {
			log.Fatalf("Failed to create %s: %v", filename, err)
		}

		fmt.Printf("Created %s with %d documents\n", filePath, len(documents))
	}

	fmt.Println("\nImport them with:")
	fmt.Println("  IMPORT_PATHS=data/coupons/spring.yaml.gz,data/coupons/summer.yaml")
}

func writeDefinitions(filePath string, documents [][]model.CreateCouponRequest) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	var out io.Writer = file
	if strings.HasSuffix(filePath, ".gz") {
		gzipWriter := gzip.NewWriter(file)
		defer gzipWriter.Close()
		out = gzipWriter
	}

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	for _, doc := range documents {
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode definitions: %w", err)
		}
	}

	return encoder.Close()
}

func intPtr(v int) *int { return &v }
