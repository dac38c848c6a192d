package importer

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"

	"coupon-engine/internal/model"

	"gopkg.in/yaml.v3"
)

var gzipMagic = []byte{0x1f, 0x8b}

// decodeDefinitions reads a stream of YAML documents, each a sequence of
// coupon definitions. Gzip input is detected from its header.
func decodeDefinitions(ctx context.Context, r io.Reader) ([]model.CreateCouponRequest, error) {
	br := bufio.NewReader(r)

	var src io.Reader = br
	if header, err := br.Peek(len(gzipMagic)); err == nil && header[0] == gzipMagic[0] && header[1] == gzipMagic[1] {
		gzipReader, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		src = gzipReader
	}

	decoder := yaml.NewDecoder(src)

	var definitions []model.CreateCouponRequest
	for doc := 0; ; doc++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var batch []model.CreateCouponRequest
		err := decoder.Decode(&batch)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %d: %w", doc, err)
		}

		definitions = append(definitions, batch...)
	}

	return definitions, nil
}
