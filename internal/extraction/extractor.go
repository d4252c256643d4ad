// Package extraction turns a submitted receipt image or PDF into raw
// voucher fields via an OCR/LLM pipeline.
package extraction

import (
	"context"

	"github.com/condominio/pagobot/internal/models"
)

// Result carries the extracted draft and the handle of the stored artifact
type Result struct {
	Draft        models.VoucherDraft
	ArtifactPath string
}

// Extractor extracts voucher fields from a receipt file. The artifact is
// stored before extraction runs; once extraction succeeds the stored file
// is permanent and survives later commit failures.
type Extractor interface {
	Extract(ctx context.Context, content []byte, filename, locale string) (*Result, error)
}
