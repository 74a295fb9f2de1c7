package billing

import (
	"context"
	"fmt"

	"github.com/dvloznov/generations-billing/internal/domain"
	"github.com/dvloznov/generations-billing/internal/logger"
)

// BatchSize bounds the rows sent in one append request.
const BatchSize = 10000

// Appender appends one batch of import rows to the billing table.
type Appender interface {
	AppendBillingRows(ctx context.Context, rows []domain.ImportRow) error
}

// Batches splits rows into consecutive slices of at most size rows.
// It returns nil for an empty input.
func Batches[T any](rows []T, size int) [][]T {
	if size <= 0 {
		size = BatchSize
	}
	var out [][]T
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// Load appends rows in BatchSize chunks, one append call per chunk, in order.
//
// Batches are independent appends: if batch n fails, batches before it stay
// loaded and a rerun for the same month appends them again.
func Load(ctx context.Context, dst Appender, rows []domain.ImportRow) (int, error) {
	return LoadBatches(ctx, dst, rows, BatchSize)
}

// LoadBatches is Load with an explicit batch size. It returns the number of rows appended.
func LoadBatches(ctx context.Context, dst Appender, rows []domain.ImportRow, size int) (int, error) {
	log := logger.FromContext(ctx)

	loaded := 0
	batches := Batches(rows, size)
	for i, batch := range batches {
		if err := dst.AppendBillingRows(ctx, batch); err != nil {
			return loaded, fmt.Errorf("Load: batch %d/%d (%d rows already appended): %w", i+1, len(batches), loaded, err)
		}
		loaded += len(batch)
		log.Debug().Int("batch", i+1).Int("batches", len(batches)).Int("rows", len(batch)).Msg("Appended billing batch")
	}
	return loaded, nil
}
