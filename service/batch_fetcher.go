// ABOUTME: Downloads item contents in provider-sized chunks
// ABOUTME: Results keep the order of the requested ids

package service

import (
	"context"
	"encoding/json"
	"log/slog"
)

// ItemContentsFetcher fetches one id batch; GreaderClient implements it
type ItemContentsFetcher interface {
	ItemContents(ctx context.Context, ids []string) ([]json.RawMessage, error)
}

// BatchFetcher splits id lists into provider-sized chunks
type BatchFetcher struct {
	fetcher   ItemContentsFetcher
	batchSize int
	logger    *slog.Logger
}

func NewBatchFetcher(fetcher ItemContentsFetcher, batchSize int, logger *slog.Logger) *BatchFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &BatchFetcher{fetcher: fetcher, batchSize: batchSize, logger: logger}
}

// Fetch returns the items of every chunk concatenated in input order.
// Any chunk failure discards everything fetched so far.
func (b *BatchFetcher) Fetch(ctx context.Context, ids []string) ([]json.RawMessage, error) {
	var out []json.RawMessage

	for start := 0; start < len(ids); start += b.batchSize {
		end := min(start+b.batchSize, len(ids))

		items, err := b.fetcher.ItemContents(ctx, ids[start:end])
		if err != nil {
			b.logger.Error("item contents batch failed",
				"batch_start", start,
				"batch_size", end-start,
				"total_ids", len(ids),
				"error", err)
			return nil, err
		}
		out = append(out, items...)
	}

	b.logger.Debug("fetched item contents", "requested_ids", len(ids), "items", len(out), "batch_size", b.batchSize)
	return out, nil
}
