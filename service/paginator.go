// ABOUTME: Follows Google Reader continuation tokens until a listing is exhausted
// ABOUTME: The first failed page aborts the whole listing

package service

import "context"

// PageFunc fetches one page. continuation is empty on the first call; an
// empty next continuation ends the loop.
type PageFunc[T any] func(ctx context.Context, continuation string) (items []T, next string, err error)

// Paginate follows continuation cursors until the server stops returning one
// or at least limit items were collected. limit <= 0 means no bound. The first
// failed page aborts the loop and nothing gathered so far is returned.
func Paginate[T any](ctx context.Context, fetch PageFunc[T], limit int) ([]T, error) {
	var (
		out          []T
		continuation string
	)
	for {
		items, next, err := fetch(ctx, continuation)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)

		if next == "" || (limit > 0 && len(out) >= limit) {
			return out, nil
		}
		continuation = next
	}
}
