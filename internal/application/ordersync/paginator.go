package ordersync

import (
	"context"
	"errors"
	"iter"
)

// ErrCursorNotAdvancing is yielded when the marketplace returns the cursor
// it was just given while claiming more pages.
var ErrCursorNotAdvancing = errors.New("ordersync: pagination cursor did not advance")

// Page is one page of a cursor-paginated listing
type Page[T any] struct {
	Items      []T
	More       bool
	NextCursor string
}

// PageFetcher fetches the page starting at cursor. The first call gets "".
type PageFetcher[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Paginate yields pages lazily until a page reports no more results or
// returns an empty cursor. The first error is yielded and ends iteration.
func Paginate[T any](ctx context.Context, fetch PageFetcher[T]) iter.Seq2[Page[T], error] {
	return func(yield func(Page[T], error) bool) {
		cursor := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(Page[T]{}, err)
				return
			}

			page, err := fetch(ctx, cursor)
			if err != nil {
				yield(Page[T]{}, err)
				return
			}
			if !yield(page, nil) {
				return
			}

			if !page.More || page.NextCursor == "" {
				return
			}
			if page.NextCursor == cursor {
				yield(Page[T]{}, ErrCursorNotAdvancing)
				return
			}
			cursor = page.NextCursor
		}
	}
}
