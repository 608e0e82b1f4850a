// Package batch splits a slice into bounded chunks and processes them in
// order, tolerating per-chunk failures.
package batch

import (
	"context"
	"fmt"
)

// DefaultSize is the chunk size used for transaction writes.
const DefaultSize = 500

// Result is the outcome of one chunk.
type Result[T, R any] struct {
	Index int // position of the chunk, starting at 0
	Items []T
	Value R
	Err   error
}

// Outcome collects the results of every chunk in order.
type Outcome[T, R any] struct {
	Results []Result[T, R]
	Failed  int
}

// Succeeded returns the number of chunks that did not fail.
func (o Outcome[T, R]) Succeeded() int {
	return len(o.Results) - o.Failed
}

// FailedItems returns the number of items in failed chunks.
func (o Outcome[T, R]) FailedItems() int {
	n := 0
	for _, r := range o.Results {
		if r.Err != nil {
			n += len(r.Items)
		}
	}
	return n
}

// Process calls fn sequentially for consecutive chunks of at most size
// items. A failing chunk is recorded and the next one is still processed.
// A size below 1 processes everything as a single chunk. Once ctx is done,
// the remaining chunks fail with the context error without calling fn.
func Process[T, R any](ctx context.Context, items []T, size int, fn func(ctx context.Context, chunk []T) (R, error)) Outcome[T, R] {
	var out Outcome[T, R]
	if len(items) == 0 {
		return out
	}
	if size < 1 || size > len(items) {
		size = len(items)
	}

	out.Results = make([]Result[T, R], 0, (len(items)+size-1)/size)
	for start, i := 0, 0; start < len(items); start, i = start+size, i+1 {
		end := min(start+size, len(items))
		res := Result[T, R]{Index: i, Items: items[start:end:end]}

		if err := ctx.Err(); err != nil {
			res.Err = fmt.Errorf("batch %d skipped: %w", i, err)
		} else {
			res.Value, res.Err = fn(ctx, res.Items)
		}

		if res.Err != nil {
			out.Failed++
		}
		out.Results = append(out.Results, res)
	}
	return out
}
