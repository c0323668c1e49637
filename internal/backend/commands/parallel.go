package commands

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var errRowMatched = errors.New("row matched")

// parallelRows calls fn for every row in [0, n). Rows are split into contiguous bands,
// one per available CPU.
func parallelRows(n int, fn func(y int)) {
	_ = parallelRowsUntil(n, func(y int) bool {
		fn(y)
		return false
	})
}

// parallelRowsUntil reports whether fn returned true for any row. Once it does, the
// other bands stop before their next row.
func parallelRowsUntil(n int, fn func(y int) bool) bool {
	if n <= 0 {
		return false
	}
	bands := min(runtime.GOMAXPROCS(0), n)
	bandHeight := (n + bands - 1) / bands

	g, ctx := errgroup.WithContext(context.Background())
	for top := 0; top < n; top += bandHeight {
		bottom := min(top+bandHeight, n)
		g.Go(func() error {
			for y := top; y < bottom; y++ {
				if ctx.Err() != nil {
					return nil
				}
				if fn(y) {
					return errRowMatched
				}
			}
			return nil
		})
	}
	return errors.Is(g.Wait(), errRowMatched)
}
