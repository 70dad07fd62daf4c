package triage

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dineshreddykolli/mindcare-ai/internal/screening"
)

// runBatch fans score out over at most limit goroutines. Errors stay with
// their item and never cancel the rest; only ctx does.
func runBatch(ctx context.Context, limit int, intakes []*screening.IntakeResponse,
	score func(context.Context, *screening.IntakeResponse) (*IntakeResult, error)) []BatchResult {
	if limit < 1 {
		limit = 1
	}
	out := make([]BatchResult, len(intakes))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, in := range intakes {
		out[i].Index = i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Result, out[i].Err = score(ctx, in)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
