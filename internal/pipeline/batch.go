package pipeline

import (
	"context"
)

// BatchResult pairs a request with its outcome. Exactly one of Outcome and
// Err is set.
type BatchResult struct {
	Source  string
	Outcome *Outcome
	Err     error
}

// RunAll processes requests in order. Compositing of the next image starts
// as soon as the previous one is saved, while its videos are still being
// encoded. A failing request does not stop the batch. Results are returned
// in request order.
func (r *Runner) RunAll(ctx context.Context, reqs []Request) []BatchResult {
	results := make([]BatchResult, len(reqs))
	type pending struct {
		index int
		c     *composed
	}
	// one slot keeps at most one composed run waiting for the encoder
	queue := make(chan pending, 1)

	go func() {
		defer close(queue)
		for i, req := range reqs {
			results[i].Source = req.Source
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				continue
			}
			c, err := r.compose(ctx, req)
			if err != nil {
				results[i].Err = err
				continue
			}
			queue <- pending{index: i, c: c}
		}
	}()

	for p := range queue {
		results[p.index].Outcome = r.encode(ctx, p.c)
	}
	return results
}
