package fit

import (
	"context"
	"sync"
)

// Outcome is the result of one request in a batch.
type Outcome struct {
	Result Result
	Err    error
}

// FitAll fits independent requests on a pool of cfg.Workers goroutines and
// returns their outcomes in request order. A cancelled context fails the
// requests that have not started.
func FitAll(ctx context.Context, cfg Config, reqs []Request) []Outcome {
	cfg = cfg.withDefaults()
	out := make([]Outcome, len(reqs))
	sem := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(idx int, r Request) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				out[idx] = Outcome{Err: ctx.Err()}
				return
			}

			res, err := Fit(ctx, r, cfg)
			if err != nil {
				opsf("fit at %s failed: %v", r.Time.UTC().Format("2006-01-02T15:04:05Z"), err)
			}
			out[idx] = Outcome{Result: res, Err: err}
		}(i, req)
	}

	wg.Wait()
	return out
}
