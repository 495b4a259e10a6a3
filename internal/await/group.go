package await

import (
	"context"
	"sync"

	"github.com/wemix/blockwait/internal/source"
	"github.com/wemix/blockwait/pkg/logger"
)

// NodeOutcome pairs one source's wait outcome with the source it came
// from.
type NodeOutcome struct {
	Source  string
	Outcome Outcome
	Err     error
}

// AwaitAll runs the same wait request against every source concurrently
// and returns one outcome per source, in input order. Each source gets its
// own baseline, so nodes at different heights are each measured from their
// own starting point.
func AwaitAll(ctx context.Context, sources []source.HeightSource, log *logger.Logger, opts Options, req Request) []NodeOutcome {
	results := make([]NodeOutcome, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src source.HeightSource) {
			defer wg.Done()

			awaiter := NewAwaiter(src, log, opts)
			out, err := awaiter.Await(ctx, req)
			results[i] = NodeOutcome{Source: src.Name(), Outcome: out, Err: err}
		}(i, src)
	}
	wg.Wait()

	return results
}

// AllSucceeded reports whether every outcome in the set succeeded.
func AllSucceeded(results []NodeOutcome) bool {
	for _, r := range results {
		if r.Outcome.Status != StatusSucceeded {
			return false
		}
	}
	return true
}
