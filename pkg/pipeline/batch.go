package pipeline

import (
	"context"
	"sync"

	"github.com/xhad/medilex/internal/models"
)

// BatchResult pairs an input's analysis with its error; exactly one is set.
type BatchResult struct {
	Analysis *models.Analysis
	Err      error
}

// AnalyzeBatch analyzes inputs with at most workers running at once. Results
// keep the input order. Inputs not started before ctx is cancelled get ctx.Err().
func (p *Pipeline) AnalyzeBatch(ctx context.Context, inputs []Input, workers int) []BatchResult {
	results := make([]BatchResult, len(inputs))
	if len(inputs) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}
	workers = min(workers, len(inputs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				a, err := p.Analyze(ctx, inputs[i])
				results[i] = BatchResult{Analysis: a, Err: err}
			}
		}()
	}

	next := 0
feed:
	for ; next < len(inputs); next++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(inputs); i++ {
		results[i] = BatchResult{Err: ctx.Err()}
	}
	return results
}
