package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// BuildFunc produces sample id of a set. worker identifies the calling
// goroutine so callers can hand each worker its own mutable state.
type BuildFunc func(worker, id int) (Sample, error)

// GenerateOptions configures parallel sample generation.
type GenerateOptions struct {
	Count      int
	NumWorkers int
	Build      BuildFunc
}

// Generate builds Count samples on NumWorkers goroutines and returns them in
// id order, so the result does not depend on the worker count.
func Generate(parent context.Context, opts GenerateOptions) ([]Sample, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("generate: count must be > 0 (got %d)", opts.Count)
	}
	if opts.Build == nil {
		return nil, errors.New("generate: no build function")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.NumWorkers > opts.Count {
		opts.NumWorkers = opts.Count
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	jobs := make(chan int, opts.NumWorkers)
	results := make(chan result, opts.NumWorkers)

	go produceJobs(ctx, jobs, opts.Count)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			worker(ctx, w, jobs, results, opts.Build)
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return collect(ctx, results, opts.Count)
}

type result struct {
	id     int
	sample Sample
	err    error
}

func produceJobs(ctx context.Context, jobs chan<- int, count int) {
	defer close(jobs)
	for id := 0; id < count; id++ {
		select {
		case <-ctx.Done():
			return
		case jobs <- id:
		}
	}
}

func worker(ctx context.Context, w int, jobs <-chan int, results chan<- result, build BuildFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-jobs:
			if !ok {
				return
			}
			sample, err := build(w, id)
			select {
			case <-ctx.Done():
				return
			case results <- result{id: id, sample: sample, err: err}:
			}
		}
	}
}

// collect releases samples strictly in id order, holding early arrivals in
// pending until the gap before them closes.
func collect(ctx context.Context, results <-chan result, count int) ([]Sample, error) {
	out := make([]Sample, 0, count)
	pending := make(map[int]Sample)
	nextID := 0
	for nextID < count {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sample, ok := pending[nextID]; ok {
			out = append(out, sample)
			delete(pending, nextID)
			nextID++
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res, ok := <-results:
			if !ok {
				return nil, fmt.Errorf("generate: workers stopped after %d of %d samples", nextID, count)
			}
			if res.err != nil {
				return nil, fmt.Errorf("sample %d: %w", res.id, res.err)
			}
			pending[res.id] = res.sample
		}
	}
	return out, nil
}
