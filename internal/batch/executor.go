// Package batch fans a work list out across a bounded set of in-flight
// extractions and joins every outcome. The semaphore is the only
// resource shared between units: a slot is taken before a unit's first
// attempt and held through its entire retry sequence, so retrying units
// keep occupying capacity instead of letting retries pile up behind the
// limit.
package batch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/extract"
)

// Executor runs extractions with at most Limit concurrently in flight.
type Executor struct {
	limit int
	log   *slog.Logger
}

// NewExecutor builds an Executor with the given concurrency limit.
func NewExecutor(limit int, logger *slog.Logger) *Executor {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{limit: limit, log: logger}
}

// Run attempts every unit exactly once and returns one outcome per
// unit, in completion order. onDone, when non-nil, is invoked from the
// collector for each outcome as it lands; callers use it to advance
// progress counters. Run returns only after the slowest unit finishes.
//
// Cancelling ctx aborts pending waits; units that never ran still
// produce (failure) outcomes so the count invariant holds.
func (x *Executor) Run(ctx context.Context, units []extract.WorkUnit, ex extract.UnitExtractor, onDone func(extract.Outcome)) []extract.Outcome {
	if len(units) == 0 {
		return nil
	}

	sem := make(chan struct{}, x.limit)
	results := make(chan extract.Outcome)

	var wg sync.WaitGroup
	for _, unit := range units {
		wg.Add(1)
		go func(unit extract.WorkUnit) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- extract.Outcome{Path: unit.Path, Err: "canceled before start: " + ctx.Err().Error()}
				return
			}
			defer func() { <-sem }()

			results <- ex.Extract(ctx, unit)
		}(unit)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]extract.Outcome, 0, len(units))
	for outcome := range results {
		if onDone != nil {
			onDone(outcome)
		}
		outcomes = append(outcomes, outcome)
	}

	x.log.Info("batch.done", "units", len(units), "outcomes", len(outcomes))
	return outcomes
}
