package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// gate bounds concurrent requests to one worker. Callers first take a queue
// slot (running plus waiting), then a run slot.
type gate struct {
	run     *semaphore.Weighted
	queue   chan struct{}
	maxWait time.Duration
}

func newGate(maxConcurrent, maxQueueDepth int, maxWait time.Duration) *gate {
	return &gate{
		run:     semaphore.NewWeighted(int64(maxConcurrent)),
		queue:   make(chan struct{}, maxConcurrent+maxQueueDepth),
		maxWait: maxWait,
	}
}

// begin reserves a queue slot and then a run slot, waiting at most maxWait
// in total. Returns a release func to be deferred.
func (g *gate) begin(ctx context.Context, alias string) (func(), error) {
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	wctx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.queue <- struct{}{}:
	case <-wctx.Done():
		if err := ctx.Err(); err != nil {
			return func() {}, err
		}
		return func() {}, ErrTooBusy(alias)
	}
	if err := g.run.Acquire(wctx, 1); err != nil {
		<-g.queue
		if err := ctx.Err(); err != nil {
			return func() {}, err
		}
		return func() {}, ErrTooBusy(alias)
	}
	return func() { g.run.Release(1); <-g.queue }, nil
}

// queued is the number of requests running or waiting at the gate.
func (g *gate) queued() int { return len(g.queue) }
