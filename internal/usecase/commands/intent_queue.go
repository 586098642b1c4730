package commands

import (
	"context"
	"sync"

	"parkwise/internal/pkg/config"
	"parkwise/internal/pkg/errs"
)

var ErrQueueStopped = errs.New("intent queue stopped")

type intent struct {
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

// IntentQueue runs reserve/cancel intents of every session one at a time on a single
// worker goroutine. A nil queue means intents run on the caller's goroutine.
type IntentQueue struct {
	intents chan intent
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewIntentQueueFromConfig returns nil unless serialization is enabled.
func NewIntentQueueFromConfig(cfg config.Config) *IntentQueue {
	if !cfg.Reservation.Serialize {
		return nil
	}
	return NewIntentQueue()
}

func NewIntentQueue() *IntentQueue {
	return &IntentQueue{
		intents: make(chan intent),
		stop:    make(chan struct{}),
	}
}

func (q *IntentQueue) Start() {
	q.wg.Add(1)
	go q.loop()
}

func (q *IntentQueue) Stop() {
	q.once.Do(func() { close(q.stop) })
	q.wg.Wait()
}

func (q *IntentQueue) loop() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stop:
			return
		case it := <-q.intents:
			// the caller may have given up while waiting for its turn
			if err := it.ctx.Err(); err != nil {
				it.done <- err
				continue
			}
			it.done <- it.run(it.ctx)
		}
	}
}

// Do blocks until fn has run on the worker or ctx is done.
func (q *IntentQueue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	it := intent{ctx: ctx, run: fn, done: make(chan error, 1)}

	select {
	case q.intents <- it:
	case <-q.stop:
		return ErrQueueStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// once handed off, the worker always answers
	return <-it.done
}
