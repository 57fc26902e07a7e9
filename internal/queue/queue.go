// Package queue provides an ordered, single-flight asynchronous task queue:
// items are processed strictly one at a time in arrival order, no matter how
// many are enqueued while a previous item is still being handled.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Handler processes one dequeued item. Handlers registered on a queue run in
// registration order for every item; an error or panic from one item is
// logged and never stops the loop.
type Handler[T any] func(ctx context.Context, item T) error

type Queue[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []T
	handlers []Handler[T]
	draining bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

func New[T any](logger zerolog.Logger) *Queue[T] {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue[T]{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "queue").Logger(),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// AddHandler registers a handler. Registration must happen before the first
// Enqueue; handlers run in the order they were added.
func (q *Queue[T]) AddHandler(h Handler[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, h)
}

// Enqueue appends an item and starts the drain loop if none is active. Items
// enqueued while a drain is in flight are picked up by that same loop.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.items = append(q.items, item)
	if !q.draining {
		q.draining = true
		go q.drain()
	}
}

func (q *Queue[T]) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.closed {
			q.draining = false
			q.cond.Broadcast()
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		handlers := q.handlers
		q.mu.Unlock()

		for _, h := range handlers {
			q.runHandler(h, item)
		}
	}
}

func (q *Queue[T]) runHandler(h Handler[T], item T) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Err(fmt.Errorf("panic: %v", r)).Msg("Queue handler panicked")
		}
	}()

	if err := h(q.ctx, item); err != nil {
		q.logger.Error().Err(err).Msg("Queue handler failed")
	}
}

// Len returns the number of items still waiting to be dequeued. The item
// currently in a handler chain is not counted, which is what the lookahead
// based idle-return relies on.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Processing reports whether a drain loop is active.
func (q *Queue[T]) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Clear empties pending items. The item already handed to handlers finishes
// normally.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Wait blocks until the queue is empty and no drain loop is running.
func (q *Queue[T]) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.draining || len(q.items) > 0 {
		q.cond.Wait()
	}
}

// Close cancels handler contexts and drops pending items. Enqueue becomes a
// no-op afterwards.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	q.cancel()
}
