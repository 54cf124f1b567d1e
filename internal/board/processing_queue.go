package board

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain/entities"
)

// Handler processes one element. ctx is cancelled when the queue is reset
// while the element is in flight.
type Handler func(ctx context.Context, element entities.StreamElement)

// ProcessingQueue runs elements through a handler one at a time, in
// enqueue order, without ever blocking the producer.
type ProcessingQueue struct {
	handle Handler
	logger *zap.Logger

	mu       sync.Mutex
	items    []entities.StreamElement
	draining bool
	cancel   context.CancelFunc
	idle     chan struct{}
}

// NewProcessingQueue creates an idle queue
func NewProcessingQueue(handle Handler, logger *zap.Logger) *ProcessingQueue {
	idle := make(chan struct{})
	close(idle)
	return &ProcessingQueue{
		handle: handle,
		logger: logger,
		idle:   idle,
	}
}

// Enqueue appends an element and starts the drain loop if it is not running
func (q *ProcessingQueue) Enqueue(element entities.StreamElement) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, element)
	if q.draining {
		return
	}
	q.draining = true
	q.idle = make(chan struct{})
	go q.drain()
}

func (q *ProcessingQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.cancel = nil
			close(q.idle)
			q.mu.Unlock()
			return
		}
		element := q.items[0]
		q.items[0] = entities.StreamElement{}
		q.items = q.items[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.cancel = cancel
		q.mu.Unlock()

		q.run(ctx, element)
		cancel()

		// let producers and other boards run between elements
		runtime.Gosched()
	}
}

func (q *ProcessingQueue) run(ctx context.Context, element entities.StreamElement) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Element handler panicked",
				zap.String("kind", string(element.Kind)),
				zap.Any("panic", r))
		}
	}()
	q.handle(ctx, element)
}

// Len returns the number of elements waiting to be processed
func (q *ProcessingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait blocks until the queue is empty and nothing is in flight
func (q *ProcessingQueue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset drops the backlog without processing it and cancels the element in
// flight. It returns the number of dropped elements.
func (q *ProcessingQueue) Reset() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := len(q.items)
	q.items = nil
	if q.cancel != nil {
		q.cancel()
	}
	return dropped
}
