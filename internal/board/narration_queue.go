package board

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// DefaultMaxPlayback bounds the playback of a single narration
const DefaultMaxPlayback = 2 * time.Minute

type narrationRequest struct {
	narration repositories.Narration
	done      chan struct{}
}

// NarrationQueue plays narrations one at a time in enqueue order
type NarrationQueue struct {
	player      repositories.AudioPlayer
	logger      *zap.Logger
	maxPlayback time.Duration

	mu      sync.Mutex
	pending []narrationRequest
	playing bool
	cancel  context.CancelFunc
	idle    chan struct{}
}

// NewNarrationQueue creates a queue in front of player
func NewNarrationQueue(player repositories.AudioPlayer, logger *zap.Logger) *NarrationQueue {
	idle := make(chan struct{})
	close(idle)
	return &NarrationQueue{
		player:      player,
		logger:      logger,
		maxPlayback: DefaultMaxPlayback,
		idle:        idle,
	}
}

// SetMaxPlayback overrides the per narration playback bound
func (q *NarrationQueue) SetMaxPlayback(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maxPlayback = d
}

// Speak enqueues a narration. The returned channel is closed once that
// narration finished playing, failed, or was dropped by Reset.
func (q *NarrationQueue) Speak(n repositories.Narration) <-chan struct{} {
	req := narrationRequest{narration: n, done: make(chan struct{})}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, req)
	if !q.playing {
		q.playing = true
		q.idle = make(chan struct{})
		go q.loop()
	}
	return req.done
}

func (q *NarrationQueue) loop() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.playing = false
			q.cancel = nil
			close(q.idle)
			q.mu.Unlock()
			return
		}
		req := q.pending[0]
		q.pending[0] = narrationRequest{}
		q.pending = q.pending[1:]
		ctx, cancel := context.WithTimeout(context.Background(), q.maxPlayback)
		q.cancel = cancel
		q.mu.Unlock()

		q.play(ctx, req)
		cancel()
		close(req.done)
	}
}

// play waits for the player to report completion. The player is expected to
// honor ctx; the wait ends early only if it never does.
func (q *NarrationQueue) play(ctx context.Context, req narrationRequest) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Narration playback panicked",
				zap.String("narrationID", req.narration.ID),
				zap.Any("panic", r))
		}
	}()

	start := time.Now()
	finished := q.player.Play(ctx, req.narration)
	select {
	case <-finished:
	case <-ctx.Done():
		select {
		case <-finished:
		case <-time.After(time.Second):
			q.logger.Warn("Audio player did not stop after cancellation",
				zap.String("narrationID", req.narration.ID))
		}
	}

	if err := ctx.Err(); err != nil {
		q.logger.Debug("Narration cut short",
			zap.String("narrationID", req.narration.ID),
			zap.Error(err))
		return
	}
	q.logger.Debug("Narration finished",
		zap.String("narrationID", req.narration.ID),
		zap.Duration("duration", time.Since(start)))
}

// Len returns the number of narrations waiting to play
func (q *NarrationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until nothing is playing or pending
func (q *NarrationQueue) Wait(ctx context.Context) error {
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

// Reset drops every pending narration without playing it and stops the
// current one. It returns the number of dropped narrations.
func (q *NarrationQueue) Reset() int {
	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	for _, req := range dropped {
		close(req.done)
	}
	return len(dropped)
}
