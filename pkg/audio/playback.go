package audio

import (
	"context"
	"sync"
)

// Renderer plays one chunk of PCM16 audio to completion. Render must honor
// context cancellation so an interrupted chunk stops quickly.
type Renderer interface {
	Render(ctx context.Context, pcm []byte) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, pcm []byte) error

func (f RendererFunc) Render(ctx context.Context, pcm []byte) error {
	return f(ctx, pcm)
}

// PlaybackQueue renders PCM16 chunks strictly in arrival order, one at a
// time. Flush discards everything queued and cancels the chunk being
// rendered; chunks enqueued after a Flush start a fresh run and are never
// mixed with pre-flush audio.
type PlaybackQueue struct {
	renderer Renderer

	mu      sync.Mutex
	pending [][]byte
	playing bool
	gen     uint64
	cancel  context.CancelFunc
}

// NewPlaybackQueue creates a queue that plays through the given renderer.
func NewPlaybackQueue(renderer Renderer) *PlaybackQueue {
	return &PlaybackQueue{renderer: renderer}
}

// Enqueue appends a chunk and starts playback if the queue was idle.
func (q *PlaybackQueue) Enqueue(pcm []byte) {
	q.mu.Lock()
	q.pending = append(q.pending, pcm)
	if !q.playing {
		q.playing = true
		go q.run(q.gen)
	}
	q.mu.Unlock()
}

// Flush drops all queued chunks and interrupts the chunk currently being
// rendered. Safe to call concurrently with Enqueue.
func (q *PlaybackQueue) Flush() {
	q.mu.Lock()
	q.gen++
	q.pending = nil
	q.playing = false
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Playing reports whether a chunk is queued or being rendered.
func (q *PlaybackQueue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

func (q *PlaybackQueue) run(gen uint64) {
	for {
		q.mu.Lock()
		if gen != q.gen {
			q.mu.Unlock()
			return
		}
		if len(q.pending) == 0 {
			q.playing = false
			q.mu.Unlock()
			return
		}
		chunk := q.pending[0]
		q.pending = q.pending[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.cancel = cancel
		q.mu.Unlock()

		_ = q.renderer.Render(ctx, chunk)
		cancel()

		q.mu.Lock()
		if gen == q.gen {
			q.cancel = nil
		}
		q.mu.Unlock()
	}
}
