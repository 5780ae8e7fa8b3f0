package audio

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recordingRenderer records chunks in render order and optionally blocks
// until its context is cancelled.
type recordingRenderer struct {
	mu       sync.Mutex
	rendered [][]byte
	block    chan struct{} // when non-nil, Render waits for ctx or this chan
	started  chan struct{} // signalled when a Render begins
}

func (r *recordingRenderer) Render(ctx context.Context, pcm []byte) error {
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.block:
		}
	}
	r.mu.Lock()
	r.rendered = append(r.rendered, pcm)
	r.mu.Unlock()
	return nil
}

func (r *recordingRenderer) chunks() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.rendered))
	copy(out, r.rendered)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPlaybackQueuePreservesOrder(t *testing.T) {
	r := &recordingRenderer{}
	q := NewPlaybackQueue(r)

	q.Enqueue([]byte{1})
	q.Enqueue([]byte{2})
	q.Enqueue([]byte{3})

	waitFor(t, time.Second, func() bool { return len(r.chunks()) == 3 })

	chunks := r.chunks()
	for i, want := range []byte{1, 2, 3} {
		if chunks[i][0] != want {
			t.Errorf("chunk %d = %d, want %d", i, chunks[i][0], want)
		}
	}
}

func TestPlaybackQueueFlushDiscardsQueuedChunks(t *testing.T) {
	r := &recordingRenderer{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	q := NewPlaybackQueue(r)

	q.Enqueue([]byte{1})
	<-r.started // first chunk is in Render, blocked
	q.Enqueue([]byte{2})
	q.Enqueue([]byte{3})

	q.Flush()

	if q.Playing() {
		t.Error("Playing() = true immediately after Flush()")
	}

	// The interrupted chunk returned ctx.Err and was never recorded; the
	// queued ones were discarded.
	time.Sleep(50 * time.Millisecond)
	if got := len(r.chunks()); got != 0 {
		t.Errorf("rendered %d chunks after flush, want 0", got)
	}
}

func TestPlaybackQueueAcceptsAudioAfterFlush(t *testing.T) {
	r := &recordingRenderer{}
	q := NewPlaybackQueue(r)

	q.Enqueue([]byte{1})
	q.Flush()
	q.Enqueue([]byte{9})

	waitFor(t, time.Second, func() bool {
		chunks := r.chunks()
		return len(chunks) >= 1 && chunks[len(chunks)-1][0] == 9
	})
}

func TestPlaybackQueueIdleAfterDrain(t *testing.T) {
	r := &recordingRenderer{}
	q := NewPlaybackQueue(r)

	q.Enqueue([]byte{1})
	waitFor(t, time.Second, func() bool { return !q.Playing() })

	// A fresh enqueue restarts playback.
	q.Enqueue([]byte{2})
	waitFor(t, time.Second, func() bool { return len(r.chunks()) == 2 })
}
