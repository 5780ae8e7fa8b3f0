// Package portaudio provides the microphone and speaker backends for the
// terminal client. It is the only package that links against the PortAudio
// C library; the server never imports it.
package portaudio

import (
	"context"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/sawti/sawti-server/pkg/audio"
)

var (
	initOnce sync.Once
	initErr  error
)

func initialize() error {
	initOnce.Do(func() {
		initErr = pa.Initialize()
	})
	return initErr
}

// Source captures mono float32 frames from the default input device. It
// implements audio.CaptureSource.
type Source struct {
	stream    *pa.Stream
	buf       []float32
	fn        func([]float32)
	frameSize int

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

var _ audio.CaptureSource = (*Source)(nil)

// NewSource returns an unopened source.
func NewSource() *Source {
	return &Source{}
}

// Open opens the default input device at the given rate.
func (s *Source) Open(sampleRate, frameSize int, fn func([]float32)) error {
	if err := initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	s.buf = make([]float32, frameSize)
	s.fn = fn
	s.frameSize = frameSize
	stream, err := pa.OpenDefaultStream(1, 0, float64(sampleRate), frameSize, s.buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	s.stream = stream
	return nil
}

// Start begins reading frames on a background goroutine.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("start input stream: %w", err)
	}
	s.running = true
	s.done = make(chan struct{})
	go s.readLoop(s.done)
	return nil
}

func (s *Source) readLoop(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		if err := s.stream.Read(); err != nil {
			return
		}
		frame := make([]float32, s.frameSize)
		copy(frame, s.buf)
		s.fn(frame)
	}
}

// Stop halts frame delivery.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.done)
	return s.stream.Stop()
}

// Close releases the stream.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		close(s.done)
		_ = s.stream.Stop()
	}
	if s.stream != nil {
		return s.stream.Close()
	}
	return nil
}

// Renderer writes PCM16 chunks to the default output device. It implements
// audio.Renderer.
type Renderer struct {
	sampleRate int
	frameSize  int

	mu     sync.Mutex
	stream *pa.Stream
	buf    []int16
}

var _ audio.Renderer = (*Renderer)(nil)

// NewRenderer opens the default output device at the given rate.
func NewRenderer(sampleRate int) (*Renderer, error) {
	if err := initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	const frameSize = 1024
	r := &Renderer{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		buf:        make([]int16, frameSize),
	}
	stream, err := pa.OpenDefaultStream(0, 1, float64(sampleRate), frameSize, r.buf)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	r.stream = stream
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	return r, nil
}

// Render plays one PCM16 chunk, checking ctx between device writes so a
// flush interrupts mid-chunk.
func (r *Renderer) Render(ctx context.Context, pcm []byte) error {
	samples, err := audio.DecodePCM16(pcm)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for off := 0; off < len(samples); off += r.frameSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n := copy(r.buf, floatToInt16(samples[off:min(off+r.frameSize, len(samples))]))
		for i := n; i < r.frameSize; i++ {
			r.buf[i] = 0
		}
		if err := r.stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}

// Close stops and releases the output stream.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.stream.Stop()
	return r.stream.Close()
}

func floatToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			out[i] = int16(s * 32768)
		} else {
			out[i] = int16(s * 32767)
		}
	}
	return out
}
