package audio

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDeviceUnavailable indicates no usable capture device could be opened.
var ErrDeviceUnavailable = errors.New("audio capture device unavailable")

// CaptureSource delivers fixed-size float32 frames from an input device.
// Open registers the frame callback; Start and Stop control delivery.
type CaptureSource interface {
	Open(sampleRate, frameSize int, fn func([]float32)) error
	Start() error
	Stop() error
	Close() error
}

// CaptureStream turns raw device frames into PCM16 chunks. For every frame
// it reports the RMS level first, then the encoded chunk, synchronously on
// the source's delivery goroutine. There is no internal buffering: a slow
// consumer slows capture.
type CaptureStream struct {
	source    CaptureSource
	frameSize int

	onVolume func(float64)
	onFrame  func([]byte)

	mu      sync.Mutex
	opened  bool
	started bool
}

// CaptureConfig configures a CaptureStream.
type CaptureConfig struct {
	SampleRate int
	FrameSize  int
	OnVolume   func(level float64)
	OnFrame    func(pcm []byte)
}

// NewCaptureStream opens the source at the configured rate and frame size.
func NewCaptureStream(source CaptureSource, cfg CaptureConfig) (*CaptureStream, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = InputSampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 1024
	}
	s := &CaptureStream{
		source:    source,
		frameSize: cfg.FrameSize,
		onVolume:  cfg.OnVolume,
		onFrame:   cfg.OnFrame,
	}
	if err := source.Open(cfg.SampleRate, cfg.FrameSize, s.process); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.opened = true
	return s, nil
}

// Start begins frame delivery.
func (s *CaptureStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.source.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.started = true
	return nil
}

// Stop pauses frame delivery. Stopping an already stopped stream is a no-op.
func (s *CaptureStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	return s.source.Stop()
}

// Close releases the underlying device. The stream cannot be restarted.
func (s *CaptureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil
	}
	s.opened = false
	s.started = false
	return s.source.Close()
}

func (s *CaptureStream) process(frame []float32) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	if s.onVolume != nil {
		s.onVolume(RMS(frame))
	}
	if s.onFrame != nil {
		s.onFrame(EncodePCM16(frame))
	}
}
