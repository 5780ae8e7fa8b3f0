package audio

import (
	"errors"
	"testing"
)

// fakeSource is an in-process CaptureSource driven by the test.
type fakeSource struct {
	fn        func([]float32)
	openErr   error
	startErr  error
	started   bool
	stopCalls int
	closed    bool
}

func (f *fakeSource) Open(sampleRate, frameSize int, fn func([]float32)) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.fn = fn
	return nil
}

func (f *fakeSource) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeSource) Stop() error {
	f.started = false
	f.stopCalls++
	return nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func TestCaptureStreamEmitsVolumeThenFrame(t *testing.T) {
	src := &fakeSource{}
	var events []string
	var lastVolume float64
	var lastFrame []byte

	stream, err := NewCaptureStream(src, CaptureConfig{
		SampleRate: InputSampleRate,
		FrameSize:  4,
		OnVolume: func(v float64) {
			events = append(events, "volume")
			lastVolume = v
		},
		OnFrame: func(pcm []byte) {
			events = append(events, "frame")
			lastFrame = pcm
		},
	})
	if err != nil {
		t.Fatalf("NewCaptureStream() error = %v", err)
	}
	if err := stream.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	src.fn([]float32{0.5, 0.5, 0.5, 0.5})

	if len(events) != 2 || events[0] != "volume" || events[1] != "frame" {
		t.Fatalf("events = %v, want [volume frame]", events)
	}
	if lastVolume < 0.49 || lastVolume > 0.51 {
		t.Errorf("volume = %v, want ~0.5", lastVolume)
	}
	if len(lastFrame) != 8 {
		t.Errorf("frame length = %d, want 8", len(lastFrame))
	}
}

func TestCaptureStreamDropsFramesWhenStopped(t *testing.T) {
	src := &fakeSource{}
	frames := 0
	stream, err := NewCaptureStream(src, CaptureConfig{
		FrameSize: 2,
		OnFrame:   func([]byte) { frames++ },
	})
	if err != nil {
		t.Fatalf("NewCaptureStream() error = %v", err)
	}

	// Not started yet: frames are dropped.
	src.fn([]float32{0, 0})
	if frames != 0 {
		t.Errorf("frames = %d before Start, want 0", frames)
	}

	if err := stream.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	src.fn([]float32{0, 0})
	if frames != 1 {
		t.Errorf("frames = %d after Start, want 1", frames)
	}

	if err := stream.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	src.fn([]float32{0, 0})
	if frames != 1 {
		t.Errorf("frames = %d after Stop, want 1", frames)
	}
}

func TestCaptureStreamStopIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	stream, err := NewCaptureStream(src, CaptureConfig{FrameSize: 2})
	if err != nil {
		t.Fatalf("NewCaptureStream() error = %v", err)
	}
	if err := stream.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := stream.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := stream.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if src.stopCalls != 1 {
		t.Errorf("source Stop called %d times, want 1", src.stopCalls)
	}
}

func TestCaptureStreamDeviceErrors(t *testing.T) {
	t.Run("open failure wraps ErrDeviceUnavailable", func(t *testing.T) {
		src := &fakeSource{openErr: errors.New("no device")}
		if _, err := NewCaptureStream(src, CaptureConfig{}); !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("error = %v, want ErrDeviceUnavailable", err)
		}
	})

	t.Run("start failure wraps ErrDeviceUnavailable", func(t *testing.T) {
		src := &fakeSource{startErr: errors.New("busy")}
		stream, err := NewCaptureStream(src, CaptureConfig{})
		if err != nil {
			t.Fatalf("NewCaptureStream() error = %v", err)
		}
		if err := stream.Start(); !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("Start() error = %v, want ErrDeviceUnavailable", err)
		}
	})
}
