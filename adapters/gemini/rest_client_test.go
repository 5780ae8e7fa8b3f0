package gemini

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sawti/sawti-server/domain/repositories"
)

type recordingTTS struct {
	mu     sync.Mutex
	texts  []string
	voices []string
	pcm    []byte
	err    error
}

func (r *recordingTTS) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	r.voices = append(r.voices, voiceID)
	return r.pcm, r.err
}

func waitEvent(t *testing.T, events chan string, want string) {
	t.Helper()
	select {
	case got := <-events:
		if got != want {
			t.Fatalf("event = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestFallbackTextTurnSequence(t *testing.T) {
	tts := &recordingTTS{pcm: []byte{0x01, 0x02}}
	events := make(chan string, 8)
	handlers := repositories.UpstreamHandlers{
		OnTranscript:    func(text string) { events <- "transcript:" + text },
		OnAudioResponse: func(pcm []byte) { events <- "audio:" + string(pcm) },
		OnTurnComplete:  func() { events <- "turn_complete" },
		OnError:         func(err error) { events <- "error" },
	}

	f := NewFallbackClient(FallbackConfig{Model: "gemini-2.0-flash", VoiceID: "voice-1"}, tts, handlers, zap.NewNop())
	f.generate = func(ctx context.Context, text string) (string, error) {
		if text != "مرحبا" {
			t.Errorf("generate text = %q, want مرحبا", text)
		}
		return "أهلاً بك", nil
	}
	f.mu.Lock()
	f.ready = true
	f.mu.Unlock()

	f.SendText("مرحبا")

	waitEvent(t, events, "transcript:أهلاً بك")
	waitEvent(t, events, "audio:\x01\x02")
	waitEvent(t, events, "turn_complete")

	tts.mu.Lock()
	defer tts.mu.Unlock()
	if len(tts.texts) != 1 || tts.texts[0] != "أهلاً بك" {
		t.Errorf("synthesis calls = %v, want exactly one with the reply", tts.texts)
	}
	if tts.voices[0] != "voice-1" {
		t.Errorf("synthesis voice = %q, want voice-1", tts.voices[0])
	}
}

func TestFallbackSynthesisFailureStillCompletesTurn(t *testing.T) {
	tts := &recordingTTS{err: errors.New("voice service down")}
	events := make(chan string, 8)
	var gotErr error
	var errMu sync.Mutex
	handlers := repositories.UpstreamHandlers{
		OnTranscript:    func(text string) { events <- "transcript:" + text },
		OnAudioResponse: func(pcm []byte) { events <- "audio" },
		OnTurnComplete:  func() { events <- "turn_complete" },
		OnError: func(err error) {
			errMu.Lock()
			gotErr = err
			errMu.Unlock()
			events <- "error"
		},
	}

	f := NewFallbackClient(FallbackConfig{Model: "gemini-2.0-flash"}, tts, handlers, zap.NewNop())
	f.generate = func(ctx context.Context, text string) (string, error) {
		return "إجابة", nil
	}
	f.mu.Lock()
	f.ready = true
	f.mu.Unlock()

	f.SendText("سؤال")

	waitEvent(t, events, "transcript:إجابة")
	waitEvent(t, events, "error")
	waitEvent(t, events, "turn_complete")

	errMu.Lock()
	defer errMu.Unlock()
	var synthErr *repositories.SynthesisError
	if !errors.As(gotErr, &synthErr) {
		t.Errorf("error = %v, want *SynthesisError", gotErr)
	}
}

func TestFallbackIgnoresTextBeforeConnect(t *testing.T) {
	called := false
	f := NewFallbackClient(FallbackConfig{}, nil, repositories.UpstreamHandlers{}, zap.NewNop())
	f.generate = func(ctx context.Context, text string) (string, error) {
		called = true
		return "", nil
	}

	f.SendText("مرحبا")
	time.Sleep(50 * time.Millisecond)
	if called {
		t.Error("SendText before Connect reached the model")
	}
}
