package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sawti/sawti-server/domain/repositories"
)

const fallbackTurnTimeout = 60 * time.Second

// FallbackConfig configures the single-shot fallback path.
type FallbackConfig struct {
	APIKey            string
	Model             string
	SystemInstruction string
	VoiceID           string
}

// FallbackClient implements repositories.LiveUpstream over the single-shot
// generateContent API plus external TTS. It carries no audio input: chunks
// sent to it are discarded, text turns produce a transcript, synthesized
// audio, and a turn-complete event.
type FallbackClient struct {
	cfg      FallbackConfig
	tts      repositories.TextToSpeech
	handlers repositories.UpstreamHandlers
	logger   *zap.Logger

	mu       sync.Mutex
	client   *genai.Client
	ready    bool
	closed   bool
	audioLog sync.Once

	// generate runs one model call. Replaced in tests.
	generate func(ctx context.Context, text string) (string, error)
}

// NewFallbackClient creates a fallback client. A nil tts disables audio
// responses; transcripts are still delivered.
func NewFallbackClient(cfg FallbackConfig, tts repositories.TextToSpeech, handlers repositories.UpstreamHandlers, logger *zap.Logger) *FallbackClient {
	return &FallbackClient{
		cfg:      cfg,
		tts:      tts,
		handlers: handlers,
		logger:   logger,
	}
}

// Connect initializes the genai client and reports readiness immediately;
// there is no handshake on the single-shot path.
func (f *FallbackClient) Connect(ctx context.Context) error {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  f.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &repositories.UpstreamConnectError{Err: fmt.Errorf("create genai client: %w", err)}
	}

	f.mu.Lock()
	f.client = client
	f.ready = true
	f.mu.Unlock()

	if f.handlers.OnSetupComplete != nil {
		f.handlers.OnSetupComplete()
	}
	return nil
}

// SendAudio discards the chunk. The single-shot path has no speech input.
func (f *FallbackClient) SendAudio(pcm []byte) {
	f.audioLog.Do(func() {
		f.logger.Warn("Fallback mode active, audio input is discarded")
	})
}

// SendText runs one request/response turn asynchronously.
func (f *FallbackClient) SendText(text string) {
	f.mu.Lock()
	ready := f.ready && !f.closed
	f.mu.Unlock()
	if !ready {
		return
	}
	go f.generateTurn(text)
}

func (f *FallbackClient) generateTurn(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), fallbackTurnTimeout)
	defer cancel()

	gen := f.generate
	if gen == nil {
		gen = f.generateText
	}
	reply, err := gen(ctx, text)
	if err != nil {
		f.logger.Error("Fallback generation failed", zap.Error(err))
		if f.handlers.OnError != nil {
			f.handlers.OnError(fmt.Errorf("fallback generation: %w", err))
		}
		return
	}

	if reply == "" {
		f.logger.Warn("Fallback generation returned no text")
		if f.handlers.OnTurnComplete != nil {
			f.handlers.OnTurnComplete()
		}
		return
	}

	if f.handlers.OnTranscript != nil {
		f.handlers.OnTranscript(reply)
	}

	if f.tts != nil {
		pcm, err := f.tts.Synthesize(ctx, reply, f.cfg.VoiceID)
		if err != nil {
			f.logger.Error("Fallback synthesis failed", zap.Error(err))
			if f.handlers.OnError != nil {
				f.handlers.OnError(&repositories.SynthesisError{Err: err})
			}
		} else if f.handlers.OnAudioResponse != nil {
			f.handlers.OnAudioResponse(pcm)
		}
	}

	if f.handlers.OnTurnComplete != nil {
		f.handlers.OnTurnComplete()
	}
}

// generateText issues one generateContent call with the system instruction
// prepended as a user turn.
func (f *FallbackClient) generateText(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	client := f.client
	f.mu.Unlock()

	contents := []*genai.Content{
		genai.NewContentFromText(f.cfg.SystemInstruction, genai.RoleUser),
		genai.NewContentFromText(text, genai.RoleUser),
	}
	resp, err := client.Models.GenerateContent(ctx, f.cfg.Model, contents, nil)
	if err != nil {
		return "", err
	}
	return collectText(resp), nil
}

// CompleteTurn is a no-op; every SendText is already a complete turn.
func (f *FallbackClient) CompleteTurn() {}

// Ready reports whether Connect has succeeded.
func (f *FallbackClient) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready && !f.closed
}

// Disconnect stops the client from accepting further turns.
func (f *FallbackClient) Disconnect() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.ready = false
	f.mu.Unlock()

	if f.handlers.OnClose != nil {
		f.handlers.OnClose(0, "fallback client disconnected")
	}
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
