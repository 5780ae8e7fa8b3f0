package repositories

import "context"

// TextToSpeech synthesizes one text turn into 24 kHz PCM16 audio. An empty
// voiceID selects the adapter's configured default voice.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error)
}
