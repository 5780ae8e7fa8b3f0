package repositories

import "context"

// UpstreamHandlers receives events from a live model session. Callbacks are
// invoked from the session's own goroutines; implementations must be safe
// for that.
type UpstreamHandlers struct {
	// OnSetupComplete fires when the model has acknowledged the session
	// handshake and the session is ready for turns. It fires again after
	// every successful reconnect.
	OnSetupComplete func()

	// OnAudioResponse delivers one chunk of 24 kHz PCM16 model audio.
	OnAudioResponse func(pcm []byte)

	// OnTranscript delivers one text part of a model turn.
	OnTranscript func(text string)

	// OnInterrupted fires when the model reports its own output was cut
	// off by new user activity.
	OnInterrupted func()

	// OnTurnComplete fires when the model finishes a response turn.
	OnTurnComplete func()

	// OnError reports a session error. Terminal errors (reconnect budget
	// exhausted, authentication failure) are reported exactly once.
	OnError func(err error)

	// OnClose fires once when the session will produce no further events.
	OnClose func(code int, reason string)
}

// LiveUpstream is a bidirectional model session. Implementations queue text
// and turn-control sent before the session is ready and replay them in order
// once it is; audio sent before readiness is dropped.
type LiveUpstream interface {
	// Connect establishes the session and sends the handshake. Events
	// flow through the handlers from this point on.
	Connect(ctx context.Context) error

	// SendAudio forwards one chunk of 16 kHz PCM16 user audio.
	SendAudio(pcm []byte)

	// SendText forwards one user text turn.
	SendText(text string)

	// CompleteTurn signals the end of the current user turn.
	CompleteTurn()

	// Ready reports whether the handshake has been acknowledged.
	Ready() bool

	// Disconnect closes the session. Safe to call more than once.
	Disconnect()
}

// UpstreamFactory builds a LiveUpstream bound to the given handlers. The
// orchestrator constructs one upstream per client session.
type UpstreamFactory func(handlers UpstreamHandlers) LiveUpstream
