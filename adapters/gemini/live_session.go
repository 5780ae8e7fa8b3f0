// Package gemini implements the model-facing side of the voice bridge:
// a bidirectional live session over the Vertex AI BidiGenerateContent
// WebSocket endpoint, and a single-shot REST fallback.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sawti/sawti-server/domain/repositories"
	"github.com/sawti/sawti-server/pkg/audio"
)

const (
	liveEndpointFormat = "wss://%s-aiplatform.googleapis.com/ws/google.cloud.aiplatform.v1beta1.LlmBidiService/BidiGenerateContent"
	modelResourceFmt   = "projects/%s/locations/%s/publishers/google/models/%s"
	inputAudioMimeType = "audio/pcm;rate=16000"

	defaultConnectTimeout       = 10 * time.Second
	defaultBaseReconnectDelay   = 3 * time.Second
	defaultMaxReconnectAttempts = 5
)

// TokenSource supplies bearer tokens for the live endpoint.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// LiveConfig configures a live session.
type LiveConfig struct {
	ProjectID          string
	Region             string
	Model              string
	VoiceName          string
	LanguageCode       string
	SystemInstruction  string
	ResponseModalities []string

	ConnectTimeout       time.Duration
	BaseReconnectDelay   time.Duration
	MaxReconnectAttempts int

	// Endpoint overrides the Vertex URL. Used by tests.
	Endpoint string
}

func (c *LiveConfig) applyDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.BaseReconnectDelay == 0 {
		c.BaseReconnectDelay = defaultBaseReconnectDelay
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if len(c.ResponseModalities) == 0 {
		c.ResponseModalities = []string{"AUDIO"}
	}
}

type pendingKind int

const (
	pendingText pendingKind = iota
	pendingTurnComplete
)

type pendingMessage struct {
	kind pendingKind
	text string
}

// LiveSession is a bidirectional Gemini session over WebSocket. It sends the
// setup handshake on every (re)connect, queues text and turn-control until
// the model acknowledges setup, drops audio sent before that, and reconnects
// with linear backoff on abnormal closure.
type LiveSession struct {
	cfg      LiveConfig
	tokens   TokenSource
	handlers repositories.UpstreamHandlers
	logger   *zap.Logger

	mu                sync.Mutex
	conn              *websocket.Conn
	ready             bool
	closed            bool
	closeNotified     bool
	errorSent         bool
	pending           []pendingMessage
	reconnectAttempts int

	writeMu sync.Mutex
}

// NewLiveSession creates a live session. Connect must be called before use.
func NewLiveSession(cfg LiveConfig, tokens TokenSource, handlers repositories.UpstreamHandlers, logger *zap.Logger) *LiveSession {
	cfg.applyDefaults()
	return &LiveSession{
		cfg:      cfg,
		tokens:   tokens,
		handlers: handlers,
		logger:   logger,
	}
}

// Connect dials the live endpoint and sends the setup handshake. Readiness
// is reported through OnSetupComplete once the model acknowledges.
func (s *LiveSession) Connect(ctx context.Context) error {
	if err := s.dial(ctx); err != nil {
		return &repositories.UpstreamConnectError{Err: err}
	}
	return nil
}

func (s *LiveSession) endpoint() string {
	if s.cfg.Endpoint != "" {
		return s.cfg.Endpoint
	}
	return fmt.Sprintf(liveEndpointFormat, s.cfg.Region)
}

func (s *LiveSession) dial(ctx context.Context) error {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return &repositories.AuthError{Err: err}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.endpoint(), header)
	if err != nil {
		return fmt.Errorf("dial live endpoint: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return fmt.Errorf("session already disconnected")
	}
	s.conn = conn
	s.ready = false
	s.mu.Unlock()

	// The handshake goes out before anything else on every connection.
	if err := s.writeJSON(conn, s.setupMessage()); err != nil {
		conn.Close()
		return fmt.Errorf("send setup: %w", err)
	}

	go s.readLoop(conn)
	return nil
}

func (s *LiveSession) setupMessage() setupMessage {
	msg := setupMessage{
		Setup: setupPayload{
			Model: fmt.Sprintf(modelResourceFmt, s.cfg.ProjectID, s.cfg.Region, s.cfg.Model),
			GenerationConfig: &generationConfig{
				ResponseModalities: s.cfg.ResponseModalities,
				SpeechConfig: &speechConfig{
					VoiceConfig: &voiceConfig{
						PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: s.cfg.VoiceName},
					},
					LanguageCode: s.cfg.LanguageCode,
				},
			},
		},
	}
	if s.cfg.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &content{
			Parts: []part{{Text: s.cfg.SystemInstruction}},
		}
	}
	return msg
}

func (s *LiveSession) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(conn, err)
			return
		}
		s.handleServerMessage(data)
	}
}

func (s *LiveSession) handleServerMessage(data []byte) {
	var msg serverMessage
	if err := unmarshalServerMessage(data, &msg); err != nil {
		s.logger.Warn("Dropping undecodable upstream frame", zap.Error(err))
		return
	}

	if msg.SetupComplete != nil {
		s.handleSetupComplete()
		return
	}

	sc := msg.ServerContent
	if sc == nil {
		return
	}
	if sc.Interrupted {
		if s.handlers.OnInterrupted != nil {
			s.handlers.OnInterrupted()
		}
		return
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			switch {
			case p.InlineData != nil:
				pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					s.logger.Warn("Dropping undecodable audio part", zap.Error(err))
					continue
				}
				if s.handlers.OnAudioResponse != nil {
					s.handlers.OnAudioResponse(pcm)
				}
			case p.Text != "":
				if s.handlers.OnTranscript != nil {
					s.handlers.OnTranscript(p.Text)
				}
			}
		}
	}
	if sc.TurnComplete {
		if s.handlers.OnTurnComplete != nil {
			s.handlers.OnTurnComplete()
		}
	}
}

func (s *LiveSession) handleSetupComplete() {
	s.mu.Lock()
	s.ready = true
	s.reconnectAttempts = 0
	queued := s.pending
	s.pending = nil
	conn := s.conn
	s.mu.Unlock()

	s.logger.Info("Live session ready", zap.Int("queued", len(queued)))

	if s.handlers.OnSetupComplete != nil {
		s.handlers.OnSetupComplete()
	}

	// Replay everything queued before readiness, oldest first, exactly once.
	for _, m := range queued {
		switch m.kind {
		case pendingText:
			s.sendTextNow(conn, m.text)
		case pendingTurnComplete:
			s.sendTurnCompleteNow(conn)
		}
	}
}

// SendAudio forwards one PCM16 chunk. Audio arriving before the session is
// ready is dropped; stale audio has no value after the handshake completes.
func (s *LiveSession) SendAudio(pcm []byte) {
	s.mu.Lock()
	conn, ready := s.conn, s.ready
	s.mu.Unlock()
	if !ready || conn == nil {
		return
	}
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{
				MimeType: inputAudioMimeType,
				Data:     audio.ToBase64(pcm),
			}},
		},
	}
	if err := s.writeJSON(conn, msg); err != nil {
		s.logger.Warn("Failed to forward audio chunk", zap.Error(err))
	}
}

// SendText forwards one user text turn, queueing it if the session is not
// ready yet.
func (s *LiveSession) SendText(text string) {
	s.mu.Lock()
	if !s.ready || s.conn == nil {
		if !s.closed {
			s.pending = append(s.pending, pendingMessage{kind: pendingText, text: text})
		}
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.mu.Unlock()
	s.sendTextNow(conn, text)
}

func (s *LiveSession) sendTextNow(conn *websocket.Conn, text string) {
	msg := clientContentMessage{
		ClientContent: clientContent{
			Turns: []content{{
				Role:  "user",
				Parts: []part{{Text: text}},
			}},
			TurnComplete: true,
		},
	}
	if err := s.writeJSON(conn, msg); err != nil {
		s.logger.Warn("Failed to send text turn", zap.Error(err))
	}
}

// CompleteTurn signals the end of the current user audio turn, queueing the
// signal if the session is not ready yet.
func (s *LiveSession) CompleteTurn() {
	s.mu.Lock()
	if !s.ready || s.conn == nil {
		if !s.closed {
			s.pending = append(s.pending, pendingMessage{kind: pendingTurnComplete})
		}
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.mu.Unlock()
	s.sendTurnCompleteNow(conn)
}

func (s *LiveSession) sendTurnCompleteNow(conn *websocket.Conn) {
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{AudioStreamEnd: true},
	}
	if err := s.writeJSON(conn, msg); err != nil {
		s.logger.Warn("Failed to send turn completion", zap.Error(err))
	}
}

// Ready reports whether the handshake has been acknowledged.
func (s *LiveSession) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Disconnect closes the session and suppresses reconnection.
func (s *LiveSession) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.ready = false
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		conn.Close()
	}
	s.notifyClose(websocket.CloseNormalClosure, "client disconnect")
}

func (s *LiveSession) handleDisconnect(conn *websocket.Conn, err error) {
	conn.Close()

	s.mu.Lock()
	if s.closed || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.ready = false

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.mu.Unlock()
		s.logger.Info("Live session closed by model", zap.Error(err))
		s.notifyClose(closeCode(err), "upstream closed")
		return
	}

	s.reconnectAttempts++
	attempt := s.reconnectAttempts
	if attempt > s.cfg.MaxReconnectAttempts {
		terminal := !s.errorSent
		s.errorSent = true
		s.mu.Unlock()
		s.logger.Error("Live session reconnect budget exhausted",
			zap.Int("attempts", attempt-1), zap.Error(err))
		if terminal && s.handlers.OnError != nil {
			s.handlers.OnError(&repositories.UpstreamConnectError{
				Attempts: attempt - 1,
				Err:      err,
			})
		}
		s.notifyClose(closeCode(err), "reconnect budget exhausted")
		return
	}
	delay := time.Duration(attempt) * s.cfg.BaseReconnectDelay
	s.mu.Unlock()

	s.logger.Warn("Live session lost, reconnecting",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(err))

	time.AfterFunc(delay, s.redial)
}

func (s *LiveSession) redial() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	defer cancel()
	if err := s.dial(ctx); err != nil {
		// A failed redial consumes another attempt.
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.reconnectAttempts++
		attempt := s.reconnectAttempts
		if attempt > s.cfg.MaxReconnectAttempts {
			terminal := !s.errorSent
			s.errorSent = true
			s.mu.Unlock()
			s.logger.Error("Live session redial failed terminally", zap.Error(err))
			if terminal && s.handlers.OnError != nil {
				s.handlers.OnError(&repositories.UpstreamConnectError{
					Attempts: attempt - 1,
					Err:      err,
				})
			}
			s.notifyClose(websocket.CloseAbnormalClosure, "reconnect budget exhausted")
			return
		}
		delay := time.Duration(attempt) * s.cfg.BaseReconnectDelay
		s.mu.Unlock()
		s.logger.Warn("Redial failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		time.AfterFunc(delay, s.redial)
	}
}

func (s *LiveSession) notifyClose(code int, reason string) {
	s.mu.Lock()
	if s.closeNotified {
		s.mu.Unlock()
		return
	}
	s.closeNotified = true
	s.mu.Unlock()
	if s.handlers.OnClose != nil {
		s.handlers.OnClose(code, reason)
	}
}

func (s *LiveSession) writeJSON(conn *websocket.Conn, v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func closeCode(err error) int {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
