package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sawti/sawti-server/domain/entities"
	"github.com/sawti/sawti-server/domain/repositories"
	"github.com/sawti/sawti-server/pkg/audio"
)

type sessionState int

const (
	stateConnecting sessionState = iota
	stateReady
	stateError
	stateClosed
)

// Status messages shown to the client, in the assistant's language.
const (
	msgConnecting      = "جاري الاتصال بالخدمة الصوتية..."
	msgReady           = "النظام جاهز للمحادثة"
	msgListening       = "جاري الاستماع..."
	msgIdle            = "في انتظار سؤالك"
	msgDisconnected    = "انتهى الاتصال"
	msgFallbackMode    = "تم التحويل إلى الوضع النصي الاحتياطي"
	msgUpstreamFailure = "تعذر الاتصال بالخدمة الصوتية، حاول مرة أخرى لاحقاً"
	msgSynthesisFailed = "تعذر توليد الصوت لهذا الرد"
)

// Client bridges one WebSocket connection to one model session. All
// outbound frames flow through the buffered send channel and writePump;
// inbound frames are dispatched by readPump; upstream events arrive on the
// upstream session's goroutines.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	sessionID string
	logger    *zap.Logger

	mutex        sync.Mutex
	state        sessionState
	listening    bool
	upstream     repositories.LiveUpstream
	upstreamGen  int
	usedFallback bool
	errorSent    bool

	conversation *entities.Conversation

	closeOnce sync.Once
}

// connectUpstream selects the primary path and establishes it.
func (c *Client) connectUpstream() {
	c.sendStatus(StatusConnecting, msgConnecting)

	factory := c.hub.config.Live
	if factory == nil {
		factory = c.hub.config.Fallback
		c.mutex.Lock()
		c.usedFallback = true
		c.mutex.Unlock()
	}
	if factory == nil {
		c.logger.Error("No upstream factory configured")
		c.sendError(msgUpstreamFailure, true)
		c.teardown()
		return
	}

	c.startUpstream(factory)
}

func (c *Client) startUpstream(factory repositories.UpstreamFactory) {
	c.mutex.Lock()
	c.upstreamGen++
	gen := c.upstreamGen
	c.mutex.Unlock()

	// Handlers are tagged with the generation they belong to, so events
	// from a replaced upstream cannot affect its successor.
	upstream := factory(repositories.UpstreamHandlers{
		OnSetupComplete: func() { c.ifCurrent(gen, c.onSetupComplete) },
		OnAudioResponse: func(pcm []byte) { c.ifCurrent(gen, func() { c.onAudioResponse(pcm) }) },
		OnTranscript:    func(text string) { c.ifCurrent(gen, func() { c.onTranscript(text) }) },
		OnInterrupted:   func() { c.ifCurrent(gen, c.onInterrupted) },
		OnTurnComplete:  func() { c.ifCurrent(gen, c.onTurnComplete) },
		OnError:         func(err error) { c.ifCurrent(gen, func() { c.onUpstreamError(err) }) },
		OnClose: func(code int, reason string) {
			c.ifCurrent(gen, func() { c.onUpstreamClose(code, reason) })
		},
	})

	c.mutex.Lock()
	if gen != c.upstreamGen {
		// Replaced while constructing; discard.
		c.mutex.Unlock()
		upstream.Disconnect()
		return
	}
	c.upstream = upstream
	c.state = stateConnecting
	c.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := upstream.Connect(ctx); err != nil {
		c.logger.Error("Upstream connect failed", zap.Error(err))
		c.handleFatal(err)
	}
}

func (c *Client) onSetupComplete() {
	c.mutex.Lock()
	c.state = stateReady
	c.mutex.Unlock()
	c.sendStatus(StatusReady, msgReady)
}

func (c *Client) onAudioResponse(pcm []byte) {
	if c.hub.config.Metrics != nil {
		c.hub.config.Metrics.AudioBytesOut.Add(float64(len(pcm)))
	}
	c.sendFrame(WriteData{Type: websocket.BinaryMessage, Payload: pcm})
}

func (c *Client) onTranscript(text string) {
	c.mutex.Lock()
	c.conversation.AddModelMessage(text)
	c.mutex.Unlock()

	if c.hub.config.SynthesizeTranscripts && c.hub.config.TTS != nil {
		go c.synthesizeTranscript(text)
		return
	}
	c.sendFrame(WriteData{Type: websocket.TextMessage, Payload: newTranscriptMessage(text)})
}

// synthesizeTranscript voices one model text part: exactly one audio frame
// per part, or one non-fatal error when synthesis fails.
func (c *Client) synthesizeTranscript(text string) {
	if c.hub.config.Metrics != nil {
		c.hub.config.Metrics.SynthesisCalls.Inc()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pcm, err := c.hub.config.TTS.Synthesize(ctx, text, c.hub.config.VoiceID)
	if err != nil {
		c.logger.Error("Transcript synthesis failed", zap.Error(err))
		if c.hub.config.Metrics != nil {
			c.hub.config.Metrics.SynthesisFailures.Inc()
		}
		c.sendFrame(WriteData{Type: websocket.TextMessage, Payload: newTranscriptMessage(text)})
		c.sendError(msgSynthesisFailed, false)
		return
	}
	c.sendFrame(WriteData{Type: websocket.BinaryMessage, Payload: pcm})
}

func (c *Client) onInterrupted() {
	// The browser flushes its own playback queue on barge-in; nothing to
	// forward.
	c.logger.Debug("Model reported interruption")
}

func (c *Client) onTurnComplete() {
	c.sendFrame(WriteData{Type: websocket.TextMessage, Payload: newTurnCompleteMessage()})
	go c.persistConversation()
}

func (c *Client) onUpstreamError(err error) {
	if c.hub.config.Metrics != nil {
		c.hub.config.Metrics.UpstreamErrors.Inc()
	}
	if isFatal(err) {
		c.handleFatal(err)
		return
	}
	c.logger.Warn("Non-fatal upstream error", zap.Error(err))
	c.sendError(errorText(err), false)
}

func (c *Client) onUpstreamClose(code int, reason string) {
	c.mutex.Lock()
	state := c.state
	c.mutex.Unlock()
	if state == stateClosed || state == stateError {
		return
	}

	c.logger.Info("Upstream closed", zap.Int("code", code), zap.String("reason", reason))

	if c.trySwapToFallback() {
		return
	}
	c.sendStatus(StatusDisconnected, msgDisconnected)
	c.teardown()
}

// handleFatal ends the live path. With an unused fallback configured the
// session swaps over silently; otherwise the client sees exactly one fatal
// error.
func (c *Client) handleFatal(err error) {
	c.logger.Error("Fatal upstream error", zap.Error(err))

	if c.trySwapToFallback() {
		return
	}

	c.mutex.Lock()
	alreadySent := c.errorSent
	c.errorSent = true
	c.state = stateError
	c.mutex.Unlock()

	if !alreadySent {
		c.sendError(msgUpstreamFailure, true)
	}
	c.teardown()
}

// ifCurrent runs fn only when gen is still the active upstream generation.
func (c *Client) ifCurrent(gen int, fn func()) {
	c.mutex.Lock()
	current := gen == c.upstreamGen
	c.mutex.Unlock()
	if current {
		fn()
	}
}

func (c *Client) trySwapToFallback() bool {
	c.mutex.Lock()
	if c.usedFallback || c.hub.config.Fallback == nil || c.state == stateClosed {
		c.mutex.Unlock()
		return false
	}
	c.usedFallback = true
	old := c.upstream
	c.upstream = nil
	// Invalidate the old generation before its close event can fire.
	c.upstreamGen++
	c.mutex.Unlock()

	if old != nil {
		old.Disconnect()
	}
	if c.hub.config.Metrics != nil {
		c.hub.config.Metrics.FallbackSessions.Inc()
	}
	c.logger.Warn("Switching session to fallback path")
	c.sendStatus(StatusConnecting, msgFallbackMode)
	go c.startUpstream(c.hub.config.Fallback)
	return true
}

// readPump pumps messages from the websocket connection to the upstream.
func (c *Client) readPump() {
	defer func() {
		c.teardown()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the send channel to the websocket
// connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}
			if message.Type == websocket.CloseMessage {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one JSON control frame. Malformed frames are
// dropped without ending the session.
func (c *Client) processMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("Dropping malformed control frame", zap.Error(err))
		return
	}

	switch msg.Type {
	case TypeStartListening:
		c.handleStartListening()
	case TypeStopListening:
		c.handleStopListening()
	case TypeRealtimeInput:
		c.handleRealtimeInput(msg.RealtimeInput)
	case TypeClientContent:
		c.handleClientContent(msg.ClientContent)
	default:
		c.logger.Warn("Unknown message type", zap.String("type", msg.Type))
	}
}

// processBinaryAudioChunk forwards raw PCM16 to the upstream. Chunks sent
// before the upstream is ready are dropped there and stay uncounted.
func (c *Client) processBinaryAudioChunk(data []byte) {
	c.mutex.Lock()
	upstream := c.upstream
	c.mutex.Unlock()
	if upstream == nil {
		return
	}
	if upstream.Ready() && c.hub.config.Metrics != nil {
		c.hub.config.Metrics.AudioFramesIn.Inc()
	}
	upstream.SendAudio(data)
}

// handleStartListening toggles the listening state. The toggle is
// observable even before the upstream is ready.
func (c *Client) handleStartListening() {
	c.mutex.Lock()
	c.listening = true
	c.mutex.Unlock()
	c.sendStatus(StatusListening, msgListening)
}

func (c *Client) handleStopListening() {
	c.mutex.Lock()
	wasListening := c.listening
	c.listening = false
	upstream := c.upstream
	c.mutex.Unlock()

	if wasListening && upstream != nil {
		upstream.CompleteTurn()
	}
	c.sendStatus(StatusIdle, msgIdle)
}

// handleRealtimeInput decodes base64 media chunks and forwards them. A bad
// chunk is dropped and logged; the rest of the batch still goes through.
func (c *Client) handleRealtimeInput(input *RealtimeInput) {
	if input == nil {
		c.logger.Warn("realtime_input frame without payload")
		return
	}
	c.mutex.Lock()
	upstream := c.upstream
	c.mutex.Unlock()
	if upstream == nil {
		return
	}

	for _, chunk := range input.MediaChunks {
		pcm, err := audio.FromBase64(chunk.Data)
		if err != nil {
			c.logger.Warn("Dropping undecodable media chunk", zap.Error(err))
			continue
		}
		if upstream.Ready() && c.hub.config.Metrics != nil {
			c.hub.config.Metrics.AudioFramesIn.Inc()
		}
		upstream.SendAudio(pcm)
	}
}

// handleClientContent forwards user text turns, gated by the relevance
// filter.
func (c *Client) handleClientContent(content *ClientContent) {
	if content == nil {
		c.logger.Warn("client_content frame without payload")
		return
	}

	text := collectTurnText(content)
	result := c.hub.config.Filter.Check(text)
	if !result.Valid {
		c.logger.Info("Rejected off-topic turn", zap.String("reason", result.Reason))
		if c.hub.config.Metrics != nil {
			c.hub.config.Metrics.RejectedTurns.Inc()
		}
		c.sendError(result.Reason, false)
		return
	}

	c.mutex.Lock()
	upstream := c.upstream
	c.mutex.Unlock()
	if upstream == nil {
		return
	}

	// Only turns that actually go upstream belong in the transcript.
	c.mutex.Lock()
	c.conversation.AddUserMessage(result.Text)
	c.mutex.Unlock()

	if c.hub.config.Metrics != nil {
		c.hub.config.Metrics.TextTurns.Inc()
	}
	upstream.SendText(result.Text)
	if content.TurnComplete {
		// Text turns already close themselves upstream; an explicit
		// turn_complete only matters for audio, which CompleteTurn
		// covers on stop_listening.
		c.logger.Debug("Client content turn complete")
	}
}

func (c *Client) sendStatus(status, message string) {
	c.sendFrame(WriteData{Type: websocket.TextMessage, Payload: newStatusMessage(status, message)})
}

func (c *Client) sendError(message string, fatal bool) {
	c.sendFrame(WriteData{Type: websocket.TextMessage, Payload: newErrorMessage(message, fatal)})
}

// sendFrame enqueues one outbound frame, dropping it when the client
// cannot keep up or the session is closing.
func (c *Client) sendFrame(frame WriteData) {
	c.mutex.Lock()
	closed := c.state == stateClosed
	c.mutex.Unlock()
	if closed {
		return
	}
	defer func() {
		// Sending on the closed channel after unregister is a benign
		// race at teardown.
		_ = recover()
	}()
	select {
	case c.send <- frame:
	default:
		c.logger.Warn("Dropping outbound frame, client too slow")
	}
}

func (c *Client) persistConversation() {
	if c.hub.config.Conversations == nil {
		return
	}
	c.mutex.Lock()
	if c.conversation.Empty() {
		c.mutex.Unlock()
		return
	}
	snapshot := *c.conversation
	snapshot.Messages = make([]entities.ConversationMessage, len(c.conversation.Messages))
	copy(snapshot.Messages, c.conversation.Messages)
	c.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.hub.config.Conversations.Save(ctx, &snapshot); err != nil {
		c.logger.Error("Failed to persist conversation", zap.Error(err))
	}
}

// teardown closes the upstream and finalizes the session exactly once.
// Queued outbound frames drain through writePump before the socket closes.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		c.mutex.Lock()
		c.state = stateClosed
		upstream := c.upstream
		c.mutex.Unlock()

		if upstream != nil {
			upstream.Disconnect()
		}
		c.persistConversation()

		closeFrame := WriteData{
			Type:    websocket.CloseMessage,
			Payload: websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		}
		defer func() { _ = recover() }()
		select {
		case c.send <- closeFrame:
		default:
			c.conn.Close()
		}
	})
}

func isFatal(err error) bool {
	var connErr *repositories.UpstreamConnectError
	var authErr *repositories.AuthError
	return errors.As(err, &connErr) || errors.As(err, &authErr)
}

func errorText(err error) string {
	var synthErr *repositories.SynthesisError
	if errors.As(err, &synthErr) {
		return msgSynthesisFailed
	}
	return "حدث خطأ أثناء معالجة الطلب"
}

func collectTurnText(content *ClientContent) string {
	var text string
	for _, turn := range content.Turns {
		for _, part := range turn.Parts {
			if part.Text != "" {
				if text != "" {
					text += "\n"
				}
				text += part.Text
			}
		}
	}
	return text
}
