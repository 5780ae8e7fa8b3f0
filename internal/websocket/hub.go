// Package websocket implements the client-facing session orchestrator: it
// accepts browser/terminal WebSocket connections and bridges each one to a
// live model session, with a single-shot fallback when the live path fails.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sawti/sawti-server/domain/entities"
	"github.com/sawti/sawti-server/domain/repositories"
	"github.com/sawti/sawti-server/internal/metrics"
	"github.com/sawti/sawti-server/internal/relevance"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The browser client may be served from a different origin.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HubConfig wires the orchestrator's collaborators.
type HubConfig struct {
	// Live builds the primary bidirectional upstream. Nil when the live
	// path is not configured; sessions then start on the fallback.
	Live repositories.UpstreamFactory

	// Fallback builds the single-shot upstream used when the live path
	// fails terminally, or as primary when Live is nil.
	Fallback repositories.UpstreamFactory

	// TTS synthesizes model transcripts when SynthesizeTranscripts is
	// set. May be nil.
	TTS repositories.TextToSpeech

	// SynthesizeTranscripts makes the orchestrator voice the model's
	// text itself, for response modalities without native audio.
	SynthesizeTranscripts bool

	// VoiceID selects the synthesis voice. Empty uses the TTS default.
	VoiceID string

	Filter        *relevance.Filter
	Conversations repositories.ConversationRepository
	Metrics       *metrics.Metrics
	Language      string
}

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	config HubConfig
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(config HubConfig, logger *zap.Logger) *Hub {
	if config.Filter == nil {
		config.Filter = relevance.NewFilter(false)
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		config:     config,
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			if h.config.Metrics != nil {
				h.config.Metrics.ActiveSessions.Inc()
				h.config.Metrics.SessionsStarted.Inc()
			}
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.sessionID]; ok {
				delete(h.clients, client.sessionID)
				close(client.send)
			}
			h.mu.Unlock()
			if h.config.Metrics != nil {
				h.config.Metrics.ActiveSessions.Dec()
			}
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))
		}
	}
}

// SessionCount reports the number of connected clients.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WriteData is one outbound WebSocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// HandleWebSocket upgrades the request and starts a session.
func HandleWebSocket(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, sessionID, logger)
	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
	go client.connectUpstream()

	return nil
}

func newClient(hub *Hub, conn *websocket.Conn, sessionID string, logger *zap.Logger) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan WriteData, 256),
		sessionID:    sessionID,
		logger:       logger.With(zap.String("sessionID", sessionID)),
		state:        stateConnecting,
		conversation: entities.NewConversation(hub.config.Language),
	}
}
