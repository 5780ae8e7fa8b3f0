package websocket

import "encoding/json"

// Client-facing protocol. Control frames are snake_case JSON text messages;
// audio travels as raw binary PCM16 (16 kHz toward the server, 24 kHz from
// it).

// Inbound message types.
const (
	TypeStartListening = "start_listening"
	TypeStopListening  = "stop_listening"
	TypeRealtimeInput  = "realtime_input"
	TypeClientContent  = "client_content"
)

// ClientMessage is the union of JSON frames a client can send.
type ClientMessage struct {
	Type          string         `json:"type"`
	RealtimeInput *RealtimeInput `json:"realtime_input,omitempty"`
	ClientContent *ClientContent `json:"client_content,omitempty"`
}

// RealtimeInput carries base64 audio chunks inside a JSON frame, for
// clients that cannot send binary.
type RealtimeInput struct {
	MediaChunks []MediaChunk `json:"media_chunks"`
}

// MediaChunk is one base64 PCM16 chunk.
type MediaChunk struct {
	MimeType string `json:"mime_type,omitempty"`
	Data     string `json:"data"`
}

// ClientContent carries text turns.
type ClientContent struct {
	Turns        []ContentTurn `json:"turns"`
	TurnComplete bool          `json:"turn_complete"`
}

// ContentTurn is one text turn.
type ContentTurn struct {
	Role  string        `json:"role,omitempty"`
	Parts []ContentPart `json:"parts"`
}

// ContentPart is one part of a turn.
type ContentPart struct {
	Text string `json:"text"`
}

// Outbound status values, in the order a session moves through them.
const (
	StatusConnecting   = "connecting"
	StatusReady        = "ready"
	StatusListening    = "listening"
	StatusIdle         = "idle"
	StatusDisconnected = "disconnected"
)

// StatusMessage reports session lifecycle changes to the client.
type StatusMessage struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorMessage reports an error to the client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal,omitempty"`
}

// TranscriptMessage carries model text when no audio is synthesized for it.
type TranscriptMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TurnCompleteMessage signals the end of a model response turn.
type TurnCompleteMessage struct {
	Type string `json:"type"`
}

func newStatusMessage(status, message string) []byte {
	payload, _ := json.Marshal(StatusMessage{Type: "status", Status: status, Message: message})
	return payload
}

func newErrorMessage(message string, fatal bool) []byte {
	payload, _ := json.Marshal(ErrorMessage{Type: "error", Message: message, Fatal: fatal})
	return payload
}

func newTranscriptMessage(text string) []byte {
	payload, _ := json.Marshal(TranscriptMessage{Type: "transcript", Text: text})
	return payload
}

func newTurnCompleteMessage() []byte {
	payload, _ := json.Marshal(TurnCompleteMessage{Type: "turn_complete"})
	return payload
}
