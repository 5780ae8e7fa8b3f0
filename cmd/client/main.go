// Terminal voice client: captures microphone audio, streams it to the
// session server, and plays the model's replies. Typing a line sends it as
// a text turn. Speaking while the model is talking flushes local playback.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sawti/sawti-server/pkg/audio"
	"github.com/sawti/sawti-server/pkg/audio/portaudio"
)

const (
	captureFrameSize = 1024
	// RMS level above which speech is assumed while audio is playing.
	bargeInThreshold = 0.1
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "server websocket URL")
	token := flag.String("token", "", "session token, when the server requires one")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	url := *addr
	if *token != "" {
		url += "?token=" + *token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		logger.Fatal("Failed to connect", zap.String("url", *addr), zap.Error(err))
	}
	defer conn.Close()

	// Serializes writes from the capture callback, stdin reader and
	// shutdown path.
	var writeMu sync.Mutex
	writeJSON := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}
	writeBinary := func(payload []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.BinaryMessage, payload)
	}

	// Playback of 24 kHz model audio.
	renderer, err := portaudio.NewRenderer(audio.OutputSampleRate)
	if err != nil {
		logger.Fatal("Failed to open audio output", zap.Error(err))
	}
	defer renderer.Close()
	queue := audio.NewPlaybackQueue(renderer)

	// Capture at 16 kHz with local barge-in.
	capture, err := audio.NewCaptureStream(portaudio.NewSource(), audio.CaptureConfig{
		SampleRate: audio.InputSampleRate,
		FrameSize:  captureFrameSize,
		OnVolume: func(level float64) {
			if level > bargeInThreshold && queue.Playing() {
				queue.Flush()
			}
		},
		OnFrame: func(pcm []byte) {
			if err := writeBinary(pcm); err != nil {
				logger.Warn("Failed to send audio frame", zap.Error(err))
			}
		},
	})
	if err != nil {
		logger.Fatal("Failed to open audio input", zap.Error(err))
	}
	defer capture.Close()

	// Server frames: binary is model audio, text is status/transcripts.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch messageType {
			case websocket.BinaryMessage:
				queue.Enqueue(payload)
			case websocket.TextMessage:
				printServerMessage(payload)
			}
		}
	}()

	if err := writeJSON(map[string]string{"type": "start_listening"}); err != nil {
		logger.Fatal("Failed to start session", zap.Error(err))
	}
	if err := capture.Start(); err != nil {
		logger.Fatal("Failed to start capture", zap.Error(err))
	}

	fmt.Println("Speak, or type a question and press enter. Ctrl+C to quit.")

	// Typed lines become text turns.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			msg := map[string]interface{}{
				"type": "client_content",
				"client_content": map[string]interface{}{
					"turns": []map[string]interface{}{
						{"role": "user", "parts": []map[string]string{{"text": line}}},
					},
					"turn_complete": true,
				},
			}
			if err := writeJSON(msg); err != nil {
				logger.Warn("Failed to send text turn", zap.Error(err))
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case <-done:
	}

	capture.Stop()
	queue.Flush()
	_ = writeJSON(map[string]string{"type": "stop_listening"})
	writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	writeMu.Unlock()
}

func printServerMessage(payload []byte) {
	var msg struct {
		Type    string `json:"type"`
		Status  string `json:"status"`
		Message string `json:"message"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	switch msg.Type {
	case "status":
		fmt.Printf("[%s] %s\n", msg.Status, msg.Message)
	case "error":
		fmt.Printf("[error] %s\n", msg.Message)
	case "transcript":
		fmt.Printf("> %s\n", msg.Text)
	case "turn_complete":
		fmt.Println("---")
	}
}
