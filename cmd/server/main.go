package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/sawti/sawti-server/adapters/gemini"
	"github.com/sawti/sawti-server/adapters/memory"
	sawtimongo "github.com/sawti/sawti-server/adapters/mongo"
	"github.com/sawti/sawti-server/adapters/tts"
	"github.com/sawti/sawti-server/domain/repositories"
	"github.com/sawti/sawti-server/internal/api"
	"github.com/sawti/sawti-server/internal/auth"
	"github.com/sawti/sawti-server/internal/config"
	"github.com/sawti/sawti-server/internal/metrics"
	"github.com/sawti/sawti-server/internal/relevance"
	"github.com/sawti/sawti-server/internal/websocket"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load .env when present
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded configuration from .env")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Live path: Vertex credentials and session factory
	var liveFactory repositories.UpstreamFactory
	if cfg.LiveEnabled() {
		creds, err := auth.NewGoogleCredentials(context.Background())
		if err != nil {
			if !cfg.FallbackEnabled() {
				logger.Fatal("No Google credentials and no fallback configured", zap.Error(err))
			}
			logger.Warn("Google credentials unavailable, running fallback only", zap.Error(err))
		} else {
			liveConfig := gemini.LiveConfig{
				ProjectID:            cfg.GoogleCloudProjectID,
				Region:               cfg.GoogleCloudRegion,
				Model:                cfg.LiveModel,
				VoiceName:            cfg.VoiceName,
				LanguageCode:         cfg.LanguageCode,
				SystemInstruction:    cfg.SystemInstruction,
				ResponseModalities:   cfg.ResponseModalities,
				BaseReconnectDelay:   cfg.BaseReconnectDelay,
				MaxReconnectAttempts: cfg.MaxReconnectAttempts,
			}
			liveFactory = func(handlers repositories.UpstreamHandlers) repositories.LiveUpstream {
				return gemini.NewLiveSession(liveConfig, creds, handlers, logger)
			}
		}
	}

	// TTS, shared by fallback and transcript synthesis
	var synthesizer repositories.TextToSpeech
	if ttsConfig := tts.NewElevenLabsConfigFromEnv(); ttsConfig.APIKey != "" {
		var err error
		synthesizer, err = tts.NewElevenLabsTTS(ttsConfig, logger)
		if err != nil {
			logger.Fatal("Invalid TTS configuration", zap.Error(err))
		}
	} else {
		logger.Warn("ELEVEN_LABS_API_KEY not set, synthesized audio disabled")
	}

	// Fallback path
	var fallbackFactory repositories.UpstreamFactory
	if cfg.FallbackEnabled() {
		fallbackConfig := gemini.FallbackConfig{
			APIKey:            cfg.GeminiAPIKey,
			Model:             cfg.FallbackModel,
			SystemInstruction: cfg.SystemInstruction,
			VoiceID:           cfg.TTSVoiceID,
		}
		fallbackFactory = func(handlers repositories.UpstreamHandlers) repositories.LiveUpstream {
			return gemini.NewFallbackClient(fallbackConfig, synthesizer, handlers, logger)
		}
	}

	// Conversation persistence: MongoDB when configured, memory otherwise
	var conversations repositories.ConversationRepository
	if cfg.MongoURI != "" {
		mongoClient, err := sawtimongo.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoClient.Close(ctx)
		}()
		conversations = sawtimongo.NewConversationRepository(mongoClient.Database)
	} else {
		conversations = memory.NewConversationRepository()
		logger.Info("MONGODB_URI not set, conversations kept in memory")
	}

	// WebSocket hub
	hub := websocket.NewHub(websocket.HubConfig{
		Live:                  liveFactory,
		Fallback:              fallbackFactory,
		TTS:                   synthesizer,
		SynthesizeTranscripts: !cfg.AudioResponsesEnabled(),
		VoiceID:               cfg.TTSVoiceID,
		Filter:                relevance.NewFilter(cfg.RelevanceEnabled),
		Conversations:         conversations,
		Metrics:               metrics.NewMetrics(),
		Language:              cfg.LanguageCode,
	}, logger)
	go hub.Run()

	// Optional JWT gate on /ws
	var authenticator *auth.Authenticator
	if cfg.JWTSecret != "" {
		authenticator = auth.NewAuthenticator(cfg.JWTSecret)
	}

	api.InitRoutes(e, hub, api.RouteConfig{
		Authenticator: authenticator,
		StaticDir:     cfg.StaticDir,
		Model:         cfg.LiveModel,
	}, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Voice session server started",
		zap.String("port", cfg.Port),
		zap.String("model", cfg.LiveModel),
		zap.String("voice", cfg.VoiceName),
		zap.String("language", cfg.LanguageCode),
		zap.Bool("liveEnabled", liveFactory != nil),
		zap.Bool("fallbackEnabled", fallbackFactory != nil))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
