package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sawti/sawti-server/internal/auth"
	"github.com/sawti/sawti-server/internal/websocket"
	"github.com/sawti/sawti-server/pkg/audio"
)

// RouteConfig carries the optional pieces of the HTTP surface.
type RouteConfig struct {
	// Authenticator gates /ws when non-nil; without it any client may
	// connect.
	Authenticator *auth.Authenticator

	// StaticDir serves the browser frontend when non-empty.
	StaticDir string

	// Model is reported by /health.
	Model string
}

// InitRoutes initializes all API routes.
func InitRoutes(e *echo.Echo, hub *websocket.Hub, config RouteConfig, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:           "ok",
			Service:          "sawti-server",
			Model:            config.Model,
			InputSampleRate:  audio.InputSampleRate,
			OutputSampleRate: audio.OutputSampleRate,
			ActiveSessions:   hub.SessionCount(),
		})
	})

	// Prometheus metrics
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Voice session endpoint
	e.GET("/ws", func(c echo.Context) error {
		return websocketSession(hub, c, config.Authenticator, logger)
	})

	// Browser frontend
	if config.StaticDir != "" {
		e.Static("/", config.StaticDir)
	}
}

// websocketSession optionally validates a session token, then upgrades.
func websocketSession(hub *websocket.Hub, c echo.Context, authenticator *auth.Authenticator, logger *zap.Logger) error {
	sessionID := uuid.NewString()

	if authenticator != nil {
		token := bearerToken(c)
		if token == "" {
			logger.Warn("WebSocket connection rejected: missing token")
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "Session token is required",
			})
		}

		claims, err := authenticator.ValidateToken(token)
		if err != nil {
			logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired session token",
			})
		}
		if claims.ClientID != "" {
			sessionID = claims.ClientID + ":" + sessionID
		}
	}

	return websocket.HandleWebSocket(hub, c, sessionID, logger)
}

// bearerToken extracts the token from the Authorization header or, for
// browser WebSocket clients that cannot set headers, the token query
// parameter.
func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return c.QueryParam("token")
}
