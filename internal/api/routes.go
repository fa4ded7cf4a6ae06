package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/halcyonlabs/murmur/server/internal/audio"
	"github.com/halcyonlabs/murmur/server/internal/auth"
	"github.com/halcyonlabs/murmur/server/internal/storage"
	"github.com/halcyonlabs/murmur/server/internal/websocket"
	"github.com/halcyonlabs/murmur/server/usecase"
)

// maxUploadBytes bounds one-shot file processing uploads.
const maxUploadBytes = 10 << 20

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Hub           *websocket.Hub
	Authenticator *auth.Authenticator
	Library       *storage.Library
	Service       *usecase.ConversationService
	Logger        *zap.Logger
}

// InitRoutes registers all HTTP endpoints.
func InitRoutes(e *echo.Echo, deps Deps) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "murmur-server",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")

	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, deps)
	})

	// Browse API for stored exchanges.
	v1.GET("/sessions", func(c echo.Context) error {
		return listSessions(c, deps)
	})
	v1.GET("/sessions/:id", func(c echo.Context) error {
		return getSession(c, deps)
	})
	v1.GET("/responses/text/:id/:file", func(c echo.Context) error {
		return getText(c, deps)
	})
	v1.GET("/responses/audio/:id/:file", func(c echo.Context) error {
		return getAudio(c, deps)
	})
	v1.GET("/responses/metadata/:id/:file", func(c echo.Context) error {
		return getMetadata(c, deps)
	})

	v1.POST("/process-file", func(c echo.Context) error {
		return processFile(c, deps)
	})

	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(c, deps)
	})
}

func deviceAuth(c echo.Context, deps Deps) error {
	var req DeviceAuthRequest
	if err := c.Bind(&req); err != nil {
		deps.Logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.DeviceID == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Device ID and secret key are required",
		})
	}

	sharedSecret := os.Getenv("DEVICE_SECRET_KEY")
	if sharedSecret == "" || req.SecretKey != sharedSecret {
		deps.Logger.Warn("Device authentication failed",
			zap.String("device_id", req.DeviceID))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, err := deps.Authenticator.GenerateDeviceToken(req.DeviceID)
	if err != nil {
		deps.Logger.Error("Failed to generate device token",
			zap.String("device_id", req.DeviceID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	deps.Logger.Info("Device authenticated", zap.String("device_id", req.DeviceID))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		DeviceID:  req.DeviceID,
	})
}

func listSessions(c echo.Context, deps Deps) error {
	sessions, err := deps.Library.ListSessions()
	if err != nil {
		deps.Logger.Error("Failed to list sessions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func getSession(c echo.Context, deps Deps) error {
	detail, err := deps.Library.GetSession(c.Param("id"))
	if err != nil {
		return libraryError(c, deps, err)
	}
	if detail == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Session not found",
		})
	}
	return c.JSON(http.StatusOK, detail)
}

func getText(c echo.Context, deps Deps) error {
	data, err := deps.Library.ReadText(c.Param("id"), c.Param("file"))
	if err != nil {
		return libraryError(c, deps, err)
	}
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", data)
}

func getAudio(c echo.Context, deps Deps) error {
	data, mimeType, err := deps.Library.ReadAudio(c.Param("id"), c.Param("file"))
	if err != nil {
		return libraryError(c, deps, err)
	}
	return c.Blob(http.StatusOK, mimeType, data)
}

func getMetadata(c echo.Context, deps Deps) error {
	meta, err := deps.Library.ReadMetadata(c.Param("id"), c.Param("file"))
	if err != nil {
		return libraryError(c, deps, err)
	}
	return c.JSON(http.StatusOK, meta)
}

func libraryError(c echo.Context, deps Deps, err error) error {
	if errors.Is(err, storage.ErrOutsideLibrary) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_path",
			Message: "Invalid session or file name",
		})
	}
	if errors.Is(err, os.ErrNotExist) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Response not found",
		})
	}
	deps.Logger.Error("Response library read failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
}

// processFile runs an uploaded recording through the same pipeline a
// live websocket session uses, without a device connection.
func processFile(c echo.Context, deps Deps) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_file",
			Message: "Multipart form field 'file' is required",
		})
	}
	if fileHeader.Size > maxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "file_too_large",
			Message: "Uploaded file exceeds the processing limit",
		})
	}

	f, err := fileHeader.Open()
	if err != nil {
		deps.Logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	defer f.Close()

	recording, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		deps.Logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	if len(recording) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "empty_file",
			Message: "Uploaded file is empty",
		})
	}

	format := audio.DetectFormat(recording)
	ctx := c.Request().Context()

	ex, err := deps.Service.Reply(ctx, recording, format)
	if err != nil {
		deps.Logger.Error("Failed to process uploaded file", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "processing_failed",
			Message: "Failed to process recording",
		})
	}

	if replyAudio, synthErr := deps.Service.Synthesize(ctx, ex.Reply); synthErr == nil {
		ex.ReplyAudio = replyAudio
		ex.ReplyFormat = audio.DetectFormat(replyAudio)
	} else {
		deps.Logger.Warn("Synthesis failed for uploaded file", zap.Error(synthErr))
	}

	deps.Service.Archive(ctx, "api:"+c.RealIP(), ex)

	return c.JSON(http.StatusOK, ProcessFileResponse{
		Transcript: ex.Transcript,
		Reply:      ex.Reply,
		Format:     format.String(),
		AudioBytes: len(ex.ReplyAudio),
	})
}

// websocketWithAuth upgrades a device connection. The device presents
// its JWT as a Bearer header or a token query parameter; bare
// device_id access stays available behind ALLOW_INSECURE_WS for bench
// firmware that has no auth flow yet.
func websocketWithAuth(c echo.Context, deps Deps) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		if os.Getenv("ALLOW_INSECURE_WS") == "true" {
			deviceID := c.QueryParam("device_id")
			if deviceID == "" {
				deviceID = "device-" + c.RealIP()
			}
			deps.Logger.Warn("Accepting unauthenticated WebSocket connection",
				zap.String("device_id", deviceID))
			return websocket.ServeWS(deps.Hub, c, deviceID, deps.Logger)
		}
		deps.Logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := deps.Authenticator.ValidateToken(token)
	if err != nil {
		deps.Logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}
	if claims.Role != "device" {
		deps.Logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only device tokens may open WebSocket connections",
		})
	}

	deps.Logger.Info("WebSocket connection authenticated",
		zap.String("device_id", claims.DeviceID))

	return websocket.ServeWS(deps.Hub, c, claims.DeviceID, deps.Logger)
}
