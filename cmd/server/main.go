package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/halcyonlabs/murmur/server/adapters/llm"
	"github.com/halcyonlabs/murmur/server/adapters/mongo"
	"github.com/halcyonlabs/murmur/server/adapters/stt"
	"github.com/halcyonlabs/murmur/server/adapters/tts"
	"github.com/halcyonlabs/murmur/server/domain/repositories"
	"github.com/halcyonlabs/murmur/server/internal/api"
	"github.com/halcyonlabs/murmur/server/internal/auth"
	"github.com/halcyonlabs/murmur/server/internal/events"
	"github.com/halcyonlabs/murmur/server/internal/storage"
	"github.com/halcyonlabs/murmur/server/internal/websocket"
	"github.com/halcyonlabs/murmur/server/usecase"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	transcriber := buildTranscriber(logger)
	responder := buildResponder(logger)
	synthesizer := buildSynthesizer(logger)

	responsesDir := envOr("RESPONSES_DIR", "responses")
	store, err := storage.NewResponseStore(responsesDir, logger)
	if err != nil {
		logger.Fatal("Failed to create response store", zap.Error(err))
	}
	library := storage.NewLibrary(responsesDir)

	var conversations repositories.ConversationRepository
	var mongoClient *mongo.Client
	if os.Getenv("MONGODB_URI") != "" {
		mongoClient, err = mongo.NewClient(logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		conversations = mongo.NewConversationRepository(mongoClient.Database)
	} else {
		logger.Info("MONGODB_URI not set, conversation history disabled")
	}

	publisher := events.New(events.Config{
		Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
		Topic:   os.Getenv("KAFKA_TOPIC"),
	}, logger)

	service := usecase.NewConversationService(
		transcriber, responder, synthesizer,
		store, conversations, publisher, logger)
	if prompt := os.Getenv("SYSTEM_PROMPT"); prompt != "" {
		service.SetSystemPrompt(prompt)
	}

	authenticator, err := auth.NewAuthenticator()
	if err != nil {
		logger.Fatal("Failed to initialize authenticator", zap.Error(err))
	}

	hub := websocket.NewHub(service, envOr("RECORDINGS_DIR", "recordings"), logger)
	go hub.Run()

	api.InitRoutes(e, api.Deps{
		Hub:           hub,
		Authenticator: authenticator,
		Library:       library,
		Service:       service,
		Logger:        logger,
	})

	port := envOr("PORT", "8080")

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logger.Error("Failed to close Kafka publisher", zap.Error(err))
	}
	if mongoClient != nil {
		if err := mongoClient.Close(ctx); err != nil {
			logger.Error("Failed to close MongoDB connection", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

// buildTranscriber prefers Deepgram, then Google, then the mock.
func buildTranscriber(logger *zap.Logger) repositories.Transcriber {
	if apiKey := os.Getenv("DEEPGRAM_API_KEY"); apiKey != "" {
		transcriber, err := stt.NewDeepgramTranscriber(stt.DeepgramConfig{
			APIKey: apiKey,
			Model:  os.Getenv("DEEPGRAM_MODEL"),
		}, logger)
		if err == nil {
			logger.Info("Using Deepgram transcriber")
			return transcriber
		}
		logger.Warn("Failed to initialize Deepgram transcriber", zap.Error(err))
	}
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		logger.Info("Using Google Cloud transcriber")
		return stt.NewGoogleTranscriber(os.Getenv("SPEECH_LANGUAGE"))
	}
	logger.Warn("No speech service configured, using mock transcriber")
	return stt.NewMockTranscriber()
}

func buildResponder(logger *zap.Logger) repositories.Responder {
	if os.Getenv("GEMINI_API_KEY") != "" {
		responder, err := llm.NewGeminiResponder(llm.GeminiConfig{
			Model: os.Getenv("GEMINI_MODEL"),
		}, logger)
		if err == nil {
			logger.Info("Using Gemini responder")
			return responder
		}
		logger.Warn("Failed to initialize Gemini responder", zap.Error(err))
	}
	logger.Warn("No language model configured, using mock responder")
	return llm.NewMockResponder()
}

// buildSynthesizer assembles the fallback chain: ElevenLabs first,
// a local command second, the mock only when nothing else exists.
func buildSynthesizer(logger *zap.Logger) repositories.Synthesizer {
	var chain []repositories.Synthesizer

	if os.Getenv("ELEVEN_LABS_API_KEY") != "" {
		synthesizer, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err == nil {
			logger.Info("Using ElevenLabs synthesizer")
			chain = append(chain, synthesizer)
		} else {
			logger.Warn("Failed to initialize ElevenLabs synthesizer", zap.Error(err))
		}
	}

	if command := os.Getenv("LOCAL_TTS_COMMAND"); command != "" {
		local, err := tts.NewLocalTTS(command, splitNonEmpty(os.Getenv("LOCAL_TTS_ARGS")), "", logger)
		if err == nil {
			logger.Info("Using local synthesizer", zap.String("command", command))
			chain = append(chain, local)
		} else {
			logger.Warn("Failed to initialize local synthesizer", zap.Error(err))
		}
	}

	if len(chain) == 0 {
		logger.Warn("No synthesizer configured, using mock synthesizer")
		return tts.NewMockTTS()
	}
	if len(chain) == 1 {
		return chain[0]
	}
	return tts.NewChain(logger, chain...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
