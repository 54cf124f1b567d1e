package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/adapters/generator"
	"github.com/satriahrh/papantulis/server/adapters/llm"
	"github.com/satriahrh/papantulis/server/adapters/memory"
	"github.com/satriahrh/papantulis/server/adapters/mongo"
	"github.com/satriahrh/papantulis/server/adapters/raster"
	"github.com/satriahrh/papantulis/server/adapters/render"
	"github.com/satriahrh/papantulis/server/adapters/search"
	"github.com/satriahrh/papantulis/server/adapters/storage"
	"github.com/satriahrh/papantulis/server/adapters/stt"
	"github.com/satriahrh/papantulis/server/adapters/tts"
	"github.com/satriahrh/papantulis/server/domain/repositories"
	"github.com/satriahrh/papantulis/server/internal/api"
	"github.com/satriahrh/papantulis/server/internal/auth"
	"github.com/satriahrh/papantulis/server/internal/config"
	"github.com/satriahrh/papantulis/server/internal/websocket"
	"github.com/satriahrh/papantulis/server/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger := newLogger(cfg)
	defer logger.Sync()

	ctx := context.Background()

	// Initialize adapters
	model := newLLM(ctx, cfg, logger)
	speechToText, closeSTT := newSpeechToText(ctx, logger)
	defer closeSTT()
	textToSpeech := newTextToSpeech(cfg, logger)

	imageSearch, err := search.NewUnsplashSearch(cfg.Unsplash, logger)
	if err != nil {
		logger.Fatal("Failed to initialize image search", zap.Error(err))
	}

	boardRepo, closeRepo := newBoardRepository(ctx, cfg, logger)
	defer closeRepo()

	uploader := newSnapshotUploader(cfg, logger)
	snapshotScale := cfg.SnapshotScale
	snapshotter := func(strokes repositories.StrokeStore) repositories.Snapshotter {
		return raster.NewStrokeSnapshotter(strokes, snapshotScale, logger)
	}

	tokens, err := auth.NewIssuer(authConfig(cfg, logger))
	if err != nil {
		logger.Fatal("Failed to initialize token issuer", zap.Error(err))
	}

	// Initialize usecase services
	language := usecase.NewLanguageSetting()
	generatorService := usecase.NewGeneratorService(model, imageSearch, textToSpeech, language, logger)
	promptService := usecase.NewPromptService(speechToText, model, language, logger)

	boardConfig := usecase.DefaultBoardConfig()
	boardConfig.Cluster = cfg.Cluster
	boardService := usecase.NewBoardService(
		boardRepo,
		render.NewMarkdownRenderer(logger),
		imageSearch,
		uploader,
		snapshotter,
		newStreamSource(cfg, generatorService, logger),
		language,
		boardConfig,
		logger,
	)

	cleanup := usecase.NewBoardCleanupService(boardRepo, cfg.BoardIdleAfter, 0, logger)
	cleanup.Start()
	defer cleanup.Stop()

	// Initialize WebSocket hub with the board service
	hub := websocket.NewHub(boardService, cfg.NarrationTimeout, logger)
	go hub.Run()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, api.Services{
		Generator: generatorService,
		Prompts:   promptService,
		Boards:    boardService,
		Language:  language,
		Search:    imageSearch,
		Tokens:    tokens,
		Hub:       hub,
	}, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) *zap.Logger {
	if cfg.IsLocal() {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

func newLLM(ctx context.Context, cfg *config.Config, logger *zap.Logger) repositories.LargeLanguageModel {
	if err := llm.ValidateGeminiConfig(cfg.Gemini); err != nil {
		logger.Warn("Gemini not configured, using mock model", zap.Error(err))
		return llm.NewMockLLM()
	}
	model, err := llm.NewGeminiLLM(ctx, cfg.Gemini, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini", zap.Error(err))
	}
	return model
}

func newSpeechToText(ctx context.Context, logger *zap.Logger) (repositories.SpeechToText, func()) {
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		logger.Warn("Google credentials not set, using mock speech-to-text")
		return stt.NewMockSpeechToText(logger), func() {}
	}
	client, err := stt.NewGoogleSpeechToText(ctx, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Google speech-to-text", zap.Error(err))
	}
	return client, func() { client.Close() }
}

func newTextToSpeech(cfg *config.Config, logger *zap.Logger) repositories.TextToSpeech {
	if err := tts.ValidateElevenLabsConfig(cfg.ElevenLabs); err != nil {
		logger.Warn("Eleven Labs not configured, narration will be text only", zap.Error(err))
		return nil
	}
	client, err := tts.NewElevenLabsTTS(cfg.ElevenLabs, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Eleven Labs", zap.Error(err))
	}
	return client
}

func newBoardRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.BoardRepository, func()) {
	if cfg.Mongo.URI == "" {
		logger.Warn("MONGODB_URI not set, boards are kept in memory")
		return memory.NewBoardRepository(), func() {}
	}

	client, err := mongo.NewClient(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	return mongo.NewBoardRepository(client.Database, logger), func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Error("Failed to close MongoDB connection", zap.Error(err))
		}
	}
}

func newSnapshotUploader(cfg *config.Config, logger *zap.Logger) repositories.SnapshotUploader {
	if cfg.Snapshots.Endpoint == "" {
		logger.Info("No snapshot bucket configured, snapshots are stored inline")
		return storage.InlineSnapshotStore{}
	}
	store, err := storage.NewS3SnapshotStore(cfg.Snapshots, logger)
	if err != nil {
		logger.Fatal("Failed to initialize snapshot store", zap.Error(err))
	}
	return store
}

func newStreamSource(cfg *config.Config, local *usecase.GeneratorService, logger *zap.Logger) repositories.StreamSource {
	if cfg.GeneratorURL == "" {
		return local
	}
	source, err := generator.NewHTTPSource(cfg.GeneratorURL, logger)
	if err != nil {
		logger.Fatal("Invalid GENERATOR_URL", zap.Error(err))
	}
	logger.Info("Board ingest uses remote generator", zap.String("url", cfg.GeneratorURL))
	return source
}

func authConfig(cfg *config.Config, logger *zap.Logger) auth.Config {
	authCfg := cfg.Auth
	if authCfg.Secret == "" && cfg.IsLocal() {
		authCfg.Secret = uuid.NewString()
		logger.Warn("JWT_SECRET not set, using an ephemeral secret; board tokens will not survive a restart")
	}
	return authCfg
}
