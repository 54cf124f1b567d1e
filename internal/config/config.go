package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/satriahrh/papantulis/server/adapters/llm"
	"github.com/satriahrh/papantulis/server/adapters/mongo"
	"github.com/satriahrh/papantulis/server/adapters/search"
	"github.com/satriahrh/papantulis/server/adapters/storage"
	"github.com/satriahrh/papantulis/server/adapters/tts"
	"github.com/satriahrh/papantulis/server/internal/auth"
	"github.com/satriahrh/papantulis/server/internal/cluster"
)

// Config is the full server configuration
type Config struct {
	Port string
	Env  string

	Gemini     llm.GeminiConfig
	ElevenLabs tts.ElevenLabsConfig
	Unsplash   search.UnsplashConfig
	Snapshots  storage.S3Config
	Mongo      mongo.Config
	Auth       auth.Config

	// GeneratorURL points board ingest at a remote generator; empty means
	// the in-process one
	GeneratorURL string

	Cluster          cluster.Config
	SnapshotScale    float64
	NarrationTimeout time.Duration
	BoardIdleAfter   time.Duration
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	port := firstNonEmpty(strings.TrimSpace(os.Getenv("PORT")), "8080")
	port = strings.TrimPrefix(port, ":")

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:             port,
		Env:              env,
		Gemini:           llm.NewGeminiConfigFromEnv(),
		ElevenLabs:       tts.NewElevenLabsConfigFromEnv(),
		Unsplash:         search.NewUnsplashConfigFromEnv(),
		Snapshots:        storage.NewS3ConfigFromEnv(),
		Mongo:            mongo.NewConfigFromEnv(),
		Auth:             auth.NewConfigFromEnv(),
		GeneratorURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("GENERATOR_URL")), "/"),
		Cluster:          loadClusterConfig(),
		SnapshotScale:    parseFloat("SNAPSHOT_SCALE", 1),
		NarrationTimeout: parseDuration("NARRATION_TIMEOUT", 0),
		BoardIdleAfter:   parseDuration("BOARD_IDLE_AFTER", 0),
	}, nil
}

// IsLocal reports whether the server runs in a developer environment
func (c *Config) IsLocal() bool {
	return strings.EqualFold(c.Env, "local")
}

func loadClusterConfig() cluster.Config {
	defaults := cluster.DefaultConfig()
	return cluster.Config{
		Epsilon:   parseFloat("CLUSTER_EPSILON", defaults.Epsilon),
		MinPoints: parseInt("CLUSTER_MIN_POINTS", defaults.MinPoints),
		Margin:    parseFloat("CLUSTER_MARGIN", defaults.Margin),
	}
}

func parseFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func parseInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
