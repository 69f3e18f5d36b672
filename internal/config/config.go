package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all process-wide settings, parsed once at startup.
type Config struct {
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"host=postgres user=postgres password=postgres dbname=chestscan port=5432 sslmode=disable"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"redis:6379"`

	// ModelServerURL points at the TensorFlow Serving instance hosting the
	// pretrained classifier; ModelName selects the served model.
	ModelServerURL string `env:"MODEL_SERVER_URL" envDefault:"http://tf-serving:8501"`
	ModelName      string `env:"MODEL_NAME" envDefault:"vgg19_covid"`

	UploadDir string `env:"UPLOAD_DIR" envDefault:"uploads"`

	SessionSecret string        `env:"SESSION_SECRET" envDefault:"dev-secret"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	InferenceTimeout     time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"30s"`
	InferenceConcurrency int           `env:"INFERENCE_CONCURRENCY" envDefault:"4"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
