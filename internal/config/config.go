package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string   `env:"APP_ENV" envDefault:"development"`
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASS"`
	DBName     string `env:"DB_NAME" envDefault:"realmkeeper"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"realmkeeper.db"`

	RedisURL string `env:"REDIS_URL"`

	MeiliSearchHost string `env:"MEILISEARCH_HOST"`
	MeiliMasterKey  string `env:"MEILI_MASTER_KEY"`

	CloudinaryURL          string `env:"CLOUDINARY_URL"`
	CloudinaryUploadFolder string `env:"CLOUDINARY_UPLOAD_FOLDER" envDefault:"realmkeeper"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"72h"`

	RateLimitJoin   time.Duration `env:"RATE_LIMIT_JOIN" envDefault:"3s"`
	EventBufferSize int           `env:"EVENT_BUFFER_SIZE" envDefault:"32"`
	EventHeartbeat  time.Duration `env:"EVENT_HEARTBEAT" envDefault:"25s"`

	OrphanCleanupSchedule string        `env:"ORPHAN_CLEANUP_SCHEDULE" envDefault:"@every 12h"`
	OrphanMaxAge          time.Duration `env:"ORPHAN_MAX_AGE" envDefault:"24h"`
}

// Load reads .env when present and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
		c.JWTSecret = "dev-secret"
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("EVENT_BUFFER_SIZE must be positive")
	}
	for i, origin := range c.AllowedOrigins {
		c.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	return nil
}
