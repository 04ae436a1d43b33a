package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

type Config struct {
	ListenAddr        string        `env:"LISTEN_ADDR,default=:7420" validate:"required"`
	ParticipantID     string        `env:"PARTICIPANT_ID"`
	DisplayName       string        `env:"DISPLAY_NAME"`
	LogLevel          string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	BroadcastCapacity int           `env:"BROADCAST_CAPACITY,default=100" validate:"min=1"`
	EventCapacity     int           `env:"EVENT_CAPACITY,default=256" validate:"min=1"`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE,default=65536" validate:"min=512"`
	WriteWait         time.Duration `env:"WRITE_WAIT,default=10s" validate:"min=1ms"`
	PongWait          time.Duration `env:"PONG_WAIT,default=60s" validate:"min=1ms"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"min=0"`
	MDNSEnabled       bool          `env:"MDNS_ENABLED,default=false"`
	MDNSService       string        `env:"MDNS_SERVICE,default=_liveshare._tcp"`
	MetricsEnabled    bool          `env:"METRICS_ENABLED,default=true"`
	Color             bool          `env:"COLOR,default=true"`
	CORSOrigins       string        `env:"CORS_ORIGINS,default=*"`
}

var validate = validator.New()

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	return FromEnviron()
}

func FromEnviron() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.ParticipantID == "" {
		cfg.ParticipantID = uuid.NewString()
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = defaultDisplayName()
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	return lo.Compact(lo.Map(strings.Split(c.CORSOrigins, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	}))
}

func defaultDisplayName() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "anonymous"
}
