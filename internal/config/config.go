package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverRedis    = "redis"
)

type Config struct {
	BotToken        string        `envconfig:"BOT_TOKEN"`
	APIURL          string        `envconfig:"API_URL" default:"https://api.telegram.org"`
	SourceChannels  []string      `envconfig:"SOURCE_CHANNELS"`
	Destination     string        `envconfig:"DESTINATION"`
	LogChat         string        `envconfig:"LOG_CHAT"`
	StoreDriver     string        `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	NodeID          int64         `envconfig:"NODE_ID" default:"1"`
	Port            int           `envconfig:"PORT" default:"10000"`
	RateLimitMargin time.Duration `envconfig:"RATE_LIMIT_MARGIN" default:"1s"`
	AlbumWait       time.Duration `envconfig:"ALBUM_WAIT" default:"1500ms"`
	PollTimeout     time.Duration `envconfig:"POLL_TIMEOUT" default:"30s"`
	ResolveAttempts int           `envconfig:"RESOLVE_ATTEMPTS" default:"3"`
	Debug           bool          `envconfig:"DEBUG"`
}

// Load reads an optional .env file, then the LOOTSPY_* (or bare) environment,
// and validates everything the relay needs.
func Load(logger *log.Logger) (*Config, error) {
	cfg, err := read(logger)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Config loaded",
		zap.Int("sources", len(cfg.SourceChannels)),
		zap.String("store_driver", cfg.StoreDriver),
	)
	return cfg, nil
}

// LoadStore is Load for commands that only touch the reservation store.
func LoadStore(logger *log.Logger) (*Config, error) {
	cfg, err := read(logger)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(logger *log.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to load .env file", zap.Error(err))
	}

	var cfg Config
	if err := envconfig.Process("lootspy", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return errors.New("BOT_TOKEN is required")
	}
	c.SourceChannels = trimAll(c.SourceChannels)
	if len(c.SourceChannels) == 0 {
		return errors.New("SOURCE_CHANNELS is required")
	}
	c.Destination = strings.TrimSpace(c.Destination)
	if c.Destination == "" {
		return errors.New("DESTINATION is required")
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.ResolveAttempts < 1 {
		c.ResolveAttempts = 1
	}
	if c.RateLimitMargin < 0 {
		return errors.New("RATE_LIMIT_MARGIN must not be negative")
	}
	return nil
}

func (c *Config) ValidateStore() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %s", c.StoreDriver)
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for store driver redis")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// ParseChatRef turns "@name" or a numeric id into the form getChat expects.
// Anything that is not a number is treated as a username.
func ParseChatRef(raw string) string {
	raw = strings.TrimSpace(raw)
	if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return raw
	}
	if !strings.HasPrefix(raw, "@") {
		return "@" + raw
	}
	return raw
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
