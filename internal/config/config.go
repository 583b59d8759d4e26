package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type ChatConfig struct {
	// MaxMessageBytes caps the body of one chat message.
	MaxMessageBytes int `yaml:"max_message_bytes"`
	// RateLimit / RateWindow bound messages per sender per window.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
	// AcceptLockTTL bounds how long the active-slot lock may be held if
	// an accept call dies mid-flight.
	AcceptLockTTL time.Duration `yaml:"accept_lock_ttl"`
	// SweepInterval drives the expiry sweep that auto-ends sessions
	// whose purchased time ran out.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// AdminIDs receive the "ringing" side-channel notifications.
	AdminIDs []string `yaml:"admin_ids"`
}

type OrdersConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
	// ChatIDs maps platform user ids to telegram chat ids for the
	// notification side-channel. Users without a mapping are skipped.
	ChatIDs map[string]int64 `yaml:"chat_ids"`
}

type WebConfig struct {
	Port         int           `yaml:"port"`
	AdminAPIKey  string        `yaml:"admin_api_key"`
	JWTSecret    string        `yaml:"jwt_secret"`
	SecureCookie bool          `yaml:"secure_cookie"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	// PaymentCallbackPath is where the order subsystem posts
	// payment-confirmed events.
	PaymentCallbackPath string `yaml:"payment_callback_path"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Chat     ChatConfig     `yaml:"chat"`
	Orders   OrdersConfig   `yaml:"orders"`
	Telegram TelegramConfig `yaml:"telegram"`
	Web      WebConfig      `yaml:"web"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Chat.MaxMessageBytes <= 0 {
		cfg.Chat.MaxMessageBytes = 4096
	}
	if cfg.Chat.RateLimit <= 0 {
		cfg.Chat.RateLimit = 20
	}
	if cfg.Chat.RateWindow <= 0 {
		cfg.Chat.RateWindow = time.Minute
	}
	if cfg.Chat.AcceptLockTTL <= 0 {
		cfg.Chat.AcceptLockTTL = 10 * time.Second
	}
	if cfg.Chat.SweepInterval <= 0 {
		cfg.Chat.SweepInterval = 30 * time.Second
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.SessionTTL <= 0 {
		cfg.Web.SessionTTL = 30 * time.Minute
	}
	if cfg.Web.PaymentCallbackPath == "" {
		cfg.Web.PaymentCallbackPath = "/api/v1/payment/confirmed"
	}
	if cfg.Orders.Timeout <= 0 {
		cfg.Orders.Timeout = 10 * time.Second
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if len(cfg.Chat.AdminIDs) == 0 {
		return nil, errors.New("chat.admin_ids is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
