package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	ChannelLog   = "log"
	ChannelQueue = "queue"

	FeedOff   = "off"
	FeedLocal = "local"
	FeedRedis = "redis"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL  string `yaml:"database_url" env:"DATABASE_URL"`
	StoreBackend string `yaml:"store_backend" env:"STORE_BACKEND" envDefault:"postgres"`
	HTTPPort     string `yaml:"http_port" env:"HTTP_PORT" envDefault:"8080"`
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL" envDefault:"info"`

	// Redis Config, пустой адрес отключает Redis
	RedisAddr       string        `yaml:"redis_addr" env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass       string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB         int           `yaml:"redis_db" env:"REDIS_DB" envDefault:"0"`
	HistoryCacheTTL time.Duration `yaml:"history_cache_ttl" env:"HISTORY_CACHE_TTL" envDefault:"5m"`

	// Notification Config
	NotificationChannel string        `yaml:"notification_channel" env:"NOTIFICATION_CHANNEL" envDefault:"log"`
	WebhookURL          string        `yaml:"webhook_url" env:"WEBHOOK_URL"`
	WebhookSecret       string        `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
	WebhookTimeout      time.Duration `yaml:"webhook_timeout" env:"WEBHOOK_TIMEOUT" envDefault:"5s"`

	// Responder dashboard
	PollInterval       time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL" envDefault:"5s"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout" env:"SESSION_IDLE_TIMEOUT" envDefault:"2m"`
	// ChangeFeed включает досрочный опрос по сигналу об изменении очереди.
	// По умолчанию выключено: изменения видны ответчику только на следующем тике.
	ChangeFeed string `yaml:"change_feed" env:"CHANGE_FEED" envDefault:"off"`

	// Location
	LocationSampleInterval time.Duration `yaml:"location_sample_interval" env:"LOCATION_SAMPLE_INTERVAL" envDefault:"30s"`
	LocationTimeout        time.Duration `yaml:"location_timeout" env:"LOCATION_TIMEOUT" envDefault:"10s"`
	LocationProviderURL    string        `yaml:"location_provider_url" env:"LOCATION_PROVIDER_URL"`
	DeviceID               string        `yaml:"device_id" env:"DEVICE_ID" envDefault:"default"`
	FallbackLat            float64       `yaml:"fallback_lat" env:"FALLBACK_LAT" envDefault:"14.5995"`
	FallbackLng            float64       `yaml:"fallback_lng" env:"FALLBACK_LNG" envDefault:"120.9842"`

	// API Keys for authentication
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		StoreBackend:           BackendPostgres,
		HTTPPort:               "8080",
		LogLevel:               "info",
		RedisAddr:              "localhost:6379",
		HistoryCacheTTL:        5 * time.Minute,
		NotificationChannel:    ChannelLog,
		WebhookTimeout:         5 * time.Second,
		PollInterval:           5 * time.Second,
		SessionIdleTimeout:     2 * time.Minute,
		ChangeFeed:             FeedOff,
		LocationSampleInterval: 30 * time.Second,
		LocationTimeout:        10 * time.Second,
		DeviceID:               "default",
		FallbackLat:            14.5995,
		FallbackLng:            120.9842,
	}
}

// LoadConfig загружает конфигурацию из YAML файла (CONFIG_FILE), .env файла и переменных окружения.
// Переменные окружения имеют приоритет над файлом.
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", cfg.StoreBackend))
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPass = getEnv("REDIS_PASSWORD", cfg.RedisPass)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)
	cfg.HistoryCacheTTL = getEnvAsDuration("HISTORY_CACHE_TTL", cfg.HistoryCacheTTL)
	cfg.NotificationChannel = strings.ToLower(getEnv("NOTIFICATION_CHANNEL", cfg.NotificationChannel))
	cfg.WebhookURL = getEnv("WEBHOOK_URL", cfg.WebhookURL)
	cfg.WebhookSecret = getEnv("WEBHOOK_SECRET", cfg.WebhookSecret)
	cfg.WebhookTimeout = getEnvAsDuration("WEBHOOK_TIMEOUT", cfg.WebhookTimeout)
	cfg.PollInterval = getEnvAsDuration("POLL_INTERVAL", cfg.PollInterval)
	cfg.SessionIdleTimeout = getEnvAsDuration("SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout)
	cfg.ChangeFeed = strings.ToLower(getEnv("CHANGE_FEED", cfg.ChangeFeed))
	cfg.LocationSampleInterval = getEnvAsDuration("LOCATION_SAMPLE_INTERVAL", cfg.LocationSampleInterval)
	cfg.LocationTimeout = getEnvAsDuration("LOCATION_TIMEOUT", cfg.LocationTimeout)
	cfg.LocationProviderURL = getEnv("LOCATION_PROVIDER_URL", cfg.LocationProviderURL)
	cfg.DeviceID = getEnv("DEVICE_ID", cfg.DeviceID)
	cfg.FallbackLat = getEnvAsFloat("FALLBACK_LAT", cfg.FallbackLat)
	cfg.FallbackLng = getEnvAsFloat("FALLBACK_LNG", cfg.FallbackLng)

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.NotificationChannel {
	case ChannelLog:
	case ChannelQueue:
		if c.RedisAddr == "" {
			return fmt.Errorf("NOTIFICATION_CHANNEL=queue requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unsupported NOTIFICATION_CHANNEL %q", c.NotificationChannel)
	}

	switch c.ChangeFeed {
	case FeedOff, FeedLocal:
	case FeedRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("CHANGE_FEED=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unsupported CHANGE_FEED %q", c.ChangeFeed)
	}

	if c.PollInterval <= 0 || c.LocationSampleInterval <= 0 || c.LocationTimeout <= 0 {
		return fmt.Errorf("poll and location intervals must be positive")
	}
	return nil
}

// loadFile читает YAML файл поверх значений по умолчанию
func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}
	return nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat возвращает значение переменной окружения как float64 или значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
