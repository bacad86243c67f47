package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "Asia/Tokyo"
	configPathEnv     = "CATALOGPOSTER_CONFIG"
	dataDirEnv        = "CATALOGPOSTER_DATA_DIR"
	logLevelEnv       = "LOG_LEVEL"
	controlAddrEnv    = "CONTROL_ADDR"
	chatGPTAPIKeyEnv  = "CHATGPT_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds process-level settings. Per-job settings live in the settings store.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Storage       StorageConfig      `yaml:"storage"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Catalog       CatalogConfig      `yaml:"catalog"`
	HTTP          HTTPConfig         `yaml:"http"`
	Control       ControlConfig      `yaml:"control"`
	Notifications NotificationConfig `yaml:"notifications"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
}

// LoggingConfig selects the console level and event retention.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	RetentionDays int    `yaml:"retentionDays"`
}

// StorageConfig points at on-disk state.
type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

// SettingsDir holds settings.json and its backups.
func (s StorageConfig) SettingsDir() string { return filepath.Join(s.DataDir, "config") }

// FloorCachePath is the floor list cache file.
func (s StorageConfig) FloorCachePath() string {
	return filepath.Join(s.DataDir, "cache", "floors.json")
}

// EventsDBPath is the SQLite event log.
func (s StorageConfig) EventsDBPath() string {
	return filepath.Join(s.DataDir, "logs", "logs.db")
}

// SchedulerConfig defines the timezone the hourly plan is evaluated in.
type SchedulerConfig struct {
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CatalogConfig groups catalog endpoints and pacing.
type CatalogConfig struct {
	BaseURL        string  `yaml:"baseUrl"`
	MovieBaseURL   string  `yaml:"movieBaseUrl"`
	RequestsPerSec float64 `yaml:"requestsPerSec"`
	FloorCacheTTL  string  `yaml:"floorCacheTtl"`
}

// FloorTTL parses FloorCacheTTL, falling back to 24h.
func (c CatalogConfig) FloorTTL() time.Duration {
	if d, err := time.ParseDuration(c.FloorCacheTTL); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// HTTPConfig configures outbound clients.
type HTTPConfig struct {
	Timeout string `yaml:"timeout"`
}

// RequestTimeout parses Timeout, falling back to 30s.
func (h HTTPConfig) RequestTimeout() time.Duration {
	if d, err := time.ParseDuration(h.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// ControlConfig configures the local control server.
type ControlConfig struct {
	Addr string `yaml:"addr"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// ChatGPTConfig defines how to contact the ChatGPT API for [llm_*] placeholders.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dataDirEnv); v != "" {
		c.Storage.DataDir = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(controlAddrEnv); v != "" {
		c.Control.Addr = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.RetentionDays > 0 {
		base.Logging.RetentionDays = override.Logging.RetentionDays
	}

	if override.Storage.DataDir != "" {
		base.Storage.DataDir = override.Storage.DataDir
	}

	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Catalog.BaseURL != "" {
		base.Catalog.BaseURL = override.Catalog.BaseURL
	}
	if override.Catalog.MovieBaseURL != "" {
		base.Catalog.MovieBaseURL = override.Catalog.MovieBaseURL
	}
	if override.Catalog.RequestsPerSec > 0 {
		base.Catalog.RequestsPerSec = override.Catalog.RequestsPerSec
	}
	if override.Catalog.FloorCacheTTL != "" {
		base.Catalog.FloorCacheTTL = override.Catalog.FloorCacheTTL
	}

	if override.HTTP.Timeout != "" {
		base.HTTP.Timeout = override.HTTP.Timeout
	}

	if override.Control.Addr != "" {
		base.Control.Addr = override.Control.Addr
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.SystemPrompt != "" {
		base.ChatGPT.SystemPrompt = override.ChatGPT.SystemPrompt
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", RetentionDays: 30},
		Storage:   StorageConfig{DataDir: "data"},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone},
		Catalog: CatalogConfig{
			BaseURL:        "https://api.dmm.com/affiliate/v3",
			MovieBaseURL:   "https://cc3001.dmm.co.jp/litevideo/freepv",
			RequestsPerSec: 1,
			FloorCacheTTL:  "24h",
		},
		HTTP:    HTTPConfig{Timeout: "30s"},
		Control: ControlConfig{Addr: "127.0.0.1:8089"},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "あなたは商品紹介記事を書く日本語のライターです。",
		},
	}
}
