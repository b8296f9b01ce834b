package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the bot
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram" json:"telegram"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Source    SourceConfig    `yaml:"source" json:"source"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// TelegramConfig holds messaging platform settings
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" json:"-"`
	// AdminIDs restricts who may use the bot. Empty means everyone.
	AdminIDs  []int64 `yaml:"admin_ids" json:"admin_ids"`
	ParseMode string  `yaml:"parse_mode" json:"parse_mode"`
	Debug     bool    `yaml:"debug" json:"debug"`
}

// RateLimitConfig holds per-user rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
	Window            time.Duration `yaml:"window" json:"window"`
	IdleEviction      time.Duration `yaml:"idle_eviction" json:"idle_eviction"`
}

// SourceConfig holds settings for fetching public profile pages
type SourceConfig struct {
	ProfileURLTemplate    string        `yaml:"profile_url_template" json:"profile_url_template"`
	UserAgent             string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout        time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests" json:"max_concurrent_requests"`
	RetryAttempts         int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay            time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// DownloadConfig holds media download and relay configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	MaxFileSize         int64         `yaml:"max_file_size" json:"max_file_size"`
	TempDir             string        `yaml:"temp_dir" json:"temp_dir"`
	MaxItems            int           `yaml:"max_items" json:"max_items"`
	SendDelay           time.Duration `yaml:"send_delay" json:"send_delay"`
}

// ServerConfig holds keep-alive HTTP server configuration
type ServerConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultUserAgent is sent on every outbound request
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			ParseMode: "Markdown",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 20,
			BurstSize:         5,
			Window:            time.Minute,
			IdleEviction:      10 * time.Minute,
		},
		Source: SourceConfig{
			ProfileURLTemplate:    "https://story.snapchat.com/s/%s",
			UserAgent:             DefaultUserAgent,
			RequestTimeout:        30 * time.Second,
			MaxConcurrentRequests: 5,
			RetryAttempts:         2,
			RetryDelay:            time.Second,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     60 * time.Second,
			MaxFileSize:         100 * 1024 * 1024,
			TempDir:             filepath.Join(os.TempDir(), "snap_downloads"),
			MaxItems:            10,
			SendDelay:           time.Second,
		},
		Server: ServerConfig{
			Enabled:    true,
			ListenAddr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if token := firstEnv("SNAPBOT_BOT_TOKEN", "BOT_TOKEN"); token != "" {
		c.Telegram.BotToken = token
	}
	if admins := firstEnv("SNAPBOT_ADMIN_IDS", "ADMIN_IDS"); admins != "" {
		c.Telegram.AdminIDs = ParseAdminIDs(admins)
	}
	if v := os.Getenv("SNAPBOT_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RateLimit.RequestsPerMinute = n
		} else {
			errs = append(errs, fmt.Errorf("SNAPBOT_REQUESTS_PER_MINUTE: invalid value %q", v))
		}
	}
	if v := os.Getenv("SNAPBOT_CONCURRENT_DOWNLOADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Download.ConcurrentDownloads = n
		} else {
			errs = append(errs, fmt.Errorf("SNAPBOT_CONCURRENT_DOWNLOADS: invalid value %q", v))
		}
	}
	if v := os.Getenv("SNAPBOT_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Download.MaxFileSize = n
		} else {
			errs = append(errs, fmt.Errorf("SNAPBOT_MAX_FILE_SIZE: invalid value %q", v))
		}
	}
	if v := os.Getenv("SNAPBOT_TEMP_DIR"); v != "" {
		c.Download.TempDir = v
	}
	if v := os.Getenv("SNAPBOT_USER_AGENT"); v != "" {
		c.Source.UserAgent = v
	}
	if v := firstEnv("SNAPBOT_LISTEN_ADDR", "PORT"); v != "" {
		if !strings.Contains(v, ":") {
			v = ":" + v
		}
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("SNAPBOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SNAPBOT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	return errors.Join(errs...)
}

// ParseAdminIDs parses a comma-separated list of user ids, ignoring entries
// that are not integers.
func ParseAdminIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".snapbot.yaml",
		".snapbot.yml",
		filepath.Join(home, ".config", "snapbot", "config.yaml"),
		filepath.Join(home, ".snapbot.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.RateLimit.IdleEviction < c.RateLimit.Window {
		errs = append(errs, errors.New("idle eviction must not be shorter than the rate limit window"))
	}
	if c.Source.MaxConcurrentRequests <= 0 {
		errs = append(errs, errors.New("max concurrent requests must be positive"))
	}
	if c.Source.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Source.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry attempts cannot be negative"))
	}
	if !strings.Contains(c.Source.ProfileURLTemplate, "%s") {
		errs = append(errs, errors.New("profile url template must contain %s"))
	}
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.MaxFileSize <= 0 {
		errs = append(errs, errors.New("max file size must be positive"))
	}
	if c.Download.TempDir == "" {
		errs = append(errs, errors.New("temp directory is required"))
	}
	if c.Download.MaxItems <= 0 {
		errs = append(errs, errors.New("max items must be positive"))
	}
	if c.Download.SendDelay < 0 {
		errs = append(errs, errors.New("send delay cannot be negative"))
	}
	if c.Server.Enabled && c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required when the server is enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// IsAdmin reports whether userID may use the bot. An empty allow-list admits everyone.
func (t TelegramConfig) IsAdmin(userID int64) bool {
	if len(t.AdminIDs) == 0 {
		return true
	}
	for _, id := range t.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	out := *c
	out.Telegram.BotToken = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["token"].(string); ok && token != "" {
		c.Telegram.BotToken = token
	}
	if dir, ok := flags["temp-dir"].(string); ok && dir != "" {
		c.Download.TempDir = dir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if addr, ok := flags["listen"].(string); ok && addr != "" {
		c.Server.ListenAddr = addr
	}
	if noServer, ok := flags["no-server"].(bool); ok && noServer {
		c.Server.Enabled = false
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".snapbot.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}
