package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Review   ReviewConfig   `yaml:"review"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ReviewConfig holds every knob of the external reviewer pipeline. It is
// loaded once at startup and passed into the scheduler and client; nothing
// on the review path reads the environment directly.
type ReviewConfig struct {
	Provider       string `yaml:"provider"` // openai, anthropic, gemini, ollama
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryBaseMS    int    `yaml:"retry_base_ms"`
	RetryMaxMS     int    `yaml:"retry_max_ms"`
	MaxInputChars  int    `yaml:"max_input_chars"`
	Language       string `yaml:"language"`
	PromptVersion  string `yaml:"prompt_version"`
}

// RedisConfig for the optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := *DefaultConfig()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.overrideFromEnv()
	cfg.applyBounds()
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "paperflow.db",
		},
		Review: ReviewConfig{
			Provider:       "openai",
			Model:          "gpt-4o",
			TimeoutSeconds: 45,
			MaxRetries:     3,
			RetryBaseMS:    1500,
			RetryMaxMS:     12000,
			MaxInputChars:  24000,
			Language:       "en",
			PromptVersion:  "v1",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if provider := os.Getenv("REVIEWER_PROVIDER"); provider != "" {
		c.Review.Provider = provider
	}
	if baseURL := os.Getenv("REVIEWER_BASE_URL"); baseURL != "" {
		c.Review.BaseURL = baseURL
	}
	if apiKey := os.Getenv("REVIEWER_API_KEY"); apiKey != "" {
		c.Review.APIKey = apiKey
	}
	if model := os.Getenv("REVIEWER_MODEL"); model != "" {
		c.Review.Model = model
	}
	if v := envInt("REVIEWER_TIMEOUT_SECS"); v > 0 {
		c.Review.TimeoutSeconds = v
	}
	if v, ok := envIntOK("REVIEWER_MAX_RETRIES"); ok && v >= 0 {
		c.Review.MaxRetries = v
	}
	if v := envInt("REVIEWER_RETRY_BASE_MS"); v > 0 {
		c.Review.RetryBaseMS = v
	}
	if v := envInt("REVIEWER_RETRY_MAX_MS"); v > 0 {
		c.Review.RetryMaxMS = v
	}
	if v := envInt("REVIEW_MAX_INPUT_CHARS"); v > 0 {
		c.Review.MaxInputChars = v
	}
	if lang := os.Getenv("REVIEW_LANGUAGE"); lang != "" {
		c.Review.Language = lang
	}
	if pv := os.Getenv("REVIEW_PROMPT_VERSION"); pv != "" {
		c.Review.PromptVersion = pv
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = redisAddr
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}
	if db := envInt("REDIS_DB"); db > 0 {
		c.Redis.DB = db
	}
}

// applyBounds clamps nonsense values back to safe defaults.
func (c *Config) applyBounds() {
	if c.Review.MaxRetries > 10 {
		c.Review.MaxRetries = 10
	}
	if c.Review.MaxRetries < 0 {
		c.Review.MaxRetries = 0
	}
	if c.Review.RetryMaxMS < c.Review.RetryBaseMS {
		c.Review.RetryMaxMS = c.Review.RetryBaseMS
	}
	if c.Review.MaxInputChars <= 0 {
		c.Review.MaxInputChars = DefaultConfig().Review.MaxInputChars
	}
	if c.Review.TimeoutSeconds <= 0 {
		c.Review.TimeoutSeconds = DefaultConfig().Review.TimeoutSeconds
	}
}

// Timeout is the bound on a single reviewer attempt.
func (r *ReviewConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

func (r *ReviewConfig) RetryBase() time.Duration {
	return time.Duration(r.RetryBaseMS) * time.Millisecond
}

func (r *ReviewConfig) RetryMax() time.Duration {
	return time.Duration(r.RetryMaxMS) * time.Millisecond
}

func envInt(key string) int {
	v, _ := envIntOK(key)
	return v
}

func envIntOK(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
