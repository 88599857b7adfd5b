// Package config loads storyforge configuration from an optional YAML file
// with environment variable overrides. A .env file is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v2"
)

// Config holds settings for both the wizard client and the stub server.
type Config struct {
	Server struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"server"`

	Poll struct {
		Interval       time.Duration `yaml:"interval"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"poll"`

	Client struct {
		SessionPath   string `yaml:"session_path"`
		MinStoryChars int    `yaml:"min_story_chars"`
		MaxImageBytes int64  `yaml:"max_image_bytes"`
		StrictAdvance bool   `yaml:"strict_advance"`
		LogLevel      string `yaml:"log_level"`
		LogFile       string `yaml:"log_file"`
	} `yaml:"client"`

	Stub struct {
		Addr       string        `yaml:"addr"`
		Store      string        `yaml:"store"` // "memory" or "redis"
		RedisAddr  string        `yaml:"redis_addr"`
		RedisPass  string        `yaml:"redis_password"`
		StepDelay  time.Duration `yaml:"step_delay"`
		DraftTTL   time.Duration `yaml:"draft_ttl"`
		SweepEvery string        `yaml:"sweep_every"` // cron spec
		LogLevel   string        `yaml:"log_level"`
	} `yaml:"stub"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.URL = "http://localhost:8080"
	cfg.Server.Timeout = 30 * time.Second
	cfg.Poll.Interval = DefaultPollInterval
	cfg.Poll.RequestTimeout = DefaultRequestTimeout
	cfg.Client.MinStoryChars = DefaultMinStoryChars
	cfg.Client.MaxImageBytes = MaxReferenceImageBytes
	cfg.Client.LogLevel = "info"
	cfg.Stub.Addr = ":8080"
	cfg.Stub.Store = "memory"
	cfg.Stub.RedisAddr = "localhost:6379"
	cfg.Stub.StepDelay = 1500 * time.Millisecond
	cfg.Stub.DraftTTL = 24 * time.Hour
	cfg.Stub.SweepEvery = "@every 10m"
	cfg.Stub.LogLevel = "info"
	return cfg
}

// Load builds the configuration: defaults, then the YAML file at path (when
// path is empty, STORYFORGE_CONFIG or ./storyforge.yaml is tried; a missing
// file is fine), then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = getenv("STORYFORGE_CONFIG", "storyforge.yaml")
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Stub.Store != "memory" && cfg.Stub.Store != "redis" {
		return nil, fmt.Errorf("config: unknown stub store %q", cfg.Stub.Store)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.URL = getenv("STORYFORGE_SERVER_URL", cfg.Server.URL)
	cfg.Server.Timeout = getenvDuration("STORYFORGE_SERVER_TIMEOUT", cfg.Server.Timeout)
	cfg.Poll.Interval = getenvDuration("STORYFORGE_POLL_INTERVAL", cfg.Poll.Interval)
	cfg.Poll.RequestTimeout = getenvDuration("STORYFORGE_POLL_REQUEST_TIMEOUT", cfg.Poll.RequestTimeout)
	cfg.Client.SessionPath = getenv("STORYFORGE_SESSION_PATH", cfg.Client.SessionPath)
	cfg.Client.MinStoryChars = getenvInt("STORYFORGE_MIN_STORY_CHARS", cfg.Client.MinStoryChars)
	cfg.Client.MaxImageBytes = int64(getenvInt("STORYFORGE_MAX_IMAGE_BYTES", int(cfg.Client.MaxImageBytes)))
	cfg.Client.StrictAdvance = getenvBool("STORYFORGE_STRICT_ADVANCE", cfg.Client.StrictAdvance)
	cfg.Client.LogLevel = getenv("STORYFORGE_LOG_LEVEL", cfg.Client.LogLevel)
	cfg.Client.LogFile = getenv("STORYFORGE_LOG_FILE", cfg.Client.LogFile)
	cfg.Stub.Addr = getenv("STORYFORGE_STUB_ADDR", cfg.Stub.Addr)
	cfg.Stub.Store = getenv("STORYFORGE_STUB_STORE", cfg.Stub.Store)
	cfg.Stub.RedisAddr = getenv("STORYFORGE_REDIS_ADDR", cfg.Stub.RedisAddr)
	cfg.Stub.RedisPass = getenv("STORYFORGE_REDIS_PASSWORD", cfg.Stub.RedisPass)
	cfg.Stub.StepDelay = getenvDuration("STORYFORGE_STUB_STEP_DELAY", cfg.Stub.StepDelay)
	cfg.Stub.DraftTTL = getenvDuration("STORYFORGE_STUB_DRAFT_TTL", cfg.Stub.DraftTTL)
	cfg.Stub.SweepEvery = getenv("STORYFORGE_STUB_SWEEP_EVERY", cfg.Stub.SweepEvery)
	cfg.Stub.LogLevel = getenv("STORYFORGE_STUB_LOG_LEVEL", cfg.Stub.LogLevel)
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
