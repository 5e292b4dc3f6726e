package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr      = "127.0.0.1:8501"
	DefaultOllamaURL       = "http://localhost:11434"
	DefaultModel           = "phi"
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 256
	DefaultRefreshInterval = 5 * time.Second
	DefaultSnapshotSize    = 50
	DefaultProbeTimeout    = 2 * time.Second
	DefaultLaunchGrace     = 2 * time.Second
	DefaultOllamaBinary    = "ollama"
)

// Config holds everything the app needs at runtime
type Config struct {
	ListenAddr string

	OllamaURL    string
	Model        string
	Temperature  float64
	MaxTokens    int
	QueryTimeout time.Duration // 0 means no client timeout

	RefreshInterval time.Duration
	SnapshotSize    int
	Containers      bool

	ProbeTimeout time.Duration
	LaunchGrace  time.Duration
	OllamaBinary string
	AutoLaunch   bool
}

// fileConfig is the YAML shape. Zero values leave the default alone.
type fileConfig struct {
	ListenAddr          string   `yaml:"listen_addr"`
	OllamaURL           string   `yaml:"ollama_url"`
	Model               string   `yaml:"model"`
	Temperature         *float64 `yaml:"temperature,omitempty"`
	MaxTokens           int      `yaml:"max_tokens"`
	QueryTimeoutSeconds int      `yaml:"query_timeout_seconds"`
	RefreshSeconds      int      `yaml:"refresh_seconds"`
	SnapshotSize        int      `yaml:"snapshot_size"`
	Containers          *bool    `yaml:"containers,omitempty"`
	ProbeTimeoutSeconds int      `yaml:"probe_timeout_seconds"`
	LaunchGraceSeconds  int      `yaml:"launch_grace_seconds"`
	OllamaBinary        string   `yaml:"ollama_binary"`
	AutoLaunch          *bool    `yaml:"auto_launch,omitempty"`
}

// Default returns the built-in settings, matching the fixed constants the
// tool always shipped with.
func Default() *Config {
	return &Config{
		ListenAddr:      DefaultListenAddr,
		OllamaURL:       DefaultOllamaURL,
		Model:           DefaultModel,
		Temperature:     DefaultTemperature,
		MaxTokens:       DefaultMaxTokens,
		RefreshInterval: DefaultRefreshInterval,
		SnapshotSize:    DefaultSnapshotSize,
		Containers:      true,
		ProbeTimeout:    DefaultProbeTimeout,
		LaunchGrace:     DefaultLaunchGrace,
		OllamaBinary:    DefaultOllamaBinary,
		AutoLaunch:      true,
	}
}

// Load builds the config: defaults, then the optional YAML file, then .env
// and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	// .env is optional, plain env works too
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables")
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile overlays the YAML file at path onto cfg
func (cfg *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}

	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.OllamaURL, fc.OllamaURL)
	setString(&cfg.Model, fc.Model)
	setString(&cfg.OllamaBinary, fc.OllamaBinary)
	if fc.Temperature != nil {
		cfg.Temperature = *fc.Temperature
	}
	if fc.MaxTokens != 0 {
		cfg.MaxTokens = fc.MaxTokens
	}
	if fc.QueryTimeoutSeconds != 0 {
		cfg.QueryTimeout = seconds(fc.QueryTimeoutSeconds)
	}
	if fc.RefreshSeconds != 0 {
		cfg.RefreshInterval = seconds(fc.RefreshSeconds)
	}
	if fc.SnapshotSize != 0 {
		cfg.SnapshotSize = fc.SnapshotSize
	}
	if fc.ProbeTimeoutSeconds != 0 {
		cfg.ProbeTimeout = seconds(fc.ProbeTimeoutSeconds)
	}
	if fc.LaunchGraceSeconds != 0 {
		cfg.LaunchGrace = seconds(fc.LaunchGraceSeconds)
	}
	if fc.Containers != nil {
		cfg.Containers = *fc.Containers
	}
	if fc.AutoLaunch != nil {
		cfg.AutoLaunch = *fc.AutoLaunch
	}
	return nil
}

func (cfg *Config) applyEnv() {
	cfg.ListenAddr = getEnv("PROCLENS_LISTEN_ADDR", cfg.ListenAddr)
	cfg.OllamaURL = getEnv("OLLAMA_URL", cfg.OllamaURL)
	cfg.Model = getEnv("OLLAMA_MODEL", cfg.Model)
	cfg.OllamaBinary = getEnv("OLLAMA_BINARY", cfg.OllamaBinary)
	cfg.Temperature = getEnvFloat("OLLAMA_TEMPERATURE", cfg.Temperature)
	cfg.MaxTokens = getEnvInt("OLLAMA_MAX_TOKENS", cfg.MaxTokens)
	cfg.QueryTimeout = getEnvSeconds("OLLAMA_QUERY_TIMEOUT_SECONDS", cfg.QueryTimeout)
	cfg.RefreshInterval = getEnvSeconds("PROCLENS_REFRESH_SECONDS", cfg.RefreshInterval)
	cfg.SnapshotSize = getEnvInt("PROCLENS_SNAPSHOT_SIZE", cfg.SnapshotSize)
	cfg.ProbeTimeout = getEnvSeconds("PROCLENS_PROBE_TIMEOUT_SECONDS", cfg.ProbeTimeout)
	cfg.LaunchGrace = getEnvSeconds("PROCLENS_LAUNCH_GRACE_SECONDS", cfg.LaunchGrace)
	cfg.AutoLaunch = getEnvBool("PROCLENS_AUTO_LAUNCH", cfg.AutoLaunch)
	cfg.Containers = getEnvBool("PROCLENS_CONTAINERS", cfg.Containers)
}

// Validate rejects settings the collector or forwarder cannot run with
func (cfg *Config) Validate() error {
	if cfg.RefreshInterval <= 0 {
		return errors.Errorf("refresh interval must be positive, got %v", cfg.RefreshInterval)
	}
	if cfg.SnapshotSize <= 0 {
		return errors.Errorf("snapshot size must be positive, got %d", cfg.SnapshotSize)
	}
	if cfg.MaxTokens <= 0 {
		return errors.Errorf("max tokens must be positive, got %d", cfg.MaxTokens)
	}
	if cfg.QueryTimeout < 0 {
		return errors.Errorf("query timeout cannot be negative, got %v", cfg.QueryTimeout)
	}
	u, err := url.Parse(cfg.OllamaURL)
	if err != nil {
		return errors.Wrap(err, "invalid ollama url")
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.Errorf("invalid ollama url %q: scheme and host required", cfg.OllamaURL)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// getEnv returns the env value or the fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return seconds(n)
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}
