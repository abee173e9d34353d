package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperengineering/grantscan/internal/scan"
	"github.com/hyperengineering/grantscan/internal/store"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Store     StoreConfig     `yaml:"store"`
	Scan      ScanConfig      `yaml:"scan"`
	Server    ServerConfig    `yaml:"server"`
	Narrative NarrativeConfig `yaml:"narrative"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Log       LogConfig       `yaml:"log"`
}

// ServiceConfig points at the remote matching service.
type ServiceConfig struct {
	BaseURL      string   `yaml:"base_url"`
	Timeout      Duration `yaml:"timeout"`
	AccessToken  string   `yaml:"-"` // env-only, never in YAML
	RefreshToken string   `yaml:"-"` // env-only, never in YAML
}

// StoreConfig contains the local wizard state store settings.
type StoreConfig struct {
	Path  string `yaml:"path"`
	Scope string `yaml:"scope"`
}

// ScanConfig contains scan lifecycle settings.
type ScanConfig struct {
	OverlapPolicy string `yaml:"overlap_policy"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	// APIKey, when set, is required as a bearer token on every route
	// except health.
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// NarrativeConfig contains summary generation settings.
type NarrativeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"-"` // env-only, never in YAML
}

// Active reports whether a model should be used for summaries.
func (n NarrativeConfig) Active() bool {
	return n.Enabled && n.APIKey != ""
}

// ArchiveConfig contains S3-compatible report archive settings.
// An empty bucket disables archiving.
type ArchiveConfig struct {
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	Prefix    string   `yaml:"prefix"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool    `yaml:"use_ssl"`
	URLExpiry Duration `yaml:"url_expiry"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → .env → env vars.
// Variables from the .env file never override the real environment.
func Load() (*Config, error) {
	cfg := newDefaults()

	if err := loadDotEnv(getEnv("GRANTSCAN_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	configPath := getEnv("GRANTSCAN_CONFIG_PATH", "config/grantscan.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL: "http://localhost:8000/api/v1",
			Timeout: Duration(30 * time.Second),
		},
		Store: StoreConfig{
			Path:  "~/.grantscan/state.db",
			Scope: store.DefaultScope,
		},
		Scan: ScanConfig{
			OverlapPolicy: string(scan.PolicyLastResponseWins),
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Narrative: NarrativeConfig{
			Enabled: true,
			Model:   "gpt-4o-mini",
		},
		Archive: ArchiveConfig{
			Region:    "us-east-1",
			Prefix:    "reports",
			URLExpiry: Duration(15 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadDotEnv loads variables from a .env file into the process
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Service
	if v := os.Getenv("GRANTSCAN_SERVICE_URL"); v != "" {
		cfg.Service.BaseURL = v
	}
	envDuration("GRANTSCAN_SERVICE_TIMEOUT", &cfg.Service.Timeout)
	if v := os.Getenv("GRANTSCAN_ACCESS_TOKEN"); v != "" {
		cfg.Service.AccessToken = v
	}
	if v := os.Getenv("GRANTSCAN_REFRESH_TOKEN"); v != "" {
		cfg.Service.RefreshToken = v
	}

	// Store
	if v := os.Getenv("GRANTSCAN_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("GRANTSCAN_SCOPE"); v != "" {
		cfg.Store.Scope = v
	}

	// Scan
	if v := os.Getenv("GRANTSCAN_OVERLAP_POLICY"); v != "" {
		cfg.Scan.OverlapPolicy = v
	}

	// Server
	if v := os.Getenv("GRANTSCAN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("GRANTSCAN_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("GRANTSCAN_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("GRANTSCAN_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if v := os.Getenv("GRANTSCAN_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}

	// Narrative (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("GRANTSCAN_NARRATIVE_ENABLED"); v != "" {
		cfg.Narrative.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GRANTSCAN_NARRATIVE_MODEL"); v != "" {
		cfg.Narrative.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Narrative.APIKey = v
	}

	// Archive
	if v := os.Getenv("GRANTSCAN_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("GRANTSCAN_ARCHIVE_PREFIX"); v != "" {
		cfg.Archive.Prefix = v
	}
	if v := os.Getenv("GRANTSCAN_S3_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("GRANTSCAN_S3_REGION"); v != "" {
		cfg.Archive.Region = v
	}
	if v := os.Getenv("GRANTSCAN_S3_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("GRANTSCAN_S3_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("GRANTSCAN_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Archive.UseSSL = &useSSL
	}
	envDuration("GRANTSCAN_S3_URL_EXPIRY", &cfg.Archive.URLExpiry)

	// Log
	if v := os.Getenv("GRANTSCAN_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GRANTSCAN_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks that configuration values are usable.
func (c *Config) validate() error {
	u, err := url.Parse(c.Service.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("service.base_url %q must be an absolute http(s) URL", c.Service.BaseURL)
	}
	if c.Service.Timeout <= 0 {
		return errors.New("service.timeout must be positive")
	}

	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path is required")
	}
	if err := store.ValidateScope(c.Store.Scope); err != nil {
		return fmt.Errorf("store.scope: %w", err)
	}

	if _, err := scan.ParsePolicy(c.Scan.OverlapPolicy); err != nil {
		return fmt.Errorf("scan.overlap_policy: %w", err)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Archive.Bucket != "" && c.Archive.Endpoint == "" {
		return errors.New("archive.endpoint is required when archive.bucket is set")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text", c.Log.Format)
	}

	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
