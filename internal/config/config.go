// Package config loads process configuration from an optional YAML file,
// a .env file and EXPLAINER_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr        = "127.0.0.1:8787"
	DefaultStoragePath = "data/explainer.db"
	DefaultLogLevel    = "INFO"
	DefaultLogFormat   = "compact"
	DefaultHTTPTimeout = 60 * time.Second

	envPrefix = "EXPLAINER_"
)

type Config struct {
	Server    Server              `yaml:"server"`
	Storage   Storage             `yaml:"storage"`
	Log       Log                 `yaml:"log"`
	HTTP      HTTP                `yaml:"http"`
	Providers map[string]Provider `yaml:"providers"`
}

type Server struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Storage struct {
	// Path of the SQLite settings database. ":memory:" keeps settings in
	// memory for the lifetime of the process.
	Path string `yaml:"path"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTP configures the adapters' transport. Timeout bounds each phase of a
// provider call (dial, TLS handshake, response headers, each gap between body
// reads), not the whole exchange, so long streams that keep producing data
// are never cut off.
type HTTP struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Provider overrides one adapter's endpoint.
type Provider struct {
	BaseURL string `yaml:"base_url"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:    Server{Addr: DefaultAddr, AllowedOrigins: []string{"*"}},
		Storage:   Storage{Path: DefaultStoragePath},
		Log:       Log{Level: DefaultLogLevel, Format: DefaultLogFormat},
		HTTP:      HTTP{Timeout: DefaultHTTPTimeout},
		Providers: map[string]Provider{},
	}
}

// Load reads path (optional, may be empty or missing), then envFiles through
// godotenv (missing files are skipped), then applies EXPLAINER_* overrides.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", file, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv overrides fields from the environment. Provider base URLs use
// EXPLAINER_<ID>_BASE_URL.
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(envPrefix + "ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv(envPrefix + "ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := getenv(envPrefix + "DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv(envPrefix + "LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := getenv(envPrefix + "HTTP_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sHTTP_TIMEOUT %q: %w", envPrefix, v, err)
		}
		c.HTTP.Timeout = timeout
	}

	for _, id := range []string{"openrouter", "anthropic", "openai", "gemini"} {
		if v := getenv(envPrefix + strings.ToUpper(id) + "_BASE_URL"); v != "" {
			if c.Providers == nil {
				c.Providers = map[string]Provider{}
			}
			provider := c.Providers[id]
			provider.BaseURL = v
			c.Providers[id] = provider
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaults.Storage.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if c.Providers == nil {
		c.Providers = map[string]Provider{}
	}
}

// BaseURL returns the configured endpoint for provider, or "".
func (c Config) BaseURL(provider string) string {
	return c.Providers[provider].BaseURL
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
