package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the service needs at construction time.
type Config struct {
	Port           string   `yaml:"port"`
	StaticDir      string   `yaml:"static_dir"`
	RequestLogging bool     `yaml:"request_logging"`
	LogLevel       string   `yaml:"log_level"`
	Upstream       Upstream `yaml:"upstream"`
}

// Upstream describes the chat-completion API the extraction handler talks to.
type Upstream struct {
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	SiteURL  string        `yaml:"site_url"`
	SiteName string        `yaml:"site_name"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when neither a file nor the environment says otherwise.
func Default() Config {
	return Config{
		Port:           "8080",
		RequestLogging: true,
		LogLevel:       "info",
		Upstream: Upstream{
			BaseURL:  "https://openrouter.ai/api/v1",
			Model:    "openai/gpt-4o-mini",
			SiteURL:  "https://vercel.app",
			SiteName: "Signature Builder",
		},
	}
}

// Load builds the configuration from the defaults, the optional YAML file at path and finally
// the environment as seen through getenv. Environment variables win over the file.
//
// Usage example on the command line:
//
//	> PORT=8080 OPENROUTER_API_KEY=sk-or-... GIN_LOGGING=off go run ./cmd/service
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // nosemgrep
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Port, "PORT")
	setString(&c.StaticDir, "STATIC_DIR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Upstream.APIKey, "OPENROUTER_API_KEY")
	setString(&c.Upstream.BaseURL, "OPENROUTER_BASE_URL")
	setString(&c.Upstream.Model, "OPENROUTER_MODEL")
	setString(&c.Upstream.SiteURL, "OPENROUTER_SITE_URL")
	setString(&c.Upstream.SiteName, "OPENROUTER_SITE_NAME")

	if v := getenv("GIN_LOGGING"); v != "" {
		c.RequestLogging = !strings.EqualFold(v, "off")
	}
	if v := getenv("UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("could not parse UPSTREAM_TIMEOUT env variable: %w", err)
		}
		c.Upstream.Timeout = d
	}
	return nil
}

// Validate reports configuration that would keep the server from starting. A missing API key is
// not an error here, every extraction request reports it instead.
func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q: %w", c.Port, err)
	}
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream base URL must not be empty")
	}
	if c.Upstream.Timeout < 0 {
		return errors.New("upstream timeout must not be negative")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}
