package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Listen      string            `yaml:"listen"`
	Database    DatabaseConfig    `yaml:"database"`
	Environment EnvironmentConfig `yaml:"environment"`
	Mock        MockConfig        `yaml:"mock"`
	Proxy       ProxyConfig       `yaml:"proxy"`
	Recording   RecordingConfig   `yaml:"recording"`
	Toggles     TogglesConfig     `yaml:"toggles"`
	Log         LogConfig         `yaml:"log"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EnvironmentConfig is the active environment, upserted into the store on start
type EnvironmentConfig struct {
	Name          string `yaml:"name"`
	RemoteBaseURL string `yaml:"remoteBaseUrl"`
	LocalBaseURL  string `yaml:"localBaseUrl"`
}

// MockConfig holds the root directory of file-based mocks
type MockConfig struct {
	Dir string `yaml:"dir"`
}

type ProxyConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxRecordBytes int64         `yaml:"maxRecordBytes"`
}

// RecordingConfig controls which forwarded requests sync mode persists
type RecordingConfig struct {
	SchemaPath string   `yaml:"schemaPath"`
	Include    []string `yaml:"include"`
	Exclude    []string `yaml:"exclude"`
}

// TogglesConfig holds the initial toggle values
type TogglesConfig struct {
	ProxyAllApis bool `yaml:"proxyAllApis"`
	SyncAllApis  bool `yaml:"syncAllApis"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the YAML file at path, when given, then applies environment
// overrides and defaults, and validates the result
func Load(path string) (*Config, error) {
	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OCC_MOCK_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("OCC_MOCK_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("OCC_MOCK_ENV"); v != "" {
		c.Environment.Name = v
	}
	if v := os.Getenv("OCC_MOCK_REMOTE_URL"); v != "" {
		c.Environment.RemoteBaseURL = v
	}
	if v := os.Getenv("OCC_MOCK_DIR"); v != "" {
		c.Mock.Dir = v
	}
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":9000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "occ-mock.db"
	}
	if c.Mock.Dir == "" {
		c.Mock.Dir = "."
	}
	if c.Proxy.Timeout == 0 {
		c.Proxy.Timeout = 30 * time.Second
	}
	if c.Proxy.MaxRecordBytes == 0 {
		c.Proxy.MaxRecordBytes = 10 * 1024 * 1024
	}
	if c.Recording.SchemaPath == "" {
		c.Recording.SchemaPath = "recorded"
	}
	if c.Environment.LocalBaseURL == "" {
		c.Environment.LocalBaseURL = "http://localhost" + c.Listen
		if !strings.HasPrefix(c.Listen, ":") {
			c.Environment.LocalBaseURL = "http://" + c.Listen
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the fields the server cannot start without
func (c *Config) Validate() error {
	if c.Environment.Name == "" {
		return fmt.Errorf("environment.name is required")
	}
	if c.Environment.RemoteBaseURL == "" {
		return fmt.Errorf("environment.remoteBaseUrl is required")
	}
	u, err := url.Parse(c.Environment.RemoteBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("environment.remoteBaseUrl must be an absolute http(s) URL, got %q", c.Environment.RemoteBaseURL)
	}
	if c.Proxy.Timeout < 0 {
		return fmt.Errorf("proxy.timeout must not be negative")
	}
	if c.Proxy.MaxRecordBytes < 0 {
		return fmt.Errorf("proxy.maxRecordBytes must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps log.level to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", level)
}
