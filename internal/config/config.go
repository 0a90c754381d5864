// Package config holds the harness settings. Values come from an optional
// YAML file and are overridden by PMP_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load
const (
	EnvConfigFile         = "PMP_CONFIG"
	EnvFixturesDir        = "PMP_FIXTURES_DIR"
	EnvLogLevel           = "PMP_LOG_LEVEL"
	EnvDefault404         = "PMP_DEFAULT_404"
	EnvVerbal404          = "PMP_VERBAL_404"
	EnvOTLPEndpoint       = "PMP_OTLP_ENDPOINT"
	EnvPassthroughTimeout = "PMP_PASSTHROUGH_TIMEOUT"
	EnvRecord             = "PMP_RECORD"
)

// Config is the harness configuration
type Config struct {
	// FixturesDirs are loaded into the HTTP mocker of every test case
	FixturesDirs []string `yaml:"fixtures_dirs"`
	LogLevel     string   `yaml:"log_level"`
	// Default404 answers unmocked requests with a 404 instead of the network
	Default404 bool `yaml:"default_404"`
	Verbal404  bool `yaml:"verbal_404"`
	// OTLPEndpoint enables tracing of passthrough requests when set
	OTLPEndpoint       string        `yaml:"otlp_endpoint"`
	PassthroughTimeout time.Duration `yaml:"passthrough_timeout"`
	// Record captures passthrough responses for export as fixtures
	Record bool `yaml:"record"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel:           "info",
		PassthroughTimeout: 30 * time.Second,
	}
}

// Load reads path (when not empty) over the defaults, then applies the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// FromEnv loads the file named by PMP_CONFIG, if any, then the environment
func FromEnv() (*Config, error) {
	return Load(getEnvString(EnvConfigFile, ""))
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// fixture directories are relative to the config file
	dir := filepath.Dir(path)
	for i, d := range c.FixturesDirs {
		if !filepath.IsAbs(d) {
			c.FixturesDirs[i] = filepath.Join(dir, d)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if dirs := getEnvString(EnvFixturesDir, ""); dirs != "" {
		c.FixturesDirs = splitList(dirs)
	}
	c.LogLevel = getEnvString(EnvLogLevel, c.LogLevel)
	c.Default404 = getEnvBool(EnvDefault404, c.Default404)
	c.Verbal404 = getEnvBool(EnvVerbal404, c.Verbal404)
	c.OTLPEndpoint = getEnvString(EnvOTLPEndpoint, c.OTLPEndpoint)
	c.PassthroughTimeout = getEnvDuration(EnvPassthroughTimeout, c.PassthroughTimeout)
	c.Record = getEnvBool(EnvRecord, c.Record)
}

// splitList splits a comma or path-list separated value
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == filepath.ListSeparator
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// getEnvString gets a string value from environment variable, or returns the default
func getEnvString(key string, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool gets a boolean value from environment variable, or returns the default
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

// getEnvDuration accepts a Go duration ("5s") or a number of seconds
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
