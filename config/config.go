// Package config defines the conductor application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvClaudeAPIKey = "CLAUDE_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvAddr         = "CONDUCTOR_ADDR"
)

// Config is the top-level conductor configuration.
type Config struct {
	Server       ServerConfig       `json:"server" yaml:"server"`
	Organization OrganizationConfig `json:"organization" yaml:"organization"`
	Provider     ProviderConfig     `json:"provider" yaml:"provider"`
	Journal      JournalConfig      `json:"journal" yaml:"journal"`
	LogLevel     string             `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":8000"
}

// OrganizationConfig describes the organization being planned for.
type OrganizationConfig struct {
	Name       string `json:"name" yaml:"name"`
	BasePrompt string `json:"base_prompt" yaml:"base_prompt"`
	Seed       bool   `json:"seed,omitempty" yaml:"seed"` // start with the demo team
}

// ProviderConfig selects and tunes the planning backend.
type ProviderConfig struct {
	Type         string        `json:"type" yaml:"type"` // "anthropic", "openai", "mock"
	APIKey       string        `json:"-" yaml:"api_key"`
	Model        string        `json:"model,omitempty" yaml:"model"` // empty uses the provider default
	BaseURL      string        `json:"base_url,omitempty" yaml:"base_url"`
	MaxTokens    int           `json:"max_tokens" yaml:"max_tokens"`
	Temperature  float64       `json:"temperature" yaml:"temperature"`
	SystemPrompt string        `json:"system_prompt,omitempty" yaml:"system_prompt"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	Responses    []string      `json:"responses,omitempty" yaml:"responses"` // mock only
}

// JournalConfig controls the SQLite event journal.
type JournalConfig struct {
	Path string `json:"path" yaml:"path"` // empty disables the journal
}

const defaultBasePrompt = `You are assisting a team by assigning tasks to workers based on their skills and experience.
Consider the following:
1. Match worker skills with task requirements
2. Consider worker workload and availability
3. Consider task priority and deadline
4. Balance workload appropriately among team members
5. Consider worker experience with similar tasks`

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
		},
		Organization: OrganizationConfig{
			Name:       "DevTeam",
			BasePrompt: defaultBasePrompt,
		},
		Provider: ProviderConfig{
			Type:        "anthropic",
			MaxTokens:   1000,
			Temperature: 0.6,
			Timeout:     2 * time.Minute,
		},
		Journal: JournalConfig{
			Path: "./data/journal.db",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given files (default ".env")
// into the process environment. Missing files are ignored; variables already
// set are left alone.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides file values with environment variables. The API key
// matching the provider type wins over api_key in the file.
func (c *Config) ApplyEnv() {
	if addr := os.Getenv(EnvAddr); addr != "" {
		c.Server.Addr = addr
	}
	var key string
	switch c.Provider.Type {
	case "anthropic":
		key = os.Getenv(EnvClaudeAPIKey)
	case "openai":
		key = os.Getenv(EnvOpenAIAPIKey)
	}
	if key != "" {
		c.Provider.APIKey = key
	}
}

// Validate reports configuration errors that would prevent startup.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider.Type {
	case "mock":
	case "anthropic", "openai":
		if c.Provider.APIKey == "" {
			errs = append(errs, fmt.Errorf("provider %s: api key is not set", c.Provider.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("provider: unknown type %q", c.Provider.Type))
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, fmt.Errorf("provider: temperature %v out of range [0, 2]", c.Provider.Temperature))
	}
	if c.Organization.Name == "" {
		errs = append(errs, errors.New("organization: name is required"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a log_level value to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
