package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Addr != ":8000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Provider.Model != "" || cfg.Provider.MaxTokens != 1000 || cfg.Provider.Temperature != 0.6 {
		t.Errorf("Provider = %+v", cfg.Provider)
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "conductor.yaml", `
server:
  addr: ":9999"
organization:
  name: Platform
provider:
  type: mock
  timeout: 45s
  responses:
    - "ASSIGNMENTS:\nEmma: Task 1"
journal:
  path: ""
log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" || cfg.Organization.Name != "Platform" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Organization.BasePrompt != defaultBasePrompt {
		t.Error("unset base prompt should keep the default")
	}
	if cfg.Provider.Type != "mock" || cfg.Provider.Timeout != 45*time.Second {
		t.Errorf("Provider = %+v", cfg.Provider)
	}
	if len(cfg.Provider.Responses) != 1 || !strings.HasPrefix(cfg.Provider.Responses[0], "ASSIGNMENTS:") {
		t.Errorf("Responses = %q", cfg.Provider.Responses)
	}
	if cfg.Journal.Path != "" {
		t.Errorf("Journal.Path = %q, want empty", cfg.Journal.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) returned no error")
	}
	bad := writeFile(t, "bad.yaml", "server: [unclosed")
	if _, err := Load(bad); err == nil {
		t.Error("Load(bad) returned no error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAddr, ":7000")
	t.Setenv(EnvClaudeAPIKey, "sk-claude")
	t.Setenv(EnvOpenAIAPIKey, "sk-openai")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Provider.APIKey != "sk-claude" {
		t.Errorf("APIKey = %q, want claude key", cfg.Provider.APIKey)
	}

	cfg.Provider.Type = "openai"
	cfg.ApplyEnv()
	if cfg.Provider.APIKey != "sk-openai" {
		t.Errorf("APIKey = %q, want openai key", cfg.Provider.APIKey)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "CONDUCTOR_TEST_VAR=from-dotenv\n")
	t.Setenv("CONDUCTOR_TEST_VAR", "")
	os.Unsetenv("CONDUCTOR_TEST_VAR")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("CONDUCTOR_TEST_VAR"); got != "from-dotenv" {
		t.Errorf("CONDUCTOR_TEST_VAR = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults need a key", func(*Config) {}, "api key is not set"},
		{"mock needs nothing", func(c *Config) { c.Provider.Type = "mock" }, ""},
		{"unknown provider", func(c *Config) { c.Provider.Type = "llama" }, "unknown type"},
		{"temperature", func(c *Config) { c.Provider.Type = "mock"; c.Provider.Temperature = 3 }, "temperature"},
		{"log level", func(c *Config) { c.Provider.Type = "mock"; c.LogLevel = "chatty" }, "log_level"},
		{"org name", func(c *Config) { c.Provider.Type = "mock"; c.Organization.Name = "" }, "name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"": "INFO", "debug": "DEBUG", "WARN": "WARN", "error": "ERROR"} {
		got, err := ParseLevel(in)
		if err != nil || got.String() != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %s", in, got, err, want)
		}
	}
}
