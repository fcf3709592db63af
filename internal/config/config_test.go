package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/tally/internal/aggregate"
	"github.com/davidahmann/tally/internal/llm"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tally.config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.ListenAddr)
	assert.Equal(t, DefaultDataset, cfg.DatasetPath)
	assert.Empty(t, cfg.PolicyPath)
	assert.Equal(t, aggregate.DefaultMinCardinality, cfg.MinCardinality)
	assert.Equal(t, llm.ProviderCohere, cfg.Reasoning.Provider)
	assert.Equal(t, llm.TimeoutLLMCall, cfg.Reasoning.Timeout)
	assert.Equal(t, 200, cfg.Reasoning.MaxTokens)
	assert.InDelta(t, 0.2, cfg.Reasoning.Temperature, 1e-9)
	assert.Equal(t, LedgerMemory, cfg.Ledger.Driver)
	assert.False(t, cfg.OTel.Enabled)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
dataset_path: "data/subs.csv"
reasoning:
  provider: OpenAI
  timeout: 5s
  max_tokens: 64
ledger:
  driver: sqlite
  dsn: "file:tally.db"
server:
  dev_token: "secret"
`)
	t.Setenv("TALLY_REASONING_MODEL", "gpt-test")
	t.Setenv("TALLY_SERVER_RATE_LIMIT_RPS", "2.5")
	t.Setenv("TALLY_OTEL_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "data/subs.csv", cfg.DatasetPath)
	assert.Equal(t, llm.ProviderOpenAI, cfg.Reasoning.Provider)
	assert.Equal(t, "gpt-test", cfg.Reasoning.Model)
	assert.Equal(t, 5*time.Second, cfg.Reasoning.Timeout)
	assert.Equal(t, 64, cfg.Reasoning.MaxTokens)
	assert.Equal(t, LedgerSQLite, cfg.Ledger.Driver)
	assert.Equal(t, "secret", cfg.Server.DevToken)
	assert.InDelta(t, 2.5, cfg.Server.RateLimitRPS, 1e-9)
	assert.True(t, cfg.OTel.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "reasoning:\n  provider: carrier-pigeon\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestValidate(t *testing.T) {
	valid := Config{
		ListenAddr:     ":8080",
		DatasetPath:    "subs.csv",
		MinCardinality: 3,
		Reasoning:      ReasoningConfig{Provider: llm.ProviderMock, Timeout: time.Second, MaxTokens: 10, Temperature: 0.2},
		Ledger:         LedgerConfig{Driver: LedgerMemory},
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Config){
		"no listen":        func(c *Config) { c.ListenAddr = "" },
		"no dataset":       func(c *Config) { c.DatasetPath = "" },
		"zero cardinality": func(c *Config) { c.MinCardinality = 0 },
		"bad provider":     func(c *Config) { c.Reasoning.Provider = "nope" },
		"zero timeout":     func(c *Config) { c.Reasoning.Timeout = 0 },
		"zero max tokens":  func(c *Config) { c.Reasoning.MaxTokens = 0 },
		"hot temperature":  func(c *Config) { c.Reasoning.Temperature = 3 },
		"sqlite no dsn":    func(c *Config) { c.Ledger.Driver = LedgerSQLite },
		"postgres no dsn":  func(c *Config) { c.Ledger.Driver = LedgerPostgres },
		"bad ledger":       func(c *Config) { c.Ledger.Driver = "redis" },
		"negative rps":     func(c *Config) { c.Server.RateLimitRPS = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestReasoningHelpers(t *testing.T) {
	env := map[string]string{"COHERE_API_KEY": "co-key", "MY_KEY": "custom"}
	getenv := func(k string) string { return env[k] }

	r := ReasoningConfig{Provider: llm.ProviderCohere}
	assert.Equal(t, "co-key", r.APIKey(getenv))
	assert.Equal(t, llm.DefaultModel(llm.ProviderCohere), r.ModelOrDefault())

	r.APIKeyEnv = "MY_KEY"
	r.Model = "command-r"
	assert.Equal(t, "custom", r.APIKey(getenv))
	assert.Equal(t, "command-r", r.ModelOrDefault())

	assert.Empty(t, ReasoningConfig{Provider: llm.ProviderOllama}.APIKey(getenv))
}
