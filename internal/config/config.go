// Package config loads process configuration from an optional YAML file
// (tally.config.yaml), TALLY_* environment variables and defaults.
//
// Provider credentials are never part of this config. They are read from
// the environment variable named by reasoning.api_key_env, or the
// provider's conventional variable (COHERE_API_KEY, OPENAI_API_KEY,
// GEMINI_API_KEY).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/davidahmann/tally/internal/aggregate"
	"github.com/davidahmann/tally/internal/llm"
)

// Viper keys. Nested keys map to env vars with dots replaced by
// underscores, e.g. reasoning.provider -> TALLY_REASONING_PROVIDER.
const (
	KeyListenAddr     = "listen_addr"
	KeyDatasetPath    = "dataset_path"
	KeyPolicyPath     = "policy_path"
	KeyMinCardinality = "min_cardinality"

	KeyReasoningProvider    = "reasoning.provider"
	KeyReasoningModel       = "reasoning.model"
	KeyReasoningBaseURL     = "reasoning.base_url"
	KeyReasoningTimeout     = "reasoning.timeout"
	KeyReasoningMaxTokens   = "reasoning.max_tokens"
	KeyReasoningTemperature = "reasoning.temperature"
	KeyReasoningAPIKeyEnv   = "reasoning.api_key_env"

	KeyLedgerDriver = "ledger.driver"
	KeyLedgerDSN    = "ledger.dsn"

	KeyServerDevToken       = "server.dev_token"
	KeyServerRateLimitRPS   = "server.rate_limit_rps"
	KeyServerRateLimitBurst = "server.rate_limit_burst"

	KeyOTelEnabled = "otel.enabled"
)

const (
	EnvPrefix      = "TALLY"
	ConfigName     = "tally.config"
	DefaultListen  = ":8080"
	DefaultDataset = "subscription_data.csv"

	LedgerMemory   = "memory"
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	ListenAddr     string          `mapstructure:"listen_addr"`
	DatasetPath    string          `mapstructure:"dataset_path"`
	PolicyPath     string          `mapstructure:"policy_path"`
	MinCardinality int             `mapstructure:"min_cardinality"`
	Reasoning      ReasoningConfig `mapstructure:"reasoning"`
	Ledger         LedgerConfig    `mapstructure:"ledger"`
	Server         ServerConfig    `mapstructure:"server"`
	OTel           OTelConfig      `mapstructure:"otel"`
}

type ReasoningConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	APIKeyEnv   string        `mapstructure:"api_key_env"`
}

type LedgerConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	DevToken       string  `mapstructure:"dev_token"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type OTelConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// New returns a viper instance with defaults and env binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyListenAddr, DefaultListen)
	v.SetDefault(KeyDatasetPath, DefaultDataset)
	v.SetDefault(KeyPolicyPath, "")
	v.SetDefault(KeyMinCardinality, aggregate.DefaultMinCardinality)

	v.SetDefault(KeyReasoningProvider, llm.ProviderCohere)
	v.SetDefault(KeyReasoningModel, "")
	v.SetDefault(KeyReasoningBaseURL, "")
	v.SetDefault(KeyReasoningTimeout, llm.TimeoutLLMCall)
	v.SetDefault(KeyReasoningMaxTokens, 200)
	v.SetDefault(KeyReasoningTemperature, 0.2)
	v.SetDefault(KeyReasoningAPIKeyEnv, "")

	v.SetDefault(KeyLedgerDriver, LedgerMemory)
	v.SetDefault(KeyLedgerDSN, "")

	v.SetDefault(KeyServerDevToken, "")
	v.SetDefault(KeyServerRateLimitRPS, 10.0)
	v.SetDefault(KeyServerRateLimitBurst, 20)

	v.SetDefault(KeyOTelEnabled, false)
	return v
}

// Load reads path when given, otherwise ./tally.config.yaml if present,
// applies env overrides and validates the result.
func Load(path string) (Config, error) {
	return LoadFrom(New(), path)
}

// LoadFrom is Load over a caller-supplied viper, so commands can bind flags
// before loading.
func LoadFrom(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Reasoning.Provider = strings.ToLower(strings.TrimSpace(cfg.Reasoning.Provider))
	cfg.Ledger.Driver = strings.ToLower(strings.TrimSpace(cfg.Ledger.Driver))
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr is required", ErrInvalid)
	}
	if c.DatasetPath == "" {
		return fmt.Errorf("%w: dataset_path is required", ErrInvalid)
	}
	if c.MinCardinality < 1 {
		return fmt.Errorf("%w: min_cardinality must be at least 1", ErrInvalid)
	}
	if !llm.Known(c.Reasoning.Provider) {
		return fmt.Errorf("%w: unknown reasoning.provider %q", ErrInvalid, c.Reasoning.Provider)
	}
	if c.Reasoning.Timeout <= 0 {
		return fmt.Errorf("%w: reasoning.timeout must be positive", ErrInvalid)
	}
	if c.Reasoning.MaxTokens <= 0 {
		return fmt.Errorf("%w: reasoning.max_tokens must be positive", ErrInvalid)
	}
	if c.Reasoning.Temperature < 0 || c.Reasoning.Temperature > 2 {
		return fmt.Errorf("%w: reasoning.temperature must be within [0, 2]", ErrInvalid)
	}
	switch c.Ledger.Driver {
	case LedgerMemory, "":
	case LedgerSQLite, LedgerPostgres:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("%w: ledger.dsn is required when ledger.driver=%s", ErrInvalid, c.Ledger.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown ledger.driver %q", ErrInvalid, c.Ledger.Driver)
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("%w: server rate limits must not be negative", ErrInvalid)
	}
	return nil
}

// ModelOrDefault returns the configured model or the provider default.
func (r ReasoningConfig) ModelOrDefault() string {
	if r.Model != "" {
		return r.Model
	}
	return llm.DefaultModel(r.Provider)
}

// APIKey reads the provider credential from the environment.
func (r ReasoningConfig) APIKey(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	name := r.APIKeyEnv
	if name == "" {
		name = llm.DefaultKeyEnv(r.Provider)
	}
	if name == "" {
		return ""
	}
	return getenv(name)
}
