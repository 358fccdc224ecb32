package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "eraforge.yaml"

type ProjectConfig struct {
	Project  string         `yaml:"project"`
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Economy  EconomyConfig  `yaml:"economy"`
	Game     GameConfig     `yaml:"game"`
	Log      LogConfig      `yaml:"log"`

	// Populated from the environment only.
	Secrets   Secrets   `yaml:"-"`
	Telemetry Telemetry `yaml:"-"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type OracleConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	BaseURL     string        `yaml:"base_url"`
}

type EconomyConfig struct {
	StartingBalance    string `yaml:"starting_balance"`
	StartingMultiplier string `yaml:"starting_multiplier"`

	Balance    decimal.Decimal `yaml:"-"`
	Multiplier decimal.Decimal `yaml:"-"`
}

type GameConfig struct {
	MinYear *int  `yaml:"min_year"`
	MaxYear *int  `yaml:"max_year"`
	News    *bool `yaml:"news"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Secrets struct {
	OpenAIKey string
	GeminiKey string
}

type Telemetry struct {
	Enabled  bool
	Endpoint string
}

// envOverrides holds the variables that win over the yaml file.
type envOverrides struct {
	DatabaseDSN  string `env:"ERAFORGE_DATABASE_DSN"`
	OpenAIKey    string `env:"ERAFORGE_OPENAI_API_KEY"`
	GeminiKey    string `env:"ERAFORGE_GEMINI_API_KEY"`
	LogLevel     string `env:"ERAFORGE_LOG_LEVEL"`
	OTelEndpoint string `env:"ERAFORGE_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"ERAFORGE_OTEL_ENABLED"`
}

var defaultModels = map[string]string{
	"openai": "gpt-4o",
	"gemini": "gemini-1.5-flash",
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("loading project config: parse env: %w", err)
	}
	cfg.applyEnv(overrides)
	cfg.applyDefaults()

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

func (c *ProjectConfig) applyEnv(o envOverrides) {
	if o.DatabaseDSN != "" {
		c.Database.DSN = o.DatabaseDSN
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	c.Secrets = Secrets{OpenAIKey: o.OpenAIKey, GeminiKey: o.GeminiKey}
	c.Telemetry = Telemetry{Enabled: o.OTelEnabled, Endpoint: o.OTelEndpoint}
}

func (c *ProjectConfig) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "sqlite://eraforge.db"
	}
	if c.Oracle.Provider == "" {
		c.Oracle.Provider = "openai"
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = defaultModels[c.Oracle.Provider]
	}
	if c.Oracle.Temperature == nil {
		t := 0.7
		c.Oracle.Temperature = &t
	}
	if c.Oracle.Timeout == 0 {
		c.Oracle.Timeout = 60 * time.Second
	}
	if c.Economy.StartingBalance == "" {
		c.Economy.StartingBalance = "1000.00"
	}
	if c.Economy.StartingMultiplier == "" {
		c.Economy.StartingMultiplier = "1.00"
	}
	if c.Game.MinYear == nil {
		y := -10000
		c.Game.MinYear = &y
	}
	if c.Game.MaxYear == nil {
		y := 2025
		c.Game.MaxYear = &y
	}
	if c.Game.News == nil {
		on := true
		c.Game.News = &on
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}

	if _, ok := defaultModels[cfg.Oracle.Provider]; !ok {
		return fmt.Errorf("unsupported oracle provider: %q", cfg.Oracle.Provider)
	}
	if t := *cfg.Oracle.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("oracle temperature out of range: %v", t)
	}
	if cfg.Oracle.MaxTokens < 0 {
		return fmt.Errorf("oracle max_tokens must not be negative")
	}
	if cfg.Oracle.Timeout < 0 {
		return fmt.Errorf("oracle timeout must be positive")
	}

	balance, err := decimal.NewFromString(cfg.Economy.StartingBalance)
	if err != nil {
		return fmt.Errorf("economy starting_balance: %w", err)
	}
	multiplier, err := decimal.NewFromString(cfg.Economy.StartingMultiplier)
	if err != nil {
		return fmt.Errorf("economy starting_multiplier: %w", err)
	}
	if !multiplier.IsPositive() {
		return fmt.Errorf("economy starting_multiplier must be positive, got %s", multiplier)
	}
	cfg.Economy.Balance = balance
	cfg.Economy.Multiplier = multiplier

	if *cfg.Game.MinYear > *cfg.Game.MaxYear {
		return fmt.Errorf("game min_year %d is after max_year %d", *cfg.Game.MinYear, *cfg.Game.MaxYear)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %q", cfg.Log.Format)
	}

	return nil
}

// OracleAPIKey returns the key for the configured provider. Commands that
// never call the oracle do not need one.
func (c *ProjectConfig) OracleAPIKey() (string, error) {
	var key, name string
	switch c.Oracle.Provider {
	case "gemini":
		key, name = c.Secrets.GeminiKey, "ERAFORGE_GEMINI_API_KEY"
	default:
		key, name = c.Secrets.OpenAIKey, "ERAFORGE_OPENAI_API_KEY"
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%s is not set", name)
	}
	return key, nil
}
