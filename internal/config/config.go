package config

import (
	"errors"
	"strings"
	"time"
)

// Config defines invoicepost configuration. The facility-management API key
// and the SMTP password are expected to come from the environment.
type Config struct {
	Billing struct {
		BaseURL        string `yaml:"baseUrl" env:"BILLING_BASE_URL"`
		APIKey         string `yaml:"-" env:"BILLING_API_KEY"`
		TimeoutSeconds int    `yaml:"timeoutSeconds" env:"BILLING_TIMEOUT"`
	} `yaml:"billing"`
	Invoice struct {
		OutputDir string `yaml:"outputDir" env:"INVOICE_OUTPUT_DIR"`
	} `yaml:"invoice"`
	Lists struct {
		Include   string `yaml:"include" env:"LISTS_INCLUDE"`
		Exclude   string `yaml:"exclude" env:"LISTS_EXCLUDE"`
		SplitCode string `yaml:"splitCode" env:"LISTS_SPLIT_CODE"`
		OnlyAdmin string `yaml:"onlyAdmin" env:"LISTS_ONLY_ADMIN"`
	} `yaml:"lists"`
	SMTP struct {
		Host     string `yaml:"host" env:"SMTP_HOST"`
		Port     int    `yaml:"port" env:"SMTP_PORT"`
		From     string `yaml:"from" env:"SMTP_FROM"`
		Username string `yaml:"username" env:"SMTP_USERNAME"`
		Password string `yaml:"-" env:"SMTP_PASSWORD"`
	} `yaml:"smtp"`
	Database struct {
		DSN string `yaml:"dsn" env:"AUDIT_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"LEDGER_REDIS_ADDR"`
		Password string `yaml:"password" env:"LEDGER_REDIS_PASSWORD"`
		TTLDays  int    `yaml:"ttlDays" env:"LEDGER_REDIS_TTL_DAYS"`
	} `yaml:"redis"`
}

// Load reads configuration from the optional YAML file and the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.Billing.BaseURL = "https://ppms.example.org/pumapi/"
	cfg.Billing.TimeoutSeconds = 30
	cfg.Invoice.OutputDir = "./invoices"
	cfg.SMTP.Port = 587
	cfg.Redis.TTLDays = 90

	if err := loadInto(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Billing.BaseURL) == "" {
		return nil, errors.New("config: billing base url required")
	}
	if strings.TrimSpace(cfg.Billing.APIKey) == "" {
		return nil, errors.New("config: billing api key required")
	}
	return cfg, nil
}

// BillingTimeout returns the request timeout as duration.
func (c *Config) BillingTimeout() time.Duration {
	if c.Billing.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Billing.TimeoutSeconds) * time.Second
}

// LedgerTTL returns how long delivery markers are kept.
func (c *Config) LedgerTTL() time.Duration {
	if c.Redis.TTLDays <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(c.Redis.TTLDays) * 24 * time.Hour
}
