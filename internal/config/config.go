package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	SerpAPI    SerpAPIConfig    `yaml:"serpapi" mapstructure:"serpapi"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the staging database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// SalesforceConfig holds Salesforce credentials. JWT is used when KeyPath is
// set; otherwise username/password, then client credentials.
type SalesforceConfig struct {
	LoginURL      string  `yaml:"login_url" mapstructure:"login_url"`
	ClientID      string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret  string  `yaml:"client_secret" mapstructure:"client_secret"`
	Username      string  `yaml:"username" mapstructure:"username"`
	Password      string  `yaml:"password" mapstructure:"password"`
	SecurityToken string  `yaml:"security_token" mapstructure:"security_token"`
	KeyPath       string  `yaml:"key_path" mapstructure:"key_path"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SerpAPIConfig holds SerpAPI settings.
type SerpAPIConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Language    string  `yaml:"hl" mapstructure:"hl"`
	Country     string  `yaml:"gl" mapstructure:"gl"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Plan pricing, used only for the run cost estimate.
	PlanMonthly      float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	SearchesIncluded int     `yaml:"searches_included" mapstructure:"searches_included"`
}

// EnrichConfig configures the enrichment run.
type EnrichConfig struct {
	PageSize       int    `yaml:"page_size" mapstructure:"page_size"`
	Workers        int    `yaml:"workers" mapstructure:"workers"`
	MatchThreshold int    `yaml:"match_threshold" mapstructure:"match_threshold"`
	QueryTerm      string `yaml:"query_term" mapstructure:"query_term"`
	Precheck       string `yaml:"precheck" mapstructure:"precheck"`
	DataDir        string `yaml:"data_dir" mapstructure:"data_dir"`
	AuditCSV       bool   `yaml:"audit_csv" mapstructure:"audit_csv"`
}

// SyncConfig configures the Salesforce reconcile pass.
type SyncConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit"`
}

// RetryConfig configures retries for outbound calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Jitter           float64 `yaml:"jitter" mapstructure:"jitter"`
}

// CircuitConfig configures the SerpAPI circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// MonitoringConfig configures staging health alerts.
type MonitoringConfig struct {
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	ErrorRateThreshold  float64 `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	SanityRateThreshold float64 `yaml:"sanity_rate_threshold" mapstructure:"sanity_rate_threshold"`
	SyncErrorThreshold  int     `yaml:"sync_error_threshold" mapstructure:"sync_error_threshold"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// secretKeys have no default and are normally supplied through ENRICH_* env vars.
var secretKeys = []string{
	"store.database_url",
	"salesforce.client_id",
	"salesforce.client_secret",
	"salesforce.username",
	"salesforce.password",
	"salesforce.security_token",
	"salesforce.key_path",
	"serpapi.key",
	"monitoring.webhook_url",
	"metrics.addr",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default are invisible to Unmarshal unless bound.
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 20)
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.hl", "en")
	v.SetDefault("serpapi.gl", "us")
	v.SetDefault("serpapi.timeout_secs", 30)
	v.SetDefault("serpapi.rate_limit", 10)
	v.SetDefault("serpapi.plan_monthly", 75.0)
	v.SetDefault("serpapi.searches_included", 5000)
	v.SetDefault("enrich.page_size", 1000)
	v.SetDefault("enrich.workers", 20)
	v.SetDefault("enrich.match_threshold", 80)
	v.SetDefault("enrich.query_term", "Restaurant")
	v.SetDefault("enrich.precheck", "store")
	v.SetDefault("enrich.data_dir", "data")
	v.SetDefault("enrich.audit_csv", true)
	v.SetDefault("sync.limit", 100)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.jitter", 0.25)
	v.SetDefault("circuit.failure_threshold", 10)
	v.SetDefault("circuit.cooldown_secs", 60)
	v.SetDefault("monitoring.error_rate_threshold", 0.10)
	v.SetDefault("monitoring.sanity_rate_threshold", 0.50)
	v.SetDefault("monitoring.sync_error_threshold", 25)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by the given command mode are
// present. Modes: enrich, sync, migrate, reprice, stats, dedupe.
func (c *Config) Validate(mode string) error {
	var errs []string

	needStore, needSF, needSerp := false, false, false
	switch mode {
	case "enrich":
		needStore, needSF, needSerp = true, true, true
	case "sync", "stats", "dedupe":
		needStore, needSF = true, true
	case "migrate", "reprice":
		needStore = true
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needStore {
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
		}
	}
	if needSF {
		sf := c.Salesforce
		if sf.ClientID == "" {
			errs = append(errs, "salesforce.client_id is required")
		}
		if sf.KeyPath == "" && sf.ClientSecret == "" {
			errs = append(errs, "salesforce.key_path or salesforce.client_secret is required")
		}
		if sf.KeyPath != "" && sf.Username == "" {
			errs = append(errs, "salesforce.username is required for JWT auth")
		}
	}
	if needSerp && c.SerpAPI.Key == "" {
		errs = append(errs, "serpapi.key is required")
	}

	if mode == "enrich" {
		if c.Enrich.Workers < 1 || c.Enrich.Workers > 100 {
			errs = append(errs, "enrich.workers must be between 1 and 100")
		}
		if c.Enrich.PageSize < 1 || c.Enrich.PageSize > 2000 {
			errs = append(errs, "enrich.page_size must be between 1 and 2000")
		}
		if c.Enrich.MatchThreshold < 0 || c.Enrich.MatchThreshold > 100 {
			errs = append(errs, "enrich.match_threshold must be between 0 and 100")
		}
		switch c.Enrich.Precheck {
		case "store", "remote", "file":
		default:
			errs = append(errs, fmt.Sprintf("enrich.precheck %q must be store, remote or file", c.Enrich.Precheck))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
