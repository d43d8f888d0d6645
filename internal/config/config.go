package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"inventory-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Insight   InsightConfig   `mapstructure:"insight"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the analysis cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// AnalysisConfig carries the default stock thresholds. Per-shop settings
// override these where set.
type AnalysisConfig struct {
	LowStockUnits        int64 `mapstructure:"low_stock_units"`
	CriticalStockUnits   int64 `mapstructure:"critical_stock_units"`
	CriticalStockoutDays int64 `mapstructure:"critical_stockout_days"`
	SampleWindowDays     int   `mapstructure:"sample_window_days"`
}

// AlertingConfig defines channel credentials and routing.
type AlertingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Channels []string      `mapstructure:"channels"`
	Email    EmailConfig   `mapstructure:"email"`
	Chat     ChatConfig    `mapstructure:"chat"`
	Webhook  WebhookConfig `mapstructure:"webhook"`
	SMS      SMSConfig     `mapstructure:"sms"`
}

// EmailConfig covers the transactional email API.
type EmailConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	APISecret   string        `mapstructure:"api_secret"`
	SenderEmail string        `mapstructure:"sender_email"`
	SenderName  string        `mapstructure:"sender_name"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ChatConfig 描述 Telegram 告警参数。
type ChatConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WebhookConfig parameterises the signed generic webhook transport.
// The target URL and secret come from each shop's settings; these are the
// transport-level knobs.
type WebhookConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// SMSConfig covers the SMS messaging API.
type SMSConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	APIBase    string        `mapstructure:"api_base"`
	AccountSID string        `mapstructure:"account_sid"`
	AuthToken  string        `mapstructure:"auth_token"`
	FromNumber string        `mapstructure:"from_number"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// InsightConfig points at the external text-generation service.
type InsightConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOCKWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stockwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("analysis.low_stock_units", int64(10))
	v.SetDefault("analysis.critical_stock_units", int64(0))
	v.SetDefault("analysis.critical_stockout_days", int64(3))
	v.SetDefault("analysis.sample_window_days", 30)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"webhook"})
	v.SetDefault("alerting.email.base_url", "https://api.mailjet.com")
	v.SetDefault("alerting.email.timeout", "10s")
	v.SetDefault("alerting.chat.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.chat.timeout", "10s")
	v.SetDefault("alerting.webhook.enabled", true)
	v.SetDefault("alerting.webhook.timeout", "30s")
	v.SetDefault("alerting.webhook.retry_attempts", 3)
	v.SetDefault("alerting.webhook.retry_base_delay", "1s")
	v.SetDefault("alerting.webhook.user_agent", "stockwatcher/1.0")
	v.SetDefault("alerting.sms.api_base", "https://api.twilio.com")
	v.SetDefault("alerting.sms.timeout", "10s")

	v.SetDefault("insight.enabled", false)
	v.SetDefault("insight.timeout", "15s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Analysis.LowStockUnits <= 0 {
		return fmt.Errorf("analysis.low_stock_units must be greater than zero")
	}
	if c.Analysis.CriticalStockoutDays <= 0 {
		return fmt.Errorf("analysis.critical_stockout_days must be greater than zero")
	}
	if c.Analysis.SampleWindowDays <= 0 {
		return fmt.Errorf("analysis.sample_window_days must be greater than zero")
	}
	if c.Alerting.Webhook.RetryAttempts <= 0 {
		return fmt.Errorf("alerting.webhook.retry_attempts must be greater than zero")
	}
	if c.Alerting.Chat.Enabled {
		if c.Alerting.Chat.BotToken == "" {
			return fmt.Errorf("alerting.chat.bot_token 必须配置")
		}
		if c.Alerting.Chat.ChatID == "" {
			return fmt.Errorf("alerting.chat.chat_id 必须配置")
		}
	}
	if c.Alerting.Email.Enabled {
		if c.Alerting.Email.APIKey == "" || c.Alerting.Email.APISecret == "" {
			return fmt.Errorf("alerting.email.api_key and api_secret are required")
		}
		if c.Alerting.Email.SenderEmail == "" {
			return fmt.Errorf("alerting.email.sender_email is required")
		}
	}
	if c.Alerting.SMS.Enabled {
		if c.Alerting.SMS.AccountSID == "" || c.Alerting.SMS.AuthToken == "" {
			return fmt.Errorf("alerting.sms.account_sid and auth_token are required")
		}
	}
	if c.Insight.Enabled && c.Insight.BaseURL == "" {
		return fmt.Errorf("insight.base_url is required when insight.enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
