package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置加载失败: %v", err)
	}

	if cfg.Scheduler.Interval != time.Hour {
		t.Fatalf("默认分析间隔应为 1h: %s", cfg.Scheduler.Interval)
	}
	if cfg.Analysis.LowStockUnits != 10 {
		t.Fatalf("默认低库存阈值应为 10: %d", cfg.Analysis.LowStockUnits)
	}
	if cfg.Analysis.CriticalStockoutDays != 3 {
		t.Fatalf("默认临界断货天数应为 3: %d", cfg.Analysis.CriticalStockoutDays)
	}
	if cfg.Alerting.Webhook.Timeout != 30*time.Second {
		t.Fatalf("默认 webhook 超时应为 30s: %s", cfg.Alerting.Webhook.Timeout)
	}
	if cfg.Alerting.Webhook.RetryAttempts != 3 {
		t.Fatalf("默认重试次数应为 3: %d", cfg.Alerting.Webhook.RetryAttempts)
	}
	if cfg.Alerting.Webhook.RetryBaseDelay != time.Second {
		t.Fatalf("默认重试基础延迟应为 1s: %s", cfg.Alerting.Webhook.RetryBaseDelay)
	}
	if cfg.Alerting.Webhook.UserAgent != "stockwatcher/1.0" {
		t.Fatalf("默认 UA 不符: %s", cfg.Alerting.Webhook.UserAgent)
	}
	if cfg.Alerting.Chat.Timeout != 10*time.Second {
		t.Fatalf("默认 chat 超时应为 10s: %s", cfg.Alerting.Chat.Timeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
scheduler:
  interval: 30m
analysis:
  low_stock_units: 25
  sample_window_days: 14
alerting:
  enabled: true
  channels: [webhook, email]
  email:
    enabled: true
    api_key: key
    api_secret: secret
    sender_email: alerts@example.com
  chat:
    timeout: 3s
  webhook:
    timeout: 5s
    retry_attempts: 2
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置文件失败: %v", err)
	}

	if cfg.Scheduler.Interval != 30*time.Minute {
		t.Fatalf("interval 应为 30m: %s", cfg.Scheduler.Interval)
	}
	if cfg.Analysis.LowStockUnits != 25 {
		t.Fatalf("low_stock_units 应为 25: %d", cfg.Analysis.LowStockUnits)
	}
	if cfg.Analysis.SampleWindowDays != 14 {
		t.Fatalf("sample_window_days 应为 14: %d", cfg.Analysis.SampleWindowDays)
	}
	if !cfg.Alerting.Enabled {
		t.Fatal("alerting 应启用")
	}
	if len(cfg.Alerting.Channels) != 2 {
		t.Fatalf("channels 应为 2 个: %v", cfg.Alerting.Channels)
	}
	if cfg.Alerting.Webhook.Timeout != 5*time.Second {
		t.Fatalf("webhook timeout 应为 5s: %s", cfg.Alerting.Webhook.Timeout)
	}
	if cfg.Alerting.Chat.Timeout != 3*time.Second {
		t.Fatalf("chat timeout 应为 3s: %s", cfg.Alerting.Chat.Timeout)
	}
	// Unset keys keep their defaults.
	if cfg.Alerting.Webhook.RetryBaseDelay != time.Second {
		t.Fatalf("未配置的重试延迟应保持默认: %s", cfg.Alerting.Webhook.RetryBaseDelay)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{name: "zero interval", mutate: func(cfg *Config) { cfg.Scheduler.Interval = 0 }},
		{name: "zero low stock", mutate: func(cfg *Config) { cfg.Analysis.LowStockUnits = 0 }},
		{name: "zero retry attempts", mutate: func(cfg *Config) { cfg.Alerting.Webhook.RetryAttempts = 0 }},
		{name: "chat without token", mutate: func(cfg *Config) {
			cfg.Alerting.Chat.Enabled = true
			cfg.Alerting.Chat.ChatID = "chat"
		}},
		{name: "email without sender", mutate: func(cfg *Config) {
			cfg.Alerting.Email.Enabled = true
			cfg.Alerting.Email.APIKey = "k"
			cfg.Alerting.Email.APISecret = "s"
		}},
		{name: "insight without base url", mutate: func(cfg *Config) { cfg.Insight.Enabled = true }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("应返回校验错误")
			}
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}
	if got := cfg.ResolveMaxPoints(0); got != 500 {
		t.Fatalf("未覆盖时应取配置值: %d", got)
	}
	if got := cfg.ResolveMaxPoints(42); got != 42 {
		t.Fatalf("覆盖值应优先: %d", got)
	}
}
