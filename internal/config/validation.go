package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.MarketData.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %s", a.LogLevel)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (m *MarketDataConfig) validate() error {
	if m.RateLimitPerMin <= 0 {
		return fmt.Errorf("marketdata.rate_limit_per_min must be > 0")
	}
	if m.MaxConcurrent <= 0 {
		return fmt.Errorf("marketdata.max_concurrent must be > 0")
	}
	if m.Refresh.Enabled {
		if m.Refresh.HourUTC < 0 || m.Refresh.HourUTC > 23 {
			return fmt.Errorf("marketdata.refresh.hour_utc must be in [0,23]")
		}
		// 定时刷新依赖可用的数据源凭证。
		if strings.TrimSpace(m.APIKey) == "" {
			return fmt.Errorf("marketdata.refresh enabled but api_key is empty")
		}
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	if b.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("backtest.max_concurrent_runs must be > 0")
	}
	if b.ScanParallel <= 0 {
		return fmt.Errorf("backtest.scan_parallel must be > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
