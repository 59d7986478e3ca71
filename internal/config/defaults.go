package config

import "strings"

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9991"
	defaultAppLogPath  = "/data/logs/quantlab.log"

	defaultDataRoot  = "/data/quantlab"
	defaultReportDir = "/data/quantlab/reports"

	defaultMarketSource  = "alphavantage"
	defaultMarketBaseURL = "https://www.alphavantage.co/query"
	// Alpha Vantage 免费档限频：每分钟 5 次。
	defaultMarketRatePerMin = 5
	defaultMarketConcurrent = 2
	defaultRefreshHourUTC   = 22

	defaultBacktestMaxRuns      = 2
	defaultBacktestScanParallel = 8

	defaultPresetsPath = "configs/presets.yaml"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.MarketData.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Presets.applyDefaults(keys)
	c.Report.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.root", &d.Root, defaultDataRoot),
		stringFieldDefault("data.report_dir", &d.ReportDir, defaultReportDir),
	)
}

func (m *MarketDataConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("marketdata.source", &m.Source, defaultMarketSource),
		stringFieldDefault("marketdata.base_url", &m.BaseURL, defaultMarketBaseURL),
		fieldDefault{
			key:   "marketdata.rate_limit_per_min",
			need:  func() bool { return m.RateLimitPerMin <= 0 },
			apply: func() { m.RateLimitPerMin = defaultMarketRatePerMin },
		},
		fieldDefault{
			key:   "marketdata.max_concurrent",
			need:  func() bool { return m.MaxConcurrent <= 0 },
			apply: func() { m.MaxConcurrent = defaultMarketConcurrent },
		},
		fieldDefault{
			key:   "marketdata.refresh.hour_utc",
			need:  func() bool { return m.Refresh.HourUTC <= 0 },
			apply: func() { m.Refresh.HourUTC = defaultRefreshHourUTC },
		},
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "backtest.max_concurrent_runs",
			need:  func() bool { return b.MaxConcurrentRuns <= 0 },
			apply: func() { b.MaxConcurrentRuns = defaultBacktestMaxRuns },
		},
		fieldDefault{
			key:   "backtest.scan_parallel",
			need:  func() bool { return b.ScanParallel <= 0 },
			apply: func() { b.ScanParallel = defaultBacktestScanParallel },
		},
	)
}

func (p *PresetsConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("presets.path", &p.Path, defaultPresetsPath),
	)
}

func (r *ReportConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("report.enabled", &r.Enabled, true),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
