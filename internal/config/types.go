package config

import "strings"

// Config 是 QuantLab 的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	Data       DataConfig       `toml:"data"`
	MarketData MarketDataConfig `toml:"marketdata"`
	Backtest   BacktestConfig   `toml:"backtest"`
	Presets    PresetsConfig    `toml:"presets"`
	Notify     NotifyConfig     `toml:"notify"`
	Report     ReportConfig     `toml:"report"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// DataConfig 描述本地数据根目录布局。
type DataConfig struct {
	Root      string `toml:"root"`       // SQLite 库与缓存所在目录
	ReportDir string `toml:"report_dir"` // 回测报告输出目录
}

// MarketDataConfig 控制日线行情拉取。
type MarketDataConfig struct {
	Source          string        `toml:"source"` // 默认数据源名，如 alphavantage
	APIKey          string        `toml:"api_key"`
	BaseURL         string        `toml:"base_url"`
	RateLimitPerMin int           `toml:"rate_limit_per_min"`
	MaxConcurrent   int           `toml:"max_concurrent"`
	Refresh         RefreshConfig `toml:"refresh"`
}

// RefreshConfig 描述每日定时增量刷新。
type RefreshConfig struct {
	Enabled bool     `toml:"enabled"`
	HourUTC int      `toml:"hour_utc"` // 每日触发时刻（UTC 整点）
	Symbols []string `toml:"symbols"`  // 为空时刷新库内全部标的
}

// BacktestConfig 控制回测模拟器的并发参数。
type BacktestConfig struct {
	MaxConcurrentRuns int `toml:"max_concurrent_runs"`
	ScanParallel      int `toml:"scan_parallel"`
}

// PresetsConfig 指向策略预设 YAML。
type PresetsConfig struct {
	Path string `toml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// ReportConfig 控制报告渲染。
type ReportConfig struct {
	Enabled     bool `toml:"enabled"`
	SnapshotPNG bool `toml:"snapshot_png"` // 依赖本机 headless 浏览器
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
