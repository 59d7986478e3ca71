package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"quantlab/internal/backtest"
	qlcfg "quantlab/internal/config"
	"quantlab/internal/logger"
	"quantlab/internal/marketdata"
	"quantlab/internal/notifier"
	"quantlab/internal/presets"
	"quantlab/internal/reports"
	backtesthttp "quantlab/internal/transport/http/backtest"
	"quantlab/internal/universe"
)

type AppBuilder struct {
	cfg *qlcfg.Config

	barStoreFn    func(string) (*universe.BarStore, error)
	resultStoreFn func(string) (*backtest.ResultStore, error)
	fetcherFn     func(*qlcfg.Config, *universe.BarStore) (*marketdata.Service, error)
	presetsFn     func(string) (*presets.Registry, error)
	rendererFn    func(string, bool) (*reports.Renderer, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *qlcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		barStoreFn:    universe.NewBarStore,
		resultStoreFn: backtest.NewResultStore,
		fetcherFn:     buildFetcher,
		presetsFn:     presets.NewRegistry,
		rendererFn: func(dir string, png bool) (*reports.Renderer, error) {
			return reports.NewRenderer(dir, png)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	bars, err := b.barStoreFn(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("初始化行情库失败: %w", err)
	}
	results, err := b.resultStoreFn(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("初始化结果库失败: %w", err)
	}

	fetcher, err := b.fetcherFn(cfg, bars)
	if err != nil {
		return nil, err
	}

	registry, err := b.loadPresets(cfg)
	if err != nil {
		return nil, err
	}

	var textNotifier notifier.TextNotifier
	if cfg.Notify.Telegram.Enabled {
		textNotifier = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		logger.Infof("✓ Telegram 通知已启用")
	}

	var reporter backtest.ReportRenderer
	if cfg.Report.Enabled {
		renderer, err := b.rendererFn(cfg.Data.ReportDir, cfg.Report.SnapshotPNG)
		if err != nil {
			return nil, fmt.Errorf("初始化报告渲染器失败: %w", err)
		}
		reporter = renderer
	}

	sim, err := backtest.NewSimulator(backtest.SimulatorConfig{
		Bars:          bars,
		Results:       results,
		Fetcher:       fetcher,
		Presets:       registry,
		Reporter:      reporter,
		Notifier:      textNotifier,
		MaxConcurrent: cfg.Backtest.MaxConcurrentRuns,
		ScanParallel:  cfg.Backtest.ScanParallel,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化模拟器失败: %w", err)
	}

	server, err := backtesthttp.NewServer(backtesthttp.Config{
		Addr:      cfg.App.HTTPAddr,
		Bars:      bars,
		Simulator: sim,
		Results:   results,
		Fetcher:   fetcher,
		Presets:   registry,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	symbols, err := bars.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取标的列表失败: %w", err)
	}

	var presetNames []string
	if registry != nil {
		presetNames = registry.Names()
	}

	return &App{
		cfg:     cfg,
		bars:    bars,
		results: results,
		fetcher: fetcher,
		sim:     sim,
		server:  server,
		Summary: &StartupSummary{
			HTTPAddr:       cfg.App.HTTPAddr,
			DataRoot:       cfg.Data.Root,
			UniverseSize:   len(symbols),
			Presets:        presetNames,
			MarketSource:   cfg.MarketData.Source,
			FetcherReady:   fetcher != nil,
			RefreshEnabled: cfg.MarketData.Refresh.Enabled,
			ReportEnabled:  cfg.Report.Enabled,
			NotifyEnabled:  cfg.Notify.Telegram.Enabled,
		},
	}, nil
}

// buildFetcher 构建行情拉取服务；未配置 api_key 时返回 nil，回测仍可使用本地数据。
func buildFetcher(cfg *qlcfg.Config, bars *universe.BarStore) (*marketdata.Service, error) {
	if strings.TrimSpace(cfg.MarketData.APIKey) == "" {
		logger.Warnf("[app] marketdata.api_key 未配置，行情拉取被禁用，仅使用本地已有数据")
		return nil, nil
	}
	source, err := marketdata.NewAlphaVantageSource(cfg.MarketData.APIKey, cfg.MarketData.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("初始化 Alpha Vantage 数据源失败: %w", err)
	}
	svc, err := marketdata.NewService(marketdata.ServiceConfig{
		Store:           bars,
		Sources:         map[string]marketdata.BarSource{cfg.MarketData.Source: source},
		DefaultSource:   cfg.MarketData.Source,
		RateLimitPerMin: cfg.MarketData.RateLimitPerMin,
		MaxConcurrent:   cfg.MarketData.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化行情拉取服务失败: %w", err)
	}
	return svc, nil
}

// loadPresets 加载策略预设；文件不存在时仅告警，预设为可选功能。
func (b *AppBuilder) loadPresets(cfg *qlcfg.Config) (*presets.Registry, error) {
	path := strings.TrimSpace(cfg.Presets.Path)
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("[app] 预设文件 %s 不存在，预设功能被禁用", path)
		return nil, nil
	}
	registry, err := b.presetsFn(path)
	if err != nil {
		return nil, fmt.Errorf("加载策略预设失败: %w", err)
	}
	logger.Infof("✓ 已加载 %d 个策略预设: %v", len(registry.Names()), registry.Names())
	return registry, nil
}

func WithBarStore(fn func(string) (*universe.BarStore, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.barStoreFn = fn
		}
	}
}

func WithResultStore(fn func(string) (*backtest.ResultStore, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.resultStoreFn = fn
		}
	}
}

func WithFetcher(fn func(*qlcfg.Config, *universe.BarStore) (*marketdata.Service, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.fetcherFn = fn
		}
	}
}

func WithPresets(fn func(string) (*presets.Registry, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.presetsFn = fn
		}
	}
}
