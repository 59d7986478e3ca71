package app

import (
	"context"
	"fmt"
	"time"

	"quantlab/internal/backtest"
	qlcfg "quantlab/internal/config"
	"quantlab/internal/logger"
	"quantlab/internal/marketdata"
	"quantlab/internal/scheduler"
	backtesthttp "quantlab/internal/transport/http/backtest"
	"quantlab/internal/universe"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 与定时刷新。
type App struct {
	cfg     *qlcfg.Config
	bars    *universe.BarStore
	results *backtest.ResultStore
	fetcher *marketdata.Service
	sim     *backtest.Simulator
	server  *backtesthttp.Server
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *qlcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与可选的每日行情刷新，阻塞直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("http server not initialized")
	}

	if a.Summary != nil {
		a.Summary.Print()
	}

	if a.sim != nil {
		a.sim.SetContext(ctx)
	}
	if a.fetcher != nil {
		a.fetcher.SetContext(ctx)
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if refresh := a.cfg.MarketData.Refresh; refresh.Enabled && a.fetcher != nil {
		group.Go(func() error {
			sched := scheduler.NewAlignedScheduler(ctx, 24*time.Hour, time.Duration(refresh.HourUTC)*time.Hour)
			sched.Start(func() { a.refreshBars(ctx) })
			return nil
		})
	}

	return group.Wait()
}

// refreshBars 提交一次增量拉取：配置了 symbols 就用配置，否则刷新库内全部标的。
func (a *App) refreshBars(ctx context.Context) {
	symbols := a.cfg.MarketData.Refresh.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = a.bars.ListSymbols(ctx)
		if err != nil {
			logger.Errorf("[app] 定时刷新读取标的失败: %v", err)
			return
		}
	}
	if len(symbols) == 0 {
		logger.Warnf("[app] 定时刷新无可用标的，跳过本轮")
		return
	}
	job, err := a.fetcher.SubmitFetch(marketdata.FetchParams{Symbols: symbols})
	if err != nil {
		logger.Errorf("[app] 定时刷新提交失败: %v", err)
		return
	}
	logger.Infof("[app] 定时刷新已提交: job=%s 标的数=%d", job.ID, len(symbols))
}

func (a *App) close() {
	if a.results != nil {
		if err := a.results.Close(); err != nil {
			logger.Warnf("[app] 关闭结果库失败: %v", err)
		}
	}
	if a.bars != nil {
		if err := a.bars.Close(); err != nil {
			logger.Warnf("[app] 关闭行情库失败: %v", err)
		}
	}
}

// Simulator exposes the underlying simulator instance (for testing harnesses).
func (a *App) Simulator() *backtest.Simulator {
	if a == nil {
		return nil
	}
	return a.sim
}
