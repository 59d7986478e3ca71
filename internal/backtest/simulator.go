package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"quantlab/internal/engine"
	"quantlab/internal/indicators"
	"quantlab/internal/logger"
	"quantlab/internal/marketdata"
	"quantlab/internal/notifier"
	"quantlab/internal/presets"
	"quantlab/internal/universe"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ReportRenderer 在回测完成后生成报告产物（HTML/PNG），返回产物路径。
type ReportRenderer interface {
	RenderRun(ctx context.Context, runID, title string, equity, drawdown engine.Series, metrics map[string]float64) (string, error)
}

type SimulatorConfig struct {
	Bars          *universe.BarStore
	Results       *ResultStore
	Fetcher       *marketdata.Service
	Presets       *presets.Registry
	Reporter      ReportRenderer
	Notifier      notifier.TextNotifier
	MaxConcurrent int
	ScanParallel  int
}

// Simulator 把一次回测请求推演为成交、流水与绩效指标。
// 配置错误在 StartRun 阶段同步返回；数据质量问题只会让个别标的/候选被跳过。
type Simulator struct {
	bars     *universe.BarStore
	results  *ResultStore
	fetcher  *marketdata.Service
	presets  *presets.Registry
	reporter ReportRenderer
	notifier notifier.TextNotifier

	scanParallel int
	sem          chan struct{}
	baseCtx      context.Context
}

func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if cfg.Bars == nil {
		return nil, fmt.Errorf("bar store 不能为空")
	}
	if cfg.Results == nil {
		return nil, fmt.Errorf("result store 不能为空")
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	scanParallel := cfg.ScanParallel
	if scanParallel <= 0 {
		scanParallel = 8
	}
	return &Simulator{
		bars:         cfg.Bars,
		results:      cfg.Results,
		fetcher:      cfg.Fetcher,
		presets:      cfg.Presets,
		reporter:     cfg.Reporter,
		notifier:     cfg.Notifier,
		scanParallel: scanParallel,
		sem:          make(chan struct{}, maxConcurrent),
		baseCtx:      context.Background(),
	}, nil
}

// SetContext 注入宿主 ctx，用于任务取消。
func (s *Simulator) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Simulator) ctx() context.Context {
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

// StartRun 校验请求、登记任务并立即返回；模拟在后台进行。
func (s *Simulator) StartRun(req RunRequest) (Run, error) {
	req = s.applyPreset(req)
	cfg, err := BuildRunConfig(req)
	if err != nil {
		return Run{}, err
	}
	run := Run{
		ID:     uuid.NewString(),
		Status: RunStatusPending,
		Config: cfg,
	}
	if err := s.results.InsertRun(s.ctx(), run); err != nil {
		return Run{}, err
	}
	go s.runLoop(run.ID, cfg)
	return run, nil
}

// applyPreset 用命名预设补齐请求中省略的指标与风控参数。
// 只补 nil 的指针字段：显式传入的 0/false 不会被预设覆盖。
func (s *Simulator) applyPreset(req RunRequest) RunRequest {
	if s.presets == nil {
		return req
	}
	preset, ok := s.presets.Resolve(req.Strategy)
	if !ok {
		if req.Strategy != "" && req.Strategy != "indicator" {
			logger.Warnf("[backtest] 未知预设 %s，按请求原样执行", req.Strategy)
		}
		return req
	}
	if !req.Indicators.Enabled() {
		req.Indicators = preset.Indicators
	}
	if req.HoldDays <= 0 && preset.HoldDays > 0 {
		req.HoldDays = preset.HoldDays
	}
	if req.StopLossPct == nil && preset.StopLossPct > 0 {
		v := preset.StopLossPct
		req.StopLossPct = &v
	}
	if req.TakeProfitPct == nil && preset.TakeProfitPct > 0 {
		v := preset.TakeProfitPct
		req.TakeProfitPct = &v
	}
	if req.Compound == nil && preset.Compound {
		v := preset.Compound
		req.Compound = &v
	}
	return req
}

func (s *Simulator) runLoop(runID string, cfg RunConfig) {
	select {
	case s.sem <- struct{}{}:
	default:
		logger.Warnf("[backtest] run %s 等待可用 worker", runID)
		s.sem <- struct{}{}
	}
	defer func() { <-s.sem }()

	ctx := s.ctx()
	if err := s.execute(ctx, runID, cfg); err != nil {
		logger.Warnf("[backtest] run %s 失败: %v", runID, err)
		_ = s.results.UpdateRunStatus(ctx, runID, RunStatusFailed, err.Error())
	}
}

func (s *Simulator) execute(ctx context.Context, runID string, cfg RunConfig) error {
	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, "构建标的池…")

	metas, err := s.bars.ListMeta(ctx)
	if err != nil {
		return fmt.Errorf("读取标的元数据失败: %w", err)
	}
	stored, err := s.bars.ListSymbols(ctx)
	if err != nil {
		return fmt.Errorf("读取已入库标的失败: %w", err)
	}
	fallback := stored
	if len(fallback) == 0 {
		fallback = universe.DefaultTickers()
	}
	symbols, err := universe.BuildUniverse(metas, cfg.Filters, cfg.Universe, fallback)
	if err != nil {
		return err
	}
	logger.Infof("[backtest] run %s 标的池=%d", runID, len(symbols))

	if err := s.ensureBars(ctx, runID, symbols, cfg); err != nil {
		return err
	}

	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, fmt.Sprintf("加载 %d 只标的的行情…", len(symbols)))
	series, missing, err := s.loadSeries(ctx, symbols, cfg)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("标的池内没有任何可用行情数据")
	}
	if missing > 0 {
		logger.Warnf("[backtest] run %s 有 %d 只标的无行情，跳过", runID, missing)
	}

	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, "扫描指标信号…")
	scan, err := indicators.Scan(series, cfg.Indicators, cfg.MaxHorizon)
	if err != nil {
		return err
	}
	logger.Infof("[backtest] run %s picks=%d skipped=%d", runID, len(scan.Picks), scan.Skipped)

	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, "模拟资金执行…")
	result := engine.BuildTrades(scan.Picks, engine.ExecConfig{
		HoldDays:       cfg.HoldDays,
		FeeModel:       engine.FeeModel{FeeBps: cfg.FeeBps},
		InitialCapital: cfg.Capital,
		StopLossPct:    cfg.StopLossPct,
		TakeProfitPct:  cfg.TakeProfitPct,
		Compound:       cfg.Compound,
	})

	equity := engine.BuildEquityCurve(result.Trades, cfg.Capital)
	drawdown := engine.ComputeDrawdown(equity)
	metrics := engine.ComputeMetrics(equity, drawdown, engine.DefaultAnnualizationFactor)
	distinct := engine.WarnIfReturnsConstant(result.Trades, 0.5)
	recon := engine.ReconcileLedger(result, cfg.Capital)

	if err := s.persistArtifacts(ctx, runID, cfg, scan, result, equity, drawdown); err != nil {
		return err
	}

	stats := RunStats{
		UniverseSize:   len(series),
		PicksCount:     len(scan.Picks),
		TradesCount:    len(result.Trades),
		SkippedSymbols: scan.Skipped + missing,
		Metrics:        metrics,
		DistinctRatio:  distinct,
		ReconcileOK:    recon.OK,
		FinishedAt:     time.Now(),
	}
	if err := s.results.CompleteRun(ctx, runID, RunStatusDone, "完成", stats); err != nil {
		return err
	}

	s.renderReport(ctx, runID, cfg, equity, drawdown, metrics)
	s.notify(runID, cfg, stats)
	return nil
}

// ensureBars 对没有任何行情的标的触发一次补数，失败只告警（后续按缺数据跳过）。
func (s *Simulator) ensureBars(ctx context.Context, runID string, symbols []string, cfg RunConfig) error {
	if s.fetcher == nil {
		return nil
	}
	var empty []string
	for _, sym := range symbols {
		n, err := s.bars.CountBars(ctx, sym)
		if err != nil {
			return err
		}
		if n == 0 {
			empty = append(empty, sym)
		}
	}
	if len(empty) == 0 {
		return nil
	}
	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, fmt.Sprintf("下载 %d 只标的的历史行情…", len(empty)))
	job, err := s.fetcher.SubmitFetch(marketdata.FetchParams{
		Symbols: empty,
		Start:   cfg.Start,
		End:     cfg.End,
	})
	if err != nil {
		logger.Warnf("[backtest] run %s 补数提交失败: %v", runID, err)
		return nil
	}
	return s.waitFetchJob(ctx, runID, job.ID)
}

func (s *Simulator) waitFetchJob(ctx context.Context, runID, jobID string) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap, ok := s.fetcher.JobSnapshot(jobID)
			if !ok {
				return nil
			}
			switch snap.Status {
			case marketdata.JobStatusDone:
				return nil
			case marketdata.JobStatusPartial:
				logger.Warnf("[backtest] run %s 补数部分失败: %s", runID, snap.Message)
				return nil
			case marketdata.JobStatusFailed:
				logger.Warnf("[backtest] run %s 补数失败: %s", runID, snap.Message)
				return nil
			}
			if snap.Total > 0 {
				percent := float64(snap.Completed) / float64(snap.Total) * 100
				msg := fmt.Sprintf("下载行情 %.1f%%", percent)
				_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, msg)
			}
		}
	}
}

// loadSeries 并行加载各标的的日线并转换为指标层输入；无数据的标的计入 missing。
func (s *Simulator) loadSeries(ctx context.Context, symbols []string, cfg RunConfig) ([]indicators.SymbolSeries, int, error) {
	var (
		mu      sync.Mutex
		out     []indicators.SymbolSeries
		missing int
	)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.scanParallel)
	for _, sym := range symbols {
		sym := sym
		group.Go(func() error {
			bars, err := s.bars.LoadBars(gctx, sym, cfg.Start, cfg.End)
			if err != nil {
				return fmt.Errorf("加载 %s 行情失败: %w", sym, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if len(bars) == 0 {
				missing++
				return nil
			}
			out = append(out, barsToSeries(sym, bars))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, 0, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, missing, nil
}

func barsToSeries(symbol string, bars []universe.Bar) indicators.SymbolSeries {
	s := indicators.SymbolSeries{Symbol: symbol}
	for _, b := range bars {
		s.Dates = append(s.Dates, b.Date)
		s.AdjClose = append(s.AdjClose, b.AdjClose)
		s.High = append(s.High, b.High)
		s.Low = append(s.Low, b.Low)
		s.Close = append(s.Close, b.Close)
		s.Volume = append(s.Volume, b.Volume)
	}
	return s
}

func (s *Simulator) persistArtifacts(ctx context.Context, runID string, cfg RunConfig, scan indicators.ScanResult, result engine.ExecutionResult, equity, drawdown engine.Series) error {
	artifacts := map[string]interface{}{
		ArtifactTrades:   result.Trades,
		ArtifactLedger:   result.Ledger,
		ArtifactEquity:   seriesPayload(equity),
		ArtifactDrawdown: seriesPayload(drawdown),
		ArtifactPicks:    picksPayload(scan.Picks),
		ArtifactStats:    scan.Stats,
		ArtifactHist:     indicators.HistogramData(scan.Picks, cfg.HistHorizon),
	}
	for kind, payload := range artifacts {
		if err := s.results.SaveArtifact(ctx, runID, kind, payload); err != nil {
			return fmt.Errorf("保存 %s 产物失败: %w", kind, err)
		}
	}
	return nil
}

func (s *Simulator) renderReport(ctx context.Context, runID string, cfg RunConfig, equity, drawdown engine.Series, metrics map[string]float64) {
	if s.reporter == nil || equity.Empty() {
		return
	}
	title := fmt.Sprintf("%s %s → %s", cfg.Strategy, cfg.Start.Format(dateLayout), cfg.End.Format(dateLayout))
	path, err := s.reporter.RenderRun(ctx, runID, title, equity, drawdown, metrics)
	if err != nil {
		logger.Warnf("[backtest] run %s 报告生成失败: %v", runID, err)
		return
	}
	if err := s.results.SaveArtifact(ctx, runID, ArtifactReport, map[string]string{"path": path}); err != nil {
		logger.Warnf("[backtest] run %s 报告路径写入失败: %v", runID, err)
	}
}

func (s *Simulator) notify(runID string, cfg RunConfig, stats RunStats) {
	if s.notifier == nil {
		return
	}
	ending := 0.0
	if v, ok := stats.Metrics["ending_equity"]; ok {
		ending = v
	}
	maxDD := 0.0
	if v, ok := stats.Metrics["max_drawdown"]; ok {
		maxDD = v
	}
	msg := fmt.Sprintf("*回测完成* ✅\n```\nid       : %s\nstrategy : %s\nuniverse : %d\npicks    : %d\ntrades   : %d\nending   : %.2f\nmaxDD    : %.2f%%\n```\n",
		runID, cfg.Strategy, stats.UniverseSize, stats.PicksCount, stats.TradesCount, ending, maxDD*100)
	if err := s.notifier.SendText(msg); err != nil {
		logger.Warnf("回测通知失败: %v", err)
	}
}
