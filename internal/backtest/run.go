package backtest

import (
	"time"

	"quantlab/internal/indicators"
	"quantlab/internal/universe"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunRequest 为 HTTP 提交使用：指标开关、标的池过滤与资金参数。
// 费率与风控字段用指针区分"显式传 0/false"与"未填"：前者原样生效，后者走默认值或预设。
type RunRequest struct {
	Strategy      string            `json:"strategy"`
	Indicators    indicators.Config `json:"indicators"`
	Filters       *universe.Filters `json:"filters,omitempty"`
	Universe      []string          `json:"universe,omitempty"`
	Start         string            `json:"start"`
	End           string            `json:"end"`
	Capital       float64           `json:"capital"`
	FeeBps        *float64          `json:"fee_bps,omitempty"`
	HoldDays      int               `json:"hold_days"`
	MaxHorizon    int               `json:"max_horizon"`
	HistHorizon   int               `json:"hist_horizon"`
	StopLossPct   *float64          `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64          `json:"take_profit_pct,omitempty"`
	Compound      *bool             `json:"compound,omitempty"`
}

// RunConfig 记录本次回测的参数快照，便于重放。
type RunConfig struct {
	Strategy      string            `json:"strategy"`
	Indicators    indicators.Config `json:"indicators"`
	Filters       *universe.Filters `json:"filters,omitempty"`
	Universe      []string          `json:"universe,omitempty"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Capital       float64           `json:"capital"`
	FeeBps        float64           `json:"fee_bps"`
	HoldDays      int               `json:"hold_days"`
	MaxHorizon    int               `json:"max_horizon"`
	HistHorizon   int               `json:"hist_horizon"`
	StopLossPct   float64           `json:"stop_loss_pct"`
	TakeProfitPct float64           `json:"take_profit_pct"`
	Compound      bool              `json:"compound"`
}

// RunStats 汇总一次回测的规模与绩效，供列表页展示。
type RunStats struct {
	UniverseSize   int                `json:"universe_size"`
	PicksCount     int                `json:"picks_count"`
	TradesCount    int                `json:"trades_count"`
	SkippedSymbols int                `json:"skipped_symbols"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
	DistinctRatio  float64            `json:"distinct_return_ratio"`
	ReconcileOK    bool               `json:"reconcile_ok"`
	FinishedAt     time.Time          `json:"finished_at"`
}

// Run 表示一次回测任务。
type Run struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Config      RunConfig `json:"config"`
	Stats       RunStats  `json:"stats"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at"`
}
