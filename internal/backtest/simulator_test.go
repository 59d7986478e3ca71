package backtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantlab/internal/engine"
	"quantlab/internal/indicators"
	"quantlab/internal/presets"
	"quantlab/internal/universe"
)

const testPresetFile = `presets:
  swing:
    description: 测试用摆动预设
    indicators:
      use_rsi: true
      rsi_rule: oversold
    hold_days: 5
    stop_loss_pct: 0.05
    take_profit_pct: 0.1
    compound: true
`

func newTestRegistry(t *testing.T) *presets.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPresetFile), 0o644))
	reg, err := presets.NewRegistry(path)
	require.NoError(t, err)
	return reg
}

func TestApplyPreset_FillsOmittedFields(t *testing.T) {
	s := &Simulator{presets: newTestRegistry(t)}

	req := s.applyPreset(RunRequest{Strategy: "swing"})
	assert.True(t, req.Indicators.UseRSI)
	assert.Equal(t, 5, req.HoldDays)
	require.NotNil(t, req.StopLossPct)
	assert.InDelta(t, 0.05, *req.StopLossPct, 1e-12)
	require.NotNil(t, req.TakeProfitPct)
	assert.InDelta(t, 0.1, *req.TakeProfitPct, 1e-12)
	require.NotNil(t, req.Compound)
	assert.True(t, *req.Compound)
}

func TestApplyPreset_KeepsExplicitZeroAndFalse(t *testing.T) {
	s := &Simulator{presets: newTestRegistry(t)}

	req := s.applyPreset(RunRequest{
		Strategy:    "swing",
		Indicators:  indicators.Config{UseEMA: true},
		HoldDays:    2,
		StopLossPct: floatPtr(0),
		Compound:    boolPtr(false),
	})
	// 显式传入的值不被预设覆盖。
	assert.True(t, req.Indicators.UseEMA)
	assert.False(t, req.Indicators.UseRSI)
	assert.Equal(t, 2, req.HoldDays)
	require.NotNil(t, req.StopLossPct)
	assert.Zero(t, *req.StopLossPct)
	require.NotNil(t, req.Compound)
	assert.False(t, *req.Compound)
	// 未填的止盈仍由预设补齐。
	require.NotNil(t, req.TakeProfitPct)
	assert.InDelta(t, 0.1, *req.TakeProfitPct, 1e-12)
}

func TestSimulator_ExecuteAppliesFeeModel(t *testing.T) {
	ctx := context.Background()
	bars, err := universe.NewBarStore(t.TempDir())
	require.NoError(t, err)
	defer bars.Close()
	results, err := NewResultStore(t.TempDir())
	require.NoError(t, err)
	defer results.Close()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var rows []universe.Bar
	for i := 0; i < 40; i++ {
		price := float64(i + 1)
		rows = append(rows, universe.Bar{
			Symbol:   "AAA",
			Date:     base.AddDate(0, 0, i),
			AdjClose: price,
			High:     price * 1.01,
			Low:      price * 0.99,
			Close:    price,
			Volume:   10,
		})
	}
	_, err = bars.UpsertBars(ctx, "AAA", rows)
	require.NoError(t, err)

	sim, err := NewSimulator(SimulatorConfig{Bars: bars, Results: results})
	require.NoError(t, err)

	cfg, err := BuildRunConfig(RunRequest{
		Start:      "2024-01-01",
		End:        "2024-02-28",
		Universe:   []string{"AAA"},
		Indicators: indicators.Config{UseOBV: true, OBVRule: indicators.RulePositive},
		FeeBps:     floatPtr(5),
		HoldDays:   2,
		MaxHorizon: 3,
	})
	require.NoError(t, err)

	runID := "run-fee-flow"
	require.NoError(t, results.InsertRun(ctx, Run{ID: runID, Status: RunStatusPending, Config: cfg}))
	require.NoError(t, sim.execute(ctx, runID, cfg))

	run, err := results.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, run.Status)
	require.Greater(t, run.Stats.TradesCount, 0)

	var trades []engine.Trade
	require.NoError(t, results.LoadArtifact(ctx, runID, ArtifactTrades, &trades))
	require.NotEmpty(t, trades)
	// 配置的 fee_bps 必须逐笔体现在买卖两边的手续费上。
	for _, tr := range trades {
		assert.InDelta(t, tr.BuyNotional*5/10000.0, tr.BuyFee, 1e-9)
		assert.InDelta(t, tr.SellNotional*5/10000.0, tr.SellFee, 1e-9)
	}
}
