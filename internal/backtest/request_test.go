package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantlab/internal/indicators"
)

func floatPtr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }

func TestParseRunRequest_Valid(t *testing.T) {
	raw := []byte(`{
		"start": "2020-01-01",
		"end": "2021-12-31",
		"indicators": {"use_rsi": true, "rsi_rule": "oversold"},
		"universe": ["aapl", " msft "],
		"capital": 50000,
		"hold_days": 3
	}`)
	req, err := ParseRunRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01", req.Start)
	assert.True(t, req.Indicators.UseRSI)
	assert.InDelta(t, 50000, req.Capital, 1e-9)
	assert.Equal(t, 3, req.HoldDays)
}

func TestParseRunRequest_Invalid(t *testing.T) {
	cases := map[string]string{
		"非法 JSON":    `{"start": `,
		"缺少 end":     `{"start": "2020-01-01"}`,
		"日期格式错误":     `{"start": "2020/01/01", "end": "2021-12-31"}`,
		"capital 为负": `{"start": "2020-01-01", "end": "2021-12-31", "capital": -1}`,
		"hold_days 为零": `{"start": "2020-01-01", "end": "2021-12-31", "hold_days": 0}`,
		"max_horizon 超限": `{"start": "2020-01-01", "end": "2021-12-31", "max_horizon": 61}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRunRequest([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestBuildRunConfig_Defaults(t *testing.T) {
	cfg, err := BuildRunConfig(RunRequest{
		Start:      "2020-01-01",
		End:        "2020-12-31",
		Indicators: indicators.Config{UseRSI: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "indicator", cfg.Strategy)
	assert.InDelta(t, DefaultCapital, cfg.Capital, 1e-9)
	assert.InDelta(t, DefaultFeeBps, cfg.FeeBps, 1e-9)
	assert.Equal(t, DefaultHoldDays, cfg.HoldDays)
	assert.Equal(t, DefaultMaxHorizon, cfg.MaxHorizon)
	assert.Equal(t, DefaultHistHorizon, cfg.HistHorizon)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Start)
	// Normalize 应回填 RSI 默认参数。
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
}

func TestBuildRunConfig_ExplicitZeroSurvives(t *testing.T) {
	// 显式传 0/false 必须原样生效，不能被默认值顶掉。
	raw := []byte(`{
		"start": "2020-01-01",
		"end": "2020-12-31",
		"indicators": {"use_rsi": true},
		"fee_bps": 0,
		"stop_loss_pct": 0,
		"compound": false
	}`)
	req, err := ParseRunRequest(raw)
	require.NoError(t, err)
	require.NotNil(t, req.FeeBps)
	require.NotNil(t, req.Compound)

	cfg, err := BuildRunConfig(req)
	require.NoError(t, err)
	assert.Zero(t, cfg.FeeBps)
	assert.Zero(t, cfg.StopLossPct)
	assert.False(t, cfg.Compound)
}

func TestBuildRunConfig_UniverseUppercased(t *testing.T) {
	cfg, err := BuildRunConfig(RunRequest{
		Start:      "2020-01-01",
		End:        "2020-06-30",
		Universe:   []string{" aapl", "MSFT ", ""},
		Indicators: indicators.Config{UseEMA: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Universe)
}

func TestBuildRunConfig_Rejects(t *testing.T) {
	base := RunRequest{Start: "2020-01-01", End: "2020-12-31", Indicators: indicators.Config{UseRSI: true}}

	end := base
	end.End = "2019-12-31"
	_, err := BuildRunConfig(end)
	assert.ErrorContains(t, err, "end")

	hold := base
	hold.HoldDays = 20
	hold.MaxHorizon = 10
	_, err = BuildRunConfig(hold)
	assert.ErrorContains(t, err, "hold_days")

	hist := base
	hist.HistHorizon = 15
	hist.MaxHorizon = 10
	_, err = BuildRunConfig(hist)
	assert.ErrorContains(t, err, "hist_horizon")

	fee := base
	fee.FeeBps = floatPtr(-2)
	_, err = BuildRunConfig(fee)
	assert.ErrorContains(t, err, "fee_bps")

	noInd := base
	noInd.Indicators = indicators.Config{}
	_, err = BuildRunConfig(noInd)
	assert.Error(t, err)
}
