package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticSeries(symbol string, n int) SymbolSeries {
	s := SymbolSeries{Symbol: symbol}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := float64(i + 1)
		s.Dates = append(s.Dates, base.AddDate(0, 0, i))
		s.AdjClose = append(s.AdjClose, price)
		s.High = append(s.High, price*1.01)
		s.Low = append(s.Low, price*0.99)
		s.Close = append(s.Close, price)
		s.Volume = append(s.Volume, 10)
	}
	return s
}

func TestScan_OBVPositiveOnRisingPrices(t *testing.T) {
	cfg := Config{UseOBV: true, OBVRule: RulePositive, Policy: PolicyAny}
	series := []SymbolSeries{syntheticSeries("AAA", 40)}

	result, err := Scan(series, cfg, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, result.Universe)
	// 价格单调上行时 OBV 恒为正：除最后一天（无前向数据）外每天都是 pick。
	require.Len(t, result.Picks, 39)

	first := result.Picks[0]
	assert.Equal(t, "AAA", first.Symbol)
	assert.Equal(t, 1, first.TriggerCount)
	assert.Equal(t, []string{SignalOBV}, first.Triggered)
	assert.InDelta(t, math.Log(2.0/1.0), first.FwdReturns[1], 1e-12)
	assert.InDelta(t, math.Log(3.0/1.0), first.FwdReturns[2], 1e-12)

	// 倒数第二天只剩 1 日前向收益。
	last := result.Picks[len(result.Picks)-1]
	assert.Contains(t, last.FwdReturns, 1)
	assert.NotContains(t, last.FwdReturns, 2)
}

func TestScan_DropsRowsWithMissingPrices(t *testing.T) {
	s := syntheticSeries("AAA", 40)
	s.High[3] = math.NaN()
	s.AdjClose[7] = math.NaN()
	cfg := Config{UseOBV: true, OBVRule: RulePositive, Policy: PolicyAny}

	result, err := Scan([]SymbolSeries{s}, cfg, 2)
	require.NoError(t, err)
	// 缺价的 2 行被剔除，剩 38 行；最后一行没有前向收益。
	require.Len(t, result.Picks, 37)
	for _, p := range result.Picks {
		assert.False(t, math.IsNaN(p.AdjClose))
	}
}

func TestScan_SkipsShortHistory(t *testing.T) {
	cfg := Config{UseRSI: true, RSIRule: RuleOversold, Policy: PolicyAny}
	series := []SymbolSeries{syntheticSeries("AAA", 5)}

	result, err := Scan(series, cfg, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Picks)
}

func TestScan_RequiresEnabledIndicator(t *testing.T) {
	_, err := Scan([]SymbolSeries{syntheticSeries("AAA", 40)}, Config{}, 10)
	assert.Error(t, err)
}

func TestScan_OBVWithoutVolumeFails(t *testing.T) {
	s := syntheticSeries("AAA", 40)
	s.Volume = nil
	cfg := Config{UseOBV: true, OBVRule: RulePositive}
	_, err := Scan([]SymbolSeries{s}, cfg, 2)
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	a := []bool{true, false, true, false}
	b := []bool{true, true, false, false}

	t.Run("any", func(t *testing.T) {
		out, err := Combine([][]bool{a, b}, PolicyAny, 0)
		require.NoError(t, err)
		assert.Equal(t, []bool{true, true, true, false}, out)
	})
	t.Run("all", func(t *testing.T) {
		out, err := Combine([][]bool{a, b}, PolicyAll, 0)
		require.NoError(t, err)
		assert.Equal(t, []bool{true, false, false, false}, out)
	})
	t.Run("atleast_k", func(t *testing.T) {
		out, err := Combine([][]bool{a, b}, PolicyAtLeastK, 2)
		require.NoError(t, err)
		assert.Equal(t, []bool{true, false, false, false}, out)
	})
	t.Run("empty input", func(t *testing.T) {
		_, err := Combine(nil, PolicyAny, 0)
		assert.Error(t, err)
	})
	t.Run("length mismatch", func(t *testing.T) {
		_, err := Combine([][]bool{a, {true}}, PolicyAny, 0)
		assert.Error(t, err)
	})
}

func TestForwardLogReturns(t *testing.T) {
	prices := []float64{100, 110, 121}
	fwd := ForwardLogReturns(prices, 2)

	require.Len(t, fwd, 2)
	assert.InDelta(t, math.Log(1.1), fwd[1][0], 1e-12)
	assert.InDelta(t, math.Log(1.1), fwd[1][1], 1e-12)
	assert.True(t, math.IsNaN(fwd[1][2]))
	assert.InDelta(t, math.Log(1.21), fwd[2][0], 1e-12)
	assert.True(t, math.IsNaN(fwd[2][1]))
}

func TestComputeStats_MatchesReference(t *testing.T) {
	s := ComputeStats([]float64{0.1, 0.2, -0.05, 0.3, 0.0})
	assert.Equal(t, 5, s.Count)
	assert.InDelta(t, 0.11, s.Mean, 1e-12)
	assert.InDelta(t, 0.1, s.Median, 1e-12)
	assert.InDelta(t, 0.12806248474865697, s.Std, 1e-12)
	assert.InDelta(t, 0.30662793472810657, s.Skew, 1e-12)
	assert.InDelta(t, -1.543723973825105, s.Kurt, 1e-9)
}

func TestComputeStats_DropsNaN(t *testing.T) {
	s := ComputeStats([]float64{0.1, math.NaN(), 0.3})
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 0.2, s.Mean, 1e-12)
	assert.True(t, math.IsNaN(s.Skew))
	assert.True(t, math.IsNaN(s.Kurt))
}

func TestComputeStats_Empty(t *testing.T) {
	s := ComputeStats(nil)
	assert.Zero(t, s.Count)
	assert.True(t, math.IsNaN(s.Mean))
}

func TestConfigNormalizeAndMinObs(t *testing.T) {
	cfg := Config{UseRSI: true, UseMACD: true}
	cfg.Normalize()
	assert.Equal(t, 14, cfg.RSIPeriod)
	assert.Equal(t, 30.0, cfg.RSIOversold)
	assert.Equal(t, 26, cfg.MACDSlow)
	assert.Equal(t, PolicyAny, cfg.Policy)
	assert.Equal(t, 2, cfg.AtLeastK)
	// MACD 慢线 26 是启用指标中的最长周期。
	assert.Equal(t, 26, cfg.MinObservations(10))
	assert.Equal(t, 31, cfg.MinObservations(30))
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{UseRSI: true, RSIRule: "bogus"}
	cfg.Normalize()
	cfg.RSIRule = "bogus"
	assert.Error(t, cfg.Validate())

	cfg = Config{}
	cfg.Normalize()
	assert.Error(t, cfg.Validate())
}
