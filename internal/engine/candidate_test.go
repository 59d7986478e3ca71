package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func pickWithReturn(symbol string, date time.Time, price float64, hold int, logRet float64) Pick {
	return Pick{
		Symbol:     symbol,
		Date:       date,
		AdjClose:   price,
		FwdReturns: map[int]float64{hold: logRet},
	}
}

func TestBuildCandidates_ConvertsLogReturn(t *testing.T) {
	picks := []Pick{pickWithReturn("AAA", day(2024, 1, 2), 100, 5, math.Log(1.05))}
	out := BuildCandidates(picks, 5, 0, 0)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.05, out[0].GrossReturn, 1e-12)
	assert.InDelta(t, 105.0, out[0].ExitPrice, 1e-9)
	assert.Equal(t, day(2024, 1, 9), out[0].ExitDate)
}

func TestBuildCandidates_StopLossAndTakeProfitClamp(t *testing.T) {
	t.Run("stop loss floors the loss", func(t *testing.T) {
		picks := []Pick{pickWithReturn("AAA", day(2024, 1, 2), 100, 5, math.Log(0.80))}
		out := BuildCandidates(picks, 5, -0.10, 0)
		require.Len(t, out, 1)
		assert.InDelta(t, -0.10, out[0].GrossReturn, 1e-12)
		assert.InDelta(t, 90.0, out[0].ExitPrice, 1e-9)
	})

	t.Run("take profit caps the gain", func(t *testing.T) {
		picks := []Pick{pickWithReturn("AAA", day(2024, 1, 2), 100, 5, math.Log(1.30))}
		out := BuildCandidates(picks, 5, 0, 0.05)
		require.Len(t, out, 1)
		assert.InDelta(t, 0.05, out[0].GrossReturn, 1e-12)
	})

	t.Run("zero thresholds disable clamping", func(t *testing.T) {
		picks := []Pick{pickWithReturn("AAA", day(2024, 1, 2), 100, 5, math.Log(0.80))}
		out := BuildCandidates(picks, 5, 0, 0)
		require.Len(t, out, 1)
		assert.InDelta(t, -0.20, out[0].GrossReturn, 1e-12)
	})
}

func TestBuildCandidates_ExitSkipsWeekends(t *testing.T) {
	// 2024-01-05 是周五，持有 1 个交易日应落在下周一。
	picks := []Pick{pickWithReturn("AAA", day(2024, 1, 5), 100, 1, 0.01)}
	out := BuildCandidates(picks, 1, 0, 0)
	require.Len(t, out, 1)
	assert.Equal(t, day(2024, 1, 8), out[0].ExitDate)

	picks = []Pick{pickWithReturn("AAA", day(2024, 1, 3), 100, 5, 0.01)}
	out = BuildCandidates(picks, 5, 0, 0)
	require.Len(t, out, 1)
	assert.Equal(t, day(2024, 1, 10), out[0].ExitDate)
}

func TestBuildCandidates_SkipsInvalidRows(t *testing.T) {
	picks := []Pick{
		{Symbol: "NORET", Date: day(2024, 1, 2), AdjClose: 100, FwdReturns: map[int]float64{}},
		pickWithReturn("NAN", day(2024, 1, 2), 100, 5, math.NaN()),
		pickWithReturn("BADPRICE", day(2024, 1, 2), 0, 5, 0.01),
		pickWithReturn("NODATE", time.Time{}, 100, 5, 0.01),
		pickWithReturn("OK", day(2024, 1, 2), 100, 5, 0.01),
	}
	out := BuildCandidates(picks, 5, 0, 0)
	require.Len(t, out, 1)
	assert.Equal(t, "OK", out[0].Symbol)
}

func TestBuildCandidates_SortOrder(t *testing.T) {
	picks := []Pick{
		pickWithReturn("ZZZ", day(2024, 1, 2), 100, 5, 0.01),
		pickWithReturn("AAA", day(2024, 1, 3), 100, 5, 0.01),
		pickWithReturn("MMM", day(2024, 1, 2), 100, 5, 0.01),
	}
	out := BuildCandidates(picks, 5, 0, 0)
	require.Len(t, out, 3)
	assert.Equal(t, "MMM", out[0].Symbol)
	assert.Equal(t, "ZZZ", out[1].Symbol)
	assert.Equal(t, "AAA", out[2].Symbol)
}

func TestBuildCandidates_HoldDaysFloor(t *testing.T) {
	picks := []Pick{pickWithReturn("AAA", day(2024, 1, 2), 100, 1, 0.01)}
	out := BuildCandidates(picks, 0, 0, 0)
	require.Len(t, out, 1)
	assert.Equal(t, day(2024, 1, 3), out[0].ExitDate)
}

func TestFeeModel(t *testing.T) {
	m := FeeModel{FeeBps: 5}
	assert.InDelta(t, 0.0005, m.Rate(), 1e-15)
	assert.InDelta(t, 50.0, m.FeeForNotional(100000), 1e-9)
	assert.Zero(t, m.FeeForNotional(-1))
	assert.Zero(t, m.FeeForNotional(math.NaN()))
	assert.InDelta(t, 100.0, m.RoundTripFees(100000, 100000), 1e-9)

	neg := FeeModel{FeeBps: -3}
	assert.Zero(t, neg.Rate())
}
