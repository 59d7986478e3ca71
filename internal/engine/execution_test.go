package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTrades_SequentialNonCompound(t *testing.T) {
	// 三笔互不重叠的交易，峰值并发为 1，每笔按全额资金开仓。
	picks := []Pick{
		pickWithReturn("AAA", day(2024, 1, 2), 100, 5, math.Log(1.05)),
		pickWithReturn("BBB", day(2024, 1, 15), 80, 5, math.Log(1.08)),
		pickWithReturn("CCC", day(2024, 2, 5), 120, 5, math.Log(0.97)),
	}
	cfg := ExecConfig{
		HoldDays:       5,
		FeeModel:       FeeModel{FeeBps: 5},
		InitialCapital: 100000,
		Compound:       false,
	}
	result := BuildTrades(picks, cfg)
	require.Len(t, result.Trades, 3)
	require.Len(t, result.Ledger, 6)

	aaa := result.Trades[0]
	assert.Equal(t, "AAA", aaa.Symbol)
	assert.Equal(t, "long", aaa.Side)
	assert.InDelta(t, 999.5002498750625, aaa.Quantity, 1e-6)
	assert.InDelta(t, 99950.02498750626, aaa.BuyNotional, 1e-4)
	assert.InDelta(t, 49.97501249375313, aaa.BuyFee, 1e-6)
	assert.InDelta(t, 104947.52623688157, aaa.SellNotional, 1e-4)
	assert.InDelta(t, 52.473763118440786, aaa.SellFee, 1e-6)
	assert.InDelta(t, 4895.052473763123, aaa.NetPnL, 1e-4)
	assert.InDelta(t, aaa.NetPnL/aaa.BuyNotional, aaa.NetReturn, 1e-12)
	assert.InDelta(t, 100000, aaa.CapitalAllocated, 1e-6)

	bbb := result.Trades[1]
	assert.InDelta(t, 1249.3753123438282, bbb.Quantity, 1e-6)
	assert.InDelta(t, 7892.053973013503, bbb.NetPnL, 1e-4)

	ccc := result.Trades[2]
	assert.InDelta(t, 832.9168748958855, ccc.Quantity, 1e-6)
	assert.InDelta(t, -3096.9515242378866, ccc.NetPnL, 1e-4)

	last := result.Ledger[len(result.Ledger)-1]
	assert.InDelta(t, 109690.15492253874, last.Cash, 1e-4)
	assert.InDelta(t, last.Cash, last.Equity, 1e-9)
}

func TestBuildTrades_CompoundSplitsCashAcrossSlots(t *testing.T) {
	// 同日入场的两笔交易均分现金：先按 2 个槽位分一半，再把剩余现金给第二笔。
	picks := []Pick{
		pickWithReturn("AAA", day(2024, 1, 2), 100, 5, math.Log(1.05)),
		pickWithReturn("BBB", day(2024, 1, 2), 80, 5, math.Log(0.97)),
	}
	cfg := ExecConfig{
		HoldDays:       5,
		FeeModel:       FeeModel{FeeBps: 5},
		InitialCapital: 10000,
		Compound:       true,
	}
	result := BuildTrades(picks, cfg)
	require.Len(t, result.Trades, 2)

	for _, tr := range result.Trades {
		assert.InDelta(t, 5000, tr.CapitalAllocated, 1e-6)
	}
	// 两笔开仓共用满全部现金。
	buy2 := result.Ledger[1]
	assert.Equal(t, "buy", buy2.Event)
	assert.InDelta(t, 0, buy2.Cash, 1e-6)
}

func TestBuildTrades_ExitSettlesBeforeSameDayEntry(t *testing.T) {
	// B 在 A 的出场日入场：先结算 A 的卖出，现金回笼后才允许 B 买入。
	picks := []Pick{
		pickWithReturn("AAA", day(2024, 1, 2), 100, 5, math.Log(1.05)),
		pickWithReturn("BBB", day(2024, 1, 9), 80, 5, math.Log(1.02)),
	}
	cfg := ExecConfig{
		HoldDays:       5,
		FeeModel:       FeeModel{FeeBps: 5},
		InitialCapital: 100000,
		Compound:       true,
	}
	result := BuildTrades(picks, cfg)
	require.Len(t, result.Trades, 2)
	require.Len(t, result.Ledger, 4)

	assert.Equal(t, "sell", result.Ledger[1].Event)
	assert.Equal(t, "AAA", result.Ledger[1].Symbol)
	assert.Equal(t, "buy", result.Ledger[2].Event)
	assert.Equal(t, "BBB", result.Ledger[2].Symbol)
	assert.True(t, result.Ledger[1].TS.Equal(result.Ledger[2].TS))
	// 复利模式下 B 的本金等于 A 平仓后的全部现金。
	assert.InDelta(t, result.Ledger[1].Cash, result.Trades[1].CapitalAllocated, 1e-6)
}

func TestBuildTrades_LedgerCashNeverOverdrawn(t *testing.T) {
	picks := []Pick{
		pickWithReturn("AAA", day(2024, 1, 2), 100, 5, math.Log(1.05)),
		pickWithReturn("BBB", day(2024, 1, 3), 80, 5, math.Log(0.95)),
		pickWithReturn("CCC", day(2024, 1, 4), 120, 5, math.Log(1.01)),
		pickWithReturn("DDD", day(2024, 1, 10), 50, 5, math.Log(0.90)),
	}
	for _, compound := range []bool{false, true} {
		cfg := ExecConfig{
			HoldDays:       5,
			FeeModel:       FeeModel{FeeBps: 10},
			InitialCapital: 5000,
			Compound:       compound,
		}
		result := BuildTrades(picks, cfg)
		for _, e := range result.Ledger {
			assert.GreaterOrEqual(t, e.Cash, -cashTolerance)
		}
	}
}

func TestBuildTrades_InitialCapitalFloor(t *testing.T) {
	picks := []Pick{pickWithReturn("AAA", day(2024, 1, 2), 100, 5, math.Log(1.05))}
	cfg := ExecConfig{HoldDays: 5, FeeModel: FeeModel{FeeBps: 0}, InitialCapital: 0}
	result := BuildTrades(picks, cfg)
	require.Len(t, result.Trades, 1)
	assert.InDelta(t, 1.0, result.Trades[0].CapitalAllocated, 1e-12)
}

func TestBuildTrades_EmptyPicks(t *testing.T) {
	result := BuildTrades(nil, ExecConfig{HoldDays: 5, InitialCapital: 100000})
	assert.Empty(t, result.Trades)
	assert.Empty(t, result.Ledger)
}

func TestPeakConcurrency_ExitBeforeEntryAtSameTS(t *testing.T) {
	mk := func(symbol string, enter, exit time.Time) Candidate {
		return Candidate{Symbol: symbol, EnterDate: enter, ExitDate: exit, EnterPrice: 1, ExitPrice: 1}
	}
	// B 在 A 出场当日入场：先出后进，峰值并发应为 1。
	cands := []Candidate{
		mk("AAA", day(2024, 1, 2), day(2024, 1, 9)),
		mk("BBB", day(2024, 1, 9), day(2024, 1, 16)),
	}
	assert.Equal(t, 1, peakConcurrency(cands))

	cands = append(cands, mk("CCC", day(2024, 1, 8), day(2024, 1, 15)))
	assert.Equal(t, 2, peakConcurrency(cands))
}

func TestReconcileLedger_Balances(t *testing.T) {
	picks := []Pick{
		pickWithReturn("AAA", day(2024, 1, 2), 100, 5, math.Log(1.05)),
		pickWithReturn("BBB", day(2024, 1, 3), 80, 5, math.Log(0.96)),
	}
	cfg := ExecConfig{
		HoldDays:       5,
		FeeModel:       FeeModel{FeeBps: 5},
		InitialCapital: 50000,
		Compound:       true,
	}
	result := BuildTrades(picks, cfg)
	report := ReconcileLedger(result, 50000)
	assert.True(t, report.OK)
	assert.False(t, report.Overdrawn)
	assert.True(t, report.Residual.Abs().LessThanOrEqual(reconcileTolerance))
}

func TestReconcileLedger_Empty(t *testing.T) {
	report := ReconcileLedger(ExecutionResult{}, 100000)
	assert.True(t, report.OK)
}
