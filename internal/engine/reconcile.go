package engine

import (
	"github.com/shopspring/decimal"

	"quantlab/internal/logger"
)

// ReconcileReport 是流水账与成交净盈亏的对账结果。
type ReconcileReport struct {
	TradePnLSum decimal.Decimal
	CashDelta   decimal.Decimal
	Residual    decimal.Decimal
	Overdrawn   bool
	OK          bool
}

// reconcileTolerance 对账允许的浮点累计误差。
var reconcileTolerance = decimal.NewFromFloat(1e-6)

// ReconcileLedger 用高精度十进制校验：成交净盈亏之和应等于期末现金减初始资金，
// 且任何时刻现金不得低于 -1e-6。只记录告警，不中断回测。
func ReconcileLedger(result ExecutionResult, initialCapital float64) ReconcileReport {
	pnlSum := decimal.Zero
	for _, t := range result.Trades {
		pnlSum = pnlSum.Add(decimal.NewFromFloat(t.NetPnL))
	}

	report := ReconcileReport{TradePnLSum: pnlSum}
	if len(result.Ledger) == 0 {
		report.OK = pnlSum.Abs().LessThanOrEqual(reconcileTolerance)
		return report
	}

	minCash := decimal.NewFromFloat(result.Ledger[0].Cash)
	for _, e := range result.Ledger {
		cash := decimal.NewFromFloat(e.Cash)
		if cash.LessThan(minCash) {
			minCash = cash
		}
	}
	if minCash.LessThan(reconcileTolerance.Neg()) {
		report.Overdrawn = true
		logger.Warnf("[engine] 流水中出现现金透支：min_cash=%s", minCash.String())
	}

	endingCash := decimal.NewFromFloat(result.Ledger[len(result.Ledger)-1].Cash)
	report.CashDelta = endingCash.Sub(decimal.NewFromFloat(initialCapital))
	report.Residual = report.CashDelta.Sub(pnlSum)
	report.OK = !report.Overdrawn && report.Residual.Abs().LessThanOrEqual(reconcileTolerance)
	if !report.Residual.Abs().LessThanOrEqual(reconcileTolerance) {
		logger.Warnf("[engine] 对账不平：pnl_sum=%s cash_delta=%s residual=%s",
			pnlSum.String(), report.CashDelta.String(), report.Residual.String())
	}
	return report
}
