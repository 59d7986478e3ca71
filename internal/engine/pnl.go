package engine

import (
	"math"
	"sort"
	"time"

	"quantlab/internal/logger"
)

// BuildEquityCurve 按出场日聚合净盈亏并累加到初始资金，得到权益曲线。
// 无成交时返回空序列。
func BuildEquityCurve(trades []Trade, initialCapital float64) Series {
	if len(trades) == 0 {
		return nil
	}
	pnlByDate := make(map[time.Time]float64)
	for _, t := range trades {
		d := normalizeDate(t.ExitDate)
		pnlByDate[d] += t.NetPnL
	}
	dates := make([]time.Time, 0, len(pnlByDate))
	for d := range pnlByDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	equity := make(Series, 0, len(dates))
	running := initialCapital
	for _, d := range dates {
		running += pnlByDate[d]
		equity = append(equity, Point{Date: d, Value: running})
	}
	return equity
}

// ComputeDrawdown 计算相对历史峰值的百分比回撤（非正值）。
func ComputeDrawdown(equity Series) Series {
	if equity.Empty() {
		return nil
	}
	out := make(Series, 0, len(equity))
	runningMax := math.Inf(-1)
	for _, p := range equity {
		if p.Value > runningMax {
			runningMax = p.Value
		}
		dd := 0.0
		if runningMax != 0 {
			dd = p.Value/runningMax - 1.0
		}
		out = append(out, Point{Date: p.Date, Value: dd})
	}
	return out
}

// WarnIfReturnsConstant 统计净收益（8 位小数）去重比例，低于阈值时给出告警。
// 返回去重比例；无成交时返回 -1。
func WarnIfReturnsConstant(trades []Trade, threshold float64) float64 {
	if len(trades) == 0 {
		return -1
	}
	distinct := make(map[float64]struct{}, len(trades))
	for _, t := range trades {
		distinct[roundTo(t.NetReturn, 8)] = struct{}{}
	}
	ratio := float64(len(distinct)) / float64(len(trades))
	if ratio < threshold {
		logger.Warnf("[engine] 成交收益区分度过低：distinct_ratio=%.4f trades=%d", ratio, len(trades))
	}
	return ratio
}

func roundTo(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
