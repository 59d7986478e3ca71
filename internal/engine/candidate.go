package engine

import (
	"math"
	"sort"
	"time"
)

// Pick 表示指标层给出的一条入场候选：某日收盘买入，并携带各持有期的前向对数收益。
type Pick struct {
	Symbol       string
	Date         time.Time
	AdjClose     float64
	TriggerCount int
	Triggered    []string
	// FwdReturns 以持有期（交易日数）为 key，值为前向对数收益。
	FwdReturns map[int]float64
}

// Candidate 是经过止损/止盈约束后的可执行候选交易。
type Candidate struct {
	Symbol      string
	EnterDate   time.Time
	ExitDate    time.Time
	EnterPrice  float64
	ExitPrice   float64
	GrossReturn float64
}

// BuildCandidates 将 picks 转换为候选交易。
// 对数收益先换算为简单收益（expm1），再按止损/止盈截断；
// 缺失收益、非正价格或推导出的出场价非正的记录直接跳过。
// stopLossPct 取绝对值后作为下限；两者为 0 时视为未启用。
func BuildCandidates(picks []Pick, holdDays int, stopLossPct, takeProfitPct float64) []Candidate {
	if len(picks) == 0 {
		return nil
	}
	if holdDays < 1 {
		holdDays = 1
	}
	stopLoss := math.Abs(stopLossPct)

	out := make([]Candidate, 0, len(picks))
	for _, p := range picks {
		rawRet, ok := p.FwdReturns[holdDays]
		if !ok || math.IsNaN(rawRet) {
			continue
		}
		if math.IsNaN(p.AdjClose) || p.AdjClose <= 0 {
			continue
		}
		if p.Date.IsZero() {
			continue
		}
		grossSimple := math.Expm1(rawRet)
		if stopLoss > 0 {
			grossSimple = math.Max(grossSimple, -stopLoss)
		}
		if takeProfitPct > 0 {
			grossSimple = math.Min(grossSimple, takeProfitPct)
		}
		exitPrice := p.AdjClose * (1.0 + grossSimple)
		if exitPrice <= 0 {
			continue
		}
		enterDate := normalizeDate(p.Date)
		out = append(out, Candidate{
			Symbol:      p.Symbol,
			EnterDate:   enterDate,
			ExitDate:    addBusinessDays(enterDate, holdDays),
			EnterPrice:  p.AdjClose,
			ExitPrice:   exitPrice,
			GrossReturn: grossSimple,
		})
	}
	if len(out) == 0 {
		return nil
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.EnterDate.Equal(b.EnterDate) {
			return a.EnterDate.Before(b.EnterDate)
		}
		if !a.ExitDate.Equal(b.ExitDate) {
			return a.ExitDate.Before(b.ExitDate)
		}
		return a.Symbol < b.Symbol
	})
	return out
}

// normalizeDate 将时间截断到 UTC 零点，仅保留日期语义。
func normalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// addBusinessDays 向后跳过周末累加 n 个交易日。
func addBusinessDays(t time.Time, n int) time.Time {
	out := normalizeDate(t)
	for added := 0; added < n; {
		out = out.AddDate(0, 0, 1)
		if wd := out.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return out
}
