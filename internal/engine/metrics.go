package engine

import "math"

// DefaultAnnualizationFactor 年化因子：一年按 252 个交易日计。
const DefaultAnnualizationFactor = 252.0

// ComputeMetrics 基于权益曲线与回撤序列计算绩效指标。
// 波动率为 0 时不输出 sharpe；空权益曲线返回空 map。
func ComputeMetrics(equity, drawdown Series, annualizationFactor float64) map[string]float64 {
	metrics := make(map[string]float64)
	if equity.Empty() {
		return metrics
	}
	if annualizationFactor <= 0 {
		annualizationFactor = DefaultAnnualizationFactor
	}

	returns := dailyReturns(equity)
	avg := mean(returns)
	vol := stddevPop(returns)

	metrics["avg_daily_return"] = avg
	metrics["volatility_daily"] = vol
	metrics["annualized_return"] = math.Pow(1.0+avg, annualizationFactor) - 1.0
	metrics["annualized_vol"] = vol * math.Sqrt(annualizationFactor)
	if vol > 0 {
		metrics["sharpe"] = avg / vol * math.Sqrt(annualizationFactor)
	}
	metrics["max_drawdown"] = drawdown.Min()
	metrics["ending_equity"] = equity.Last()
	return metrics
}

// dailyReturns 计算相邻权益点之间的简单收益率。
func dailyReturns(equity Series) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i].Value/prev-1.0)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddevPop 总体标准差（分母 n）。
func stddevPop(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mu := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
