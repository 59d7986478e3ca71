package indicators

import "math"

// ForwardLogReturns 计算 1..maxHorizon 个交易日的前向对数收益。
// 返回 map[h][]float64，第 i 位为 ln(p[i+h]/p[i])；尾部无数据处填 NaN。
func ForwardLogReturns(prices []float64, maxHorizon int) map[int][]float64 {
	if maxHorizon < 1 {
		maxHorizon = 1
	}
	out := make(map[int][]float64, maxHorizon)
	for h := 1; h <= maxHorizon; h++ {
		col := make([]float64, len(prices))
		for i := range prices {
			if i+h >= len(prices) || prices[i] <= 0 || prices[i+h] <= 0 {
				col[i] = math.NaN()
				continue
			}
			col[i] = math.Log(prices[i+h] / prices[i])
		}
		out[h] = col
	}
	return out
}
