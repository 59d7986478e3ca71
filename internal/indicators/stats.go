package indicators

import (
	"math"
	"sort"
)

// Stats 是某个持有期前向收益的摘要统计。
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Skew   float64 `json:"skew"`
	Kurt   float64 `json:"kurt"`
}

// ComputeStats 剔除 NaN 后计算摘要统计。
// 标准差按总体口径（分母 n）；偏度与超额峰度做样本偏差校正，
// 样本量不足（偏度 <3、峰度 <4）时置为 NaN。
func ComputeStats(values []float64) Stats {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		clean = append(clean, v)
	}
	n := len(clean)
	if n == 0 {
		return Stats{Skew: math.NaN(), Kurt: math.NaN(), Mean: math.NaN(), Median: math.NaN(), Std: math.NaN()}
	}

	mu := 0.0
	for _, v := range clean {
		mu += v
	}
	mu /= float64(n)

	var m2, m3, m4 float64
	for _, v := range clean {
		d := v - mu
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= float64(n)
	m3 /= float64(n)
	m4 /= float64(n)

	s := Stats{
		Count:  n,
		Mean:   mu,
		Median: median(clean),
		Std:    math.Sqrt(m2),
		Skew:   math.NaN(),
		Kurt:   math.NaN(),
	}

	fn := float64(n)
	if n >= 3 {
		if m2 == 0 {
			s.Skew = 0
		} else {
			g1 := m3 / math.Pow(m2, 1.5)
			s.Skew = math.Sqrt(fn*(fn-1)) / (fn - 2) * g1
		}
	}
	if n >= 4 {
		if m2 == 0 {
			s.Kurt = 0
		} else {
			// 样本超额峰度（与 pandas kurt 一致的偏差校正）。
			varS := m2 * fn / (fn - 1)
			sum4 := m4 * fn
			s.Kurt = fn*(fn+1)/((fn-1)*(fn-2)*(fn-3))*(sum4/(varS*varS)) -
				3*(fn-1)*(fn-1)/((fn-2)*(fn-3))
		}
	}
	return s
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
