package engine

import "time"

// Point 是按日期索引的一个取值。
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series 是按日期升序排列的数值序列。
type Series []Point

// Empty 报告序列是否为空。
func (s Series) Empty() bool { return len(s) == 0 }

// Last 返回最后一个值；空序列返回 0。
func (s Series) Last() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Value
}

// Min 返回序列最小值；空序列返回 0。
func (s Series) Min() float64 {
	if len(s) == 0 {
		return 0
	}
	min := s[0].Value
	for _, p := range s[1:] {
		if p.Value < min {
			min = p.Value
		}
	}
	return min
}

// Values 返回值切片（与日期同序）。
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Dates 返回日期切片。
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Date
	}
	return out
}
