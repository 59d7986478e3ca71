package engine

import "math"

// FeeModel 基于基点的双边手续费模型：fee_bps=5 表示买卖各收 0.05%。
type FeeModel struct {
	FeeBps float64
}

// Rate 返回单边费率（小数形式），负的 bps 按 0 处理。
func (m FeeModel) Rate() float64 {
	return math.Max(0, m.FeeBps) / 10000.0
}

// FeeForNotional 计算指定成交额的手续费；非正或 NaN 的成交额返回 0。
func (m FeeModel) FeeForNotional(notional float64) float64 {
	if notional <= 0 || math.IsNaN(notional) {
		return 0
	}
	return notional * m.Rate()
}

// RoundTripFees 返回一次完整买卖的总手续费。
func (m FeeModel) RoundTripFees(buyNotional, sellNotional float64) float64 {
	return m.FeeForNotional(buyNotional) + m.FeeForNotional(sellNotional)
}
