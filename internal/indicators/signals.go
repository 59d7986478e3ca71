package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// 信号名称，写入 Pick 的 triggered 列表。
const (
	SignalRSI   = "RSI"
	SignalADX   = "ADX"
	SignalAroon = "Aroon"
	SignalStoch = "Stochastic"
	SignalMACD  = "MACD"
	SignalOBV   = "OBV"
	SignalEMA   = "EMA"
)

const obvMAWindow = 20

// rsiSignal 按规则生成 RSI 买入信号。
// signal 规则要求 RSI 从超卖线下方上穿；oversold/overbought 为水平阈值规则。
func rsiSignal(closes []float64, n int, oversold, overbought float64, rule string) []bool {
	rsi := talib.Rsi(closes, n)
	out := make([]bool, len(closes))
	// TALib 在暖机段输出 0，直接参与阈值比较会产生假信号。
	warmup := n + 1
	for i := warmup; i < len(rsi); i++ {
		switch rule {
		case RuleSignal:
			out[i] = rsi[i-1] < oversold && rsi[i] >= oversold
		case RuleOversold:
			out[i] = rsi[i] < oversold
		case RuleOverbought:
			out[i] = rsi[i] > overbought
		}
	}
	return out
}

// adxSignal 在 ADX 不低于阈值时给出信号（趋势强度过滤）。
func adxSignal(highs, lows, closes []float64, n int, minADX float64) []bool {
	adx := talib.Adx(highs, lows, closes, n)
	out := make([]bool, len(closes))
	warmup := 2*n - 1
	for i := warmup; i < len(adx); i++ {
		out[i] = adx[i] >= minADX
	}
	return out
}

// aroonSignal 在 aroon_up 足够高且 aroon_down 足够低时给出信号。
func aroonSignal(highs, lows []float64, n int, upGE, downLE float64) []bool {
	down, up := talib.Aroon(highs, lows, n)
	out := make([]bool, len(highs))
	for i := n; i < len(up); i++ {
		out[i] = up[i] >= upGE && down[i] <= downLE
	}
	return out
}

// stochSignal 基于快速随机指标 %K 生成信号；overbought 规则的上阈值为 100-threshold。
func stochSignal(highs, lows, closes []float64, kPeriod, dPeriod int, rule string, threshold float64) []bool {
	k, _ := talib.StochF(highs, lows, closes, kPeriod, dPeriod, talib.SMA)
	out := make([]bool, len(closes))
	warmup := kPeriod + dPeriod
	upper := 100 - threshold
	for i := warmup; i < len(k); i++ {
		switch rule {
		case RuleSignal:
			out[i] = k[i-1] < threshold && k[i] >= threshold
		case RuleOversold:
			out[i] = k[i] < threshold
		case RuleOverbought:
			out[i] = k[i] > upper
		}
	}
	return out
}

// macdSignal 支持金叉（上穿信号线）与 MACD>0 两种规则。
func macdSignal(closes []float64, fast, slow, signalN int, rule string) []bool {
	macd, signalLine, _ := talib.Macd(closes, fast, slow, signalN)
	out := make([]bool, len(closes))
	warmup := slow + signalN
	for i := warmup; i < len(macd); i++ {
		switch rule {
		case RuleSignal:
			out[i] = macd[i-1] < signalLine[i-1] && macd[i] >= signalLine[i]
		case RulePositive:
			out[i] = macd[i] > 0
		}
	}
	return out
}

// obvSignal 支持 OBV 上穿自身 20 日均线（rise）与 OBV>0（positive）两种规则。
func obvSignal(closes, volumes []float64, rule string) []bool {
	obv := talib.Obv(closes, volumes)
	out := make([]bool, len(closes))
	switch rule {
	case RuleRise:
		if len(obv) < obvMAWindow+1 {
			return out
		}
		ma := talib.Sma(obv, obvMAWindow)
		for i := obvMAWindow; i < len(obv); i++ {
			out[i] = obv[i-1] < ma[i-1] && obv[i] >= ma[i]
		}
	case RulePositive:
		for i := range obv {
			out[i] = obv[i] > 0
		}
	}
	return out
}

// emaCrossSignal 短均线上穿长均线（金叉）时给出信号。
func emaCrossSignal(closes []float64, shortN, longN int) []bool {
	out := make([]bool, len(closes))
	if len(closes) < longN+1 {
		return out
	}
	emaShort := talib.Ema(closes, shortN)
	emaLong := talib.Ema(closes, longN)
	for i := longN; i < len(closes); i++ {
		if isUnusable(emaShort[i-1]) || isUnusable(emaLong[i-1]) {
			continue
		}
		out[i] = emaShort[i-1] < emaLong[i-1] && emaShort[i] >= emaLong[i]
	}
	return out
}

func isUnusable(v float64) bool {
	return v == 0 || math.IsNaN(v) || math.IsInf(v, 0)
}
