package indicators

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"quantlab/internal/engine"
	"quantlab/internal/logger"
)

// SymbolSeries 是单只标的按日期升序对齐的行情序列。
type SymbolSeries struct {
	Symbol   string
	Dates    []time.Time
	AdjClose []float64
	High     []float64
	Low      []float64
	Close    []float64
	Volume   []float64
}

// HistPoint 是直方图用的一条前向收益记录。
type HistPoint struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Return float64   `json:"return"`
}

// ScanResult 汇总一次全市场扫描的输出。
type ScanResult struct {
	Picks    []engine.Pick
	Universe []string
	Stats    map[int]Stats
	Skipped  int
}

// Scan 对每只标的计算启用的指标信号，按策略合并后生成 picks。
// 样本长度不足 MinObservations 的标的被跳过；启用 OBV 时缺少成交量数据视为错误。
func Scan(series []SymbolSeries, cfg Config, maxHorizon int) (ScanResult, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return ScanResult{}, err
	}
	if maxHorizon < 1 {
		maxHorizon = 10
	}
	minObs := cfg.MinObservations(maxHorizon)

	result := ScanResult{}
	for _, s := range series {
		if len(s.AdjClose) == 0 {
			continue
		}
		result.Universe = append(result.Universe, s.Symbol)

		clean, err := dropIncompleteRows(s, cfg.UseOBV)
		if err != nil {
			return ScanResult{}, err
		}
		if len(clean.AdjClose) < minObs {
			result.Skipped++
			logger.Debugf("[indicators] %s 样本不足（%d < %d），跳过", s.Symbol, len(clean.AdjClose), minObs)
			continue
		}

		names, signals := evaluateSignals(clean, cfg)
		if len(signals) == 0 {
			continue
		}
		combined, err := Combine(signals, cfg.Policy, cfg.AtLeastK)
		if err != nil {
			return ScanResult{}, err
		}

		fwd := ForwardLogReturns(clean.AdjClose, maxHorizon)
		for i, hit := range combined {
			if !hit {
				continue
			}
			returns := make(map[int]float64, maxHorizon)
			for h := 1; h <= maxHorizon; h++ {
				if v := fwd[h][i]; !math.IsNaN(v) {
					returns[h] = v
				}
			}
			if len(returns) == 0 {
				continue
			}
			var triggered []string
			for j, sig := range signals {
				if sig[i] {
					triggered = append(triggered, names[j])
				}
			}
			result.Picks = append(result.Picks, engine.Pick{
				Symbol:       clean.Symbol,
				Date:         clean.Dates[i],
				AdjClose:     clean.AdjClose[i],
				TriggerCount: len(triggered),
				Triggered:    triggered,
				FwdReturns:   returns,
			})
		}
	}

	sort.SliceStable(result.Picks, func(i, j int) bool {
		a, b := result.Picks[i], result.Picks[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Symbol < b.Symbol
	})
	result.Stats = StatsByHorizon(result.Picks, maxHorizon)
	return result, nil
}

// evaluateSignals 按固定顺序计算启用的指标信号。
func evaluateSignals(s SymbolSeries, cfg Config) ([]string, [][]bool) {
	var names []string
	var signals [][]bool
	add := func(name string, sig []bool) {
		names = append(names, name)
		signals = append(signals, sig)
	}
	if cfg.UseRSI {
		add(SignalRSI, rsiSignal(s.AdjClose, cfg.RSIPeriod, cfg.RSIOversold, cfg.RSIOverbought, cfg.RSIRule))
	}
	if cfg.UseADX {
		add(SignalADX, adxSignal(s.High, s.Low, s.Close, cfg.ADXPeriod, cfg.ADXMin))
	}
	if cfg.UseAroon {
		add(SignalAroon, aroonSignal(s.High, s.Low, cfg.AroonPeriod, cfg.AroonUpGE, cfg.AroonDownLE))
	}
	if cfg.UseStoch {
		add(SignalStoch, stochSignal(s.High, s.Low, s.Close, cfg.StochK, cfg.StochD, cfg.StochRule, cfg.StochThresh))
	}
	if cfg.UseMACD {
		add(SignalMACD, macdSignal(s.AdjClose, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal, cfg.MACDRule))
	}
	if cfg.UseOBV {
		add(SignalOBV, obvSignal(s.AdjClose, s.Volume, cfg.OBVRule))
	}
	if cfg.UseEMA {
		add(SignalEMA, emaCrossSignal(s.AdjClose, cfg.EMAShort, cfg.EMALong))
	}
	return names, signals
}

// dropIncompleteRows 去掉任一价格字段缺失的行，保持各序列对齐。
func dropIncompleteRows(s SymbolSeries, needVolume bool) (SymbolSeries, error) {
	if needVolume && len(s.Volume) != len(s.AdjClose) {
		return SymbolSeries{}, fmt.Errorf("启用 OBV 但 %s 缺少成交量数据", s.Symbol)
	}
	out := SymbolSeries{Symbol: s.Symbol}
	for i := range s.AdjClose {
		if i >= len(s.High) || i >= len(s.Low) || i >= len(s.Close) || i >= len(s.Dates) {
			break
		}
		if anyNaN(s.AdjClose[i], s.High[i], s.Low[i], s.Close[i]) {
			continue
		}
		if needVolume && math.IsNaN(s.Volume[i]) {
			continue
		}
		out.Dates = append(out.Dates, s.Dates[i])
		out.AdjClose = append(out.AdjClose, s.AdjClose[i])
		out.High = append(out.High, s.High[i])
		out.Low = append(out.Low, s.Low[i])
		out.Close = append(out.Close, s.Close[i])
		if needVolume {
			out.Volume = append(out.Volume, s.Volume[i])
		}
	}
	return out, nil
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// StatsByHorizon 对 picks 的各持有期前向收益做摘要统计。
func StatsByHorizon(picks []engine.Pick, maxHorizon int) map[int]Stats {
	out := make(map[int]Stats, maxHorizon)
	for h := 1; h <= maxHorizon; h++ {
		var values []float64
		for _, p := range picks {
			if v, ok := p.FwdReturns[h]; ok {
				values = append(values, v)
			}
		}
		out[h] = ComputeStats(values)
	}
	return out
}

// HistogramData 取指定持有期的前向收益明细，用于绘制分布直方图。
func HistogramData(picks []engine.Pick, horizon int) []HistPoint {
	var out []HistPoint
	for _, p := range picks {
		if v, ok := p.FwdReturns[horizon]; ok {
			out = append(out, HistPoint{Date: p.Date, Symbol: p.Symbol, Return: v})
		}
	}
	return out
}

// TriggeredLabel 把触发的指标名拼成展示用字符串。
func TriggeredLabel(triggered []string) string {
	return strings.Join(triggered, ", ")
}
