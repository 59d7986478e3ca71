package backtest

import (
	"quantlab/internal/engine"
	"quantlab/internal/indicators"
)

// SeriesPoint 是权益/回撤曲线上的一个点。
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

const dateLayout = "2006-01-02"

func seriesPayload(s engine.Series) []SeriesPoint {
	out := make([]SeriesPoint, 0, len(s))
	for _, p := range s {
		out = append(out, SeriesPoint{Date: p.Date.Format(dateLayout), Value: p.Value})
	}
	return out
}

// PickRow 是 picks 产物中的一行，对应指标层的一条入场候选。
type PickRow struct {
	Date         string          `json:"date"`
	Symbol       string          `json:"symbol"`
	AdjClose     float64         `json:"adj_close"`
	TriggerCount int             `json:"n_triggered"`
	Triggered    string          `json:"triggered_signals"`
	FwdReturns   map[int]float64 `json:"fwd_returns"`
}

func picksPayload(picks []engine.Pick) []PickRow {
	out := make([]PickRow, 0, len(picks))
	for _, p := range picks {
		out = append(out, PickRow{
			Date:         p.Date.Format(dateLayout),
			Symbol:       p.Symbol,
			AdjClose:     p.AdjClose,
			TriggerCount: p.TriggerCount,
			Triggered:    indicators.TriggeredLabel(p.Triggered),
			FwdReturns:   p.FwdReturns,
		})
	}
	return out
}
