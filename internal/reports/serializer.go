package reports

import (
	"quantlab/internal/engine"
)

// TradeRow 是暴露给前端/报告的单笔成交载荷。
type TradeRow struct {
	EnterDate  string  `json:"enter_date"`
	ExitDate   string  `json:"exit_date"`
	EnterPrice float64 `json:"enter_price"`
	ExitPrice  float64 `json:"exit_price"`
	PnL        float64 `json:"pnl"`
	Ret        float64 `json:"ret"`
	Symbol     string  `json:"symbol"`
	GrossPnL   float64 `json:"gross_pnl"`
	Fees       float64 `json:"fees"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	Notional   float64 `json:"notional"`
	BuyFee     float64 `json:"buy_fee"`
	SellFee    float64 `json:"sell_fee"`
}

const dateLayout = "2006-01-02"

// SerializeTrades 把成交列表转换为 JSON 友好的行记录。
func SerializeTrades(trades []engine.Trade) []TradeRow {
	if len(trades) == 0 {
		return []TradeRow{}
	}
	out := make([]TradeRow, 0, len(trades))
	for _, t := range trades {
		side := t.Side
		if side == "" {
			side = "long"
		}
		out = append(out, TradeRow{
			EnterDate:  t.EnterDate.Format(dateLayout),
			ExitDate:   t.ExitDate.Format(dateLayout),
			EnterPrice: t.EnterPrice,
			ExitPrice:  t.ExitPrice,
			PnL:        t.NetPnL,
			Ret:        t.NetReturn,
			Symbol:     t.Symbol,
			GrossPnL:   t.GrossPnL,
			Fees:       t.Fees,
			Side:       side,
			Quantity:   t.Quantity,
			Notional:   t.Notional,
			BuyFee:     t.BuyFee,
			SellFee:    t.SellFee,
		})
	}
	return out
}
