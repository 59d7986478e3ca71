package engine

import (
	"math"
	"sort"
	"time"

	"quantlab/internal/logger"
)

// ExecConfig 描述资金约束模拟的参数。
type ExecConfig struct {
	HoldDays       int
	FeeModel       FeeModel
	InitialCapital float64
	StopLossPct    float64
	TakeProfitPct  float64
	Compound       bool
}

// Trade 是一笔已实现的完整交易。
type Trade struct {
	Symbol           string    `json:"symbol"`
	EnterDate        time.Time `json:"enter_date"`
	ExitDate         time.Time `json:"exit_date"`
	Side             string    `json:"side"`
	EnterPrice       float64   `json:"enter_price"`
	ExitPrice        float64   `json:"exit_price"`
	Quantity         float64   `json:"quantity"`
	BuyNotional      float64   `json:"buy_notional"`
	SellNotional     float64   `json:"sell_notional"`
	BuyFee           float64   `json:"buy_fee"`
	SellFee          float64   `json:"sell_fee"`
	GrossPnL         float64   `json:"gross_pnl"`
	NetPnL           float64   `json:"net_pnl"`
	GrossReturn      float64   `json:"gross_return"`
	NetReturn        float64   `json:"net_return"`
	CapitalAllocated float64   `json:"capital_allocated"`
	Fees             float64   `json:"fees"`
	Notional         float64   `json:"notional"`
}

// LedgerEntry 记录每次买入/卖出后的现金与权益快照。
type LedgerEntry struct {
	TS       time.Time `json:"ts"`
	Event    string    `json:"event"`
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Notional float64   `json:"notional"`
	Fee      float64   `json:"fee"`
	PnL      float64   `json:"pnl"`
	Cash     float64   `json:"cash"`
	Equity   float64   `json:"equity"`
}

// ExecutionResult 是模拟输出：成交列表 + 流水账。
type ExecutionResult struct {
	Trades []Trade       `json:"trades"`
	Ledger []LedgerEntry `json:"ledger"`
}

// cashTolerance 现金透支判定的容差。
const cashTolerance = 1e-6

type openPosition struct {
	quantity         float64
	buyNotional      float64
	buyFee           float64
	capitalAllocated float64
	marketValue      float64
}

type sweepEvent struct {
	ts   time.Time
	kind int // 0=exit 1=entry；同一时刻先平仓再开仓
	idx  int
}

// BuildTrades 将 picks 转换为受资金约束的成交与流水。
// 仓位上限取候选集中的峰值并发持仓数（至少 1）；入场按剩余槽位等分资金，
// 现金不足或槽位耗尽的候选被静默跳过。
func BuildTrades(picks []Pick, cfg ExecConfig) ExecutionResult {
	candidates := BuildCandidates(picks, cfg.HoldDays, cfg.StopLossPct, cfg.TakeProfitPct)
	if len(candidates) == 0 {
		return ExecutionResult{}
	}

	initialCapital := math.Max(1.0, cfg.InitialCapital)
	maxActive := maxInt(1, peakConcurrency(candidates))
	cash := initialCapital
	open := make(map[int]openPosition)

	events := make([]sweepEvent, 0, 2*len(candidates))
	for idx, c := range candidates {
		events = append(events, sweepEvent{ts: c.EnterDate, kind: 1, idx: idx})
		events = append(events, sweepEvent{ts: c.ExitDate, kind: 0, idx: idx})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].ts.Equal(events[j].ts) {
			return events[i].ts.Before(events[j].ts)
		}
		return events[i].kind < events[j].kind
	})

	var trades []Trade
	var ledger []LedgerEntry

	for _, ev := range events {
		c := candidates[ev.idx]
		if ev.kind == 1 {
			availableSlots := maxActive - len(open)
			if availableSlots <= 0 {
				logger.Debugf("[engine] %s %s 无可用仓位槽，跳过入场", c.Symbol, c.EnterDate.Format("2006-01-02"))
				continue
			}
			var allocationBase float64
			if cfg.Compound {
				allocationBase = cash / float64(availableSlots)
			} else {
				allocationBase = initialCapital / float64(maxActive)
			}
			allocation := math.Min(allocationBase, cash)
			if allocation <= 0 {
				logger.Debugf("[engine] %s 现金不足，跳过入场", c.Symbol)
				continue
			}
			denominator := c.EnterPrice * (1.0 + cfg.FeeModel.Rate())
			if denominator <= 0 {
				continue
			}
			quantity := allocation / denominator
			if quantity <= 0 || math.IsInf(quantity, 0) || math.IsNaN(quantity) {
				logger.Errorf("[engine] %s 计算出非法数量 allocation=%.6f", c.Symbol, allocation)
				continue
			}
			buyNotional := c.EnterPrice * quantity
			buyFee := cfg.FeeModel.FeeForNotional(buyNotional)
			totalCost := buyNotional + buyFee
			if totalCost-cash > cashTolerance {
				logger.Errorf("[engine] %s 成本 %.6f 超出现金 %.6f，跳过入场", c.Symbol, totalCost, cash)
				continue
			}
			cash -= totalCost
			open[ev.idx] = openPosition{
				quantity:         quantity,
				buyNotional:      buyNotional,
				buyFee:           buyFee,
				capitalAllocated: allocation,
				marketValue:      buyNotional,
			}
			ledger = append(ledger, LedgerEntry{
				TS:       ev.ts,
				Event:    "buy",
				Symbol:   c.Symbol,
				Side:     "buy",
				Quantity: quantity,
				Price:    c.EnterPrice,
				Notional: buyNotional,
				Fee:      buyFee,
				PnL:      0,
				Cash:     cash,
				Equity:   currentEquity(cash, open),
			})
			continue
		}

		pos, ok := open[ev.idx]
		if !ok {
			continue
		}
		delete(open, ev.idx)
		sellNotional := c.ExitPrice * pos.quantity
		sellFee := cfg.FeeModel.FeeForNotional(sellNotional)
		cash += sellNotional - sellFee
		grossPnL := sellNotional - pos.buyNotional
		totalFees := pos.buyFee + sellFee
		netPnL := grossPnL - totalFees
		netReturn := 0.0
		if pos.buyNotional != 0 {
			netReturn = netPnL / math.Abs(pos.buyNotional)
		}
		ledger = append(ledger, LedgerEntry{
			TS:       ev.ts,
			Event:    "sell",
			Symbol:   c.Symbol,
			Side:     "sell",
			Quantity: pos.quantity,
			Price:    c.ExitPrice,
			Notional: sellNotional,
			Fee:      sellFee,
			PnL:      netPnL,
			Cash:     cash,
			Equity:   currentEquity(cash, open),
		})
		trades = append(trades, Trade{
			Symbol:           c.Symbol,
			EnterDate:        c.EnterDate,
			ExitDate:         c.ExitDate,
			Side:             "long",
			EnterPrice:       c.EnterPrice,
			ExitPrice:        c.ExitPrice,
			Quantity:         pos.quantity,
			BuyNotional:      pos.buyNotional,
			SellNotional:     sellNotional,
			BuyFee:           pos.buyFee,
			SellFee:          sellFee,
			GrossPnL:         grossPnL,
			NetPnL:           netPnL,
			GrossReturn:      c.GrossReturn,
			NetReturn:        netReturn,
			CapitalAllocated: pos.capitalAllocated,
			Fees:             totalFees,
			Notional:         pos.buyNotional,
		})
	}
	return ExecutionResult{Trades: trades, Ledger: ledger}
}

// peakConcurrency 扫描候选集的最大并发持仓数；同一时刻先结算退出再计入入场。
func peakConcurrency(candidates []Candidate) int {
	if len(candidates) == 0 {
		return 0
	}
	type event struct {
		ts    time.Time
		delta int
	}
	events := make([]event, 0, 2*len(candidates))
	for _, c := range candidates {
		events = append(events, event{ts: c.EnterDate, delta: 1})
		events = append(events, event{ts: c.ExitDate, delta: -1})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].ts.Equal(events[j].ts) {
			return events[i].ts.Before(events[j].ts)
		}
		return events[i].delta < events[j].delta
	})
	active, peak := 0, 0
	for _, ev := range events {
		active += ev.delta
		if active > peak {
			peak = active
		}
	}
	return peak
}

// currentEquity 现金加上未平仓市值（市值固定为买入成交额）。
func currentEquity(cash float64, open map[int]openPosition) float64 {
	total := cash
	for _, pos := range open {
		total += pos.marketValue
	}
	return total
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
