package reports

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantlab/internal/engine"
)

func TestSerializeTrades(t *testing.T) {
	trades := []engine.Trade{
		{
			Symbol:     "AAPL",
			EnterDate:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			ExitDate:   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			EnterPrice: 100,
			ExitPrice:  105,
			Quantity:   10,
			Notional:   1000,
			BuyFee:     0.1,
			SellFee:    0.105,
			Fees:       0.205,
			GrossPnL:   50,
			NetPnL:     49.795,
			NetReturn:  0.049795,
		},
	}
	rows := SerializeTrades(trades)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "2024-01-02", row.EnterDate)
	assert.Equal(t, "2024-01-05", row.ExitDate)
	// Side 未填时默认 long。
	assert.Equal(t, "long", row.Side)
	assert.InDelta(t, 49.795, row.PnL, 1e-9)
	assert.InDelta(t, 0.049795, row.Ret, 1e-9)
	assert.InDelta(t, 0.205, row.Fees, 1e-9)
}

func TestSerializeTrades_JSONKeys(t *testing.T) {
	rows := SerializeTrades([]engine.Trade{{Symbol: "MSFT"}})
	raw, err := json.Marshal(rows[0])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{
		"enter_date", "exit_date", "enter_price", "exit_price",
		"pnl", "ret", "symbol", "gross_pnl", "fees",
		"side", "quantity", "notional", "buy_fee", "sell_fee",
	} {
		assert.Contains(t, decoded, key)
	}
}

func TestSerializeTrades_Empty(t *testing.T) {
	rows := SerializeTrades(nil)
	require.NotNil(t, rows)
	assert.Len(t, rows, 0)
}

func TestBuildRunPage(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	equity := engine.Series{
		{Date: base, Value: 100000},
		{Date: base.AddDate(0, 0, 1), Value: 100500},
	}
	drawdown := engine.Series{
		{Date: base, Value: 0},
		{Date: base.AddDate(0, 0, 1), Value: -0.002},
	}
	html, err := buildRunPage("测试回测", equity, drawdown, map[string]float64{"sharpe": 1.23})
	require.NoError(t, err)
	assert.Contains(t, string(html), "测试回测")
	assert.Contains(t, string(html), "sharpe=1.2300")
}

func TestBuildRunPage_EmptyEquity(t *testing.T) {
	_, err := buildRunPage("空", nil, nil, nil)
	assert.Error(t, err)
}
