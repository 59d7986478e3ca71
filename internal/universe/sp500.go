package universe

// DefaultTickers 内置一份标普 500 成分股（2025 年初快照，取前 100 只）。
// 离线环境无法实时抓取成分，需要时手工更新。
func DefaultTickers() []string {
	return []string{
		"AAPL", "MSFT", "AMZN", "NVDA", "META", "GOOGL", "GOOG", "BRK.B", "JPM", "JNJ",
		"V", "UNH", "XOM", "MA", "PG", "TSLA", "LLY", "HD", "MRK", "ABBV",
		"COST", "CVX", "ADBE", "AVGO", "KO", "PEP", "PFE", "BAC", "MCD", "CSCO",
		"ORCL", "DHR", "NKE", "DIS", "BMY", "WMT", "CRM", "ACN", "ABT", "TXN",
		"NFLX", "INTC", "CMCSA", "QCOM", "AMD", "TMUS", "NEE", "LOW", "VZ", "T",
		"LIN", "PM", "CAT", "HON", "AMGN", "GE", "UPS", "SBUX", "IBM", "RTX",
		"INTU", "SPGI", "BLK", "AXP", "LMT", "MDT", "SYK", "ISRG", "NOW", "BKNG",
		"CB", "BA", "PLD", "DE", "GILD", "AMAT", "PYPL", "ADI", "ELV", "C",
		"SCHW", "GS", "COP", "CL", "SO", "MO", "TJX", "TGT", "CI", "MMC",
		"USB", "APD", "CVS", "DUK", "CME", "HUM", "ADP", "CSX", "PGR", "ITW",
	}
}
