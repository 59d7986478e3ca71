package indicators

import "fmt"

// 信号组合策略。
const (
	PolicyAny      = "any"
	PolicyAll      = "all"
	PolicyAtLeastK = "atleast_k"
)

// 指标触发规则。
const (
	RuleSignal     = "signal"
	RuleOversold   = "oversold"
	RuleOverbought = "overbought"
	RulePositive   = "positive"
	RuleRise       = "rise"
)

// Config 描述一次扫描启用哪些指标以及各自的参数。
// 零值字段在 Normalize 中回填默认值，未启用的指标不参与信号合并。
type Config struct {
	UseRSI        bool    `json:"use_rsi" mapstructure:"use_rsi"`
	RSIPeriod     int     `json:"rsi_n" mapstructure:"rsi_n"`
	RSIOversold   float64 `json:"rsi_oversold" mapstructure:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought" mapstructure:"rsi_overbought"`
	RSIRule       string  `json:"rsi_rule" mapstructure:"rsi_rule"`

	UseADX    bool    `json:"use_adx" mapstructure:"use_adx"`
	ADXPeriod int     `json:"adx_n" mapstructure:"adx_n"`
	ADXMin    float64 `json:"adx_min" mapstructure:"adx_min"`

	UseAroon    bool    `json:"use_aroon" mapstructure:"use_aroon"`
	AroonPeriod int     `json:"aroon_n" mapstructure:"aroon_n"`
	AroonUpGE   float64 `json:"aroon_up" mapstructure:"aroon_up"`
	AroonDownLE float64 `json:"aroon_dn" mapstructure:"aroon_dn"`

	UseStoch    bool    `json:"use_stoch" mapstructure:"use_stoch"`
	StochK      int     `json:"stoch_k" mapstructure:"stoch_k"`
	StochD      int     `json:"stoch_d" mapstructure:"stoch_d"`
	StochRule   string  `json:"stoch_rule" mapstructure:"stoch_rule"`
	StochThresh float64 `json:"stoch_thresh" mapstructure:"stoch_thresh"`

	UseMACD    bool   `json:"use_macd" mapstructure:"use_macd"`
	MACDFast   int    `json:"macd_fast" mapstructure:"macd_fast"`
	MACDSlow   int    `json:"macd_slow" mapstructure:"macd_slow"`
	MACDSignal int    `json:"macd_signal" mapstructure:"macd_signal"`
	MACDRule   string `json:"macd_rule" mapstructure:"macd_rule"`

	UseOBV  bool   `json:"use_obv" mapstructure:"use_obv"`
	OBVRule string `json:"obv_rule" mapstructure:"obv_rule"`

	UseEMA   bool `json:"use_ema" mapstructure:"use_ema"`
	EMAShort int  `json:"ema_short" mapstructure:"ema_short"`
	EMALong  int  `json:"ema_long" mapstructure:"ema_long"`

	Policy   string `json:"policy" mapstructure:"policy"`
	AtLeastK int    `json:"atleast_k" mapstructure:"atleast_k"`
}

// Normalize 回填默认参数并做基础范围约束。
func (c *Config) Normalize() {
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.RSIOversold == 0 {
		c.RSIOversold = 30
	}
	if c.RSIOverbought == 0 {
		c.RSIOverbought = 70
	}
	c.RSIOversold = clamp01Hundred(c.RSIOversold)
	c.RSIOverbought = clamp01Hundred(c.RSIOverbought)
	if c.RSIRule == "" {
		c.RSIRule = RuleSignal
	}
	if c.ADXPeriod <= 0 {
		c.ADXPeriod = 14
	}
	if c.ADXMin == 0 {
		c.ADXMin = 20
	}
	if c.AroonPeriod <= 0 {
		c.AroonPeriod = 25
	}
	if c.AroonUpGE == 0 {
		c.AroonUpGE = 70
	}
	if c.AroonDownLE == 0 {
		c.AroonDownLE = 30
	}
	if c.StochK <= 0 {
		c.StochK = 14
	}
	if c.StochD <= 0 {
		c.StochD = 3
	}
	if c.StochRule == "" {
		c.StochRule = RuleSignal
	}
	if c.StochThresh == 0 {
		c.StochThresh = 20
	}
	if c.MACDFast <= 0 {
		c.MACDFast = 12
	}
	if c.MACDSlow <= 0 {
		c.MACDSlow = 26
	}
	if c.MACDSignal <= 0 {
		c.MACDSignal = 9
	}
	if c.MACDRule == "" {
		c.MACDRule = RuleSignal
	}
	if c.OBVRule == "" {
		c.OBVRule = RuleRise
	}
	if c.EMAShort <= 0 {
		c.EMAShort = 12
	}
	if c.EMALong <= 0 {
		c.EMALong = 26
	}
	if c.Policy == "" {
		c.Policy = PolicyAny
	}
	if c.AtLeastK <= 0 {
		c.AtLeastK = 2
	}
}

// Enabled 报告是否至少启用了一个指标。
func (c Config) Enabled() bool {
	return c.UseRSI || c.UseADX || c.UseAroon || c.UseStoch || c.UseMACD || c.UseOBV || c.UseEMA
}

// Validate 检查规则与策略取值是否合法。
func (c Config) Validate() error {
	if !c.Enabled() {
		return fmt.Errorf("至少需要启用一个指标")
	}
	switch c.RSIRule {
	case RuleSignal, RuleOversold, RuleOverbought:
	default:
		return fmt.Errorf("非法的 RSI 规则: %s", c.RSIRule)
	}
	switch c.StochRule {
	case RuleSignal, RuleOversold, RuleOverbought:
	default:
		return fmt.Errorf("非法的随机指标规则: %s", c.StochRule)
	}
	switch c.MACDRule {
	case RuleSignal, RulePositive:
	default:
		return fmt.Errorf("非法的 MACD 规则: %s", c.MACDRule)
	}
	switch c.OBVRule {
	case RuleRise, RulePositive:
	default:
		return fmt.Errorf("非法的 OBV 规则: %s", c.OBVRule)
	}
	switch c.Policy {
	case PolicyAny, PolicyAll, PolicyAtLeastK:
	default:
		return fmt.Errorf("非法的组合策略: %s", c.Policy)
	}
	return nil
}

// MinObservations 返回启用指标所需的最短样本长度。
func (c Config) MinObservations(maxHorizon int) int {
	min := maxHorizon + 1
	consider := func(enabled bool, n int) {
		if enabled && n > min {
			min = n
		}
	}
	consider(c.UseRSI, c.RSIPeriod)
	consider(c.UseADX, c.ADXPeriod)
	consider(c.UseAroon, c.AroonPeriod)
	consider(c.UseStoch, c.StochK)
	consider(c.UseMACD, c.MACDSlow)
	consider(c.UseEMA, c.EMALong)
	return min
}

func clamp01Hundred(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
