package backtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// 请求兜底默认值，与前端表单保持一致。
const (
	DefaultCapital     = 100000.0
	DefaultFeeBps      = 1.0
	DefaultHoldDays    = 1
	DefaultMaxHorizon  = 10
	DefaultHistHorizon = 1
)

const runRequestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["start", "end"],
	"properties": {
		"strategy": {"type": "string"},
		"indicators": {"type": "object"},
		"filters": {
			"type": "object",
			"properties": {
				"sectors": {"type": "array", "items": {"type": "string"}},
				"mcap_min": {"type": "number", "minimum": 0},
				"mcap_max": {"type": "number", "minimum": 0},
				"exclude_tickers": {"type": "array", "items": {"type": "string"}}
			}
		},
		"universe": {"type": "array", "items": {"type": "string"}},
		"start": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
		"end": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
		"capital": {"type": "number", "exclusiveMinimum": 0},
		"fee_bps": {"type": "number", "minimum": 0},
		"hold_days": {"type": "integer", "minimum": 1},
		"max_horizon": {"type": "integer", "minimum": 1, "maximum": 60},
		"hist_horizon": {"type": "integer", "minimum": 1},
		"stop_loss_pct": {"type": "number"},
		"take_profit_pct": {"type": "number", "minimum": 0},
		"compound": {"type": "boolean"}
	}
}`

var runRequestCompiled = jsonschema.MustCompileString("run_request.json", runRequestSchema)

// ParseRunRequest 校验原始 JSON 并解析为带默认值的请求。
func ParseRunRequest(raw []byte) (RunRequest, error) {
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return RunRequest{}, fmt.Errorf("请求不是合法 JSON: %w", err)
	}
	if err := runRequestCompiled.Validate(generic); err != nil {
		return RunRequest{}, fmt.Errorf("请求参数校验失败: %w", err)
	}
	var req RunRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return RunRequest{}, err
	}
	return req, nil
}

// BuildRunConfig 应用默认值并做语义校验，生成不可变的参数快照。
func BuildRunConfig(req RunRequest) (RunConfig, error) {
	start, err := parseDay(req.Start)
	if err != nil {
		return RunConfig{}, fmt.Errorf("start 非法: %w", err)
	}
	end, err := parseDay(req.End)
	if err != nil {
		return RunConfig{}, fmt.Errorf("end 非法: %w", err)
	}
	if end.Before(start) {
		return RunConfig{}, fmt.Errorf("end 不能早于 start")
	}

	cfg := RunConfig{
		Strategy:    req.Strategy,
		Indicators:  req.Indicators,
		Filters:     req.Filters,
		Start:       start,
		End:         end,
		Capital:     req.Capital,
		HoldDays:    req.HoldDays,
		MaxHorizon:  req.MaxHorizon,
		HistHorizon: req.HistHorizon,
	}
	for _, sym := range req.Universe {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			cfg.Universe = append(cfg.Universe, sym)
		}
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "indicator"
	}
	if cfg.Capital <= 0 {
		cfg.Capital = DefaultCapital
	}
	// 未填 fee_bps 走默认值；显式传 0（零费率）原样生效。
	cfg.FeeBps = DefaultFeeBps
	if req.FeeBps != nil {
		cfg.FeeBps = *req.FeeBps
	}
	if cfg.FeeBps < 0 {
		return RunConfig{}, fmt.Errorf("fee_bps 不能为负")
	}
	if req.StopLossPct != nil {
		cfg.StopLossPct = *req.StopLossPct
	}
	if req.TakeProfitPct != nil {
		cfg.TakeProfitPct = *req.TakeProfitPct
	}
	if req.Compound != nil {
		cfg.Compound = *req.Compound
	}
	if cfg.HoldDays <= 0 {
		cfg.HoldDays = DefaultHoldDays
	}
	if cfg.MaxHorizon <= 0 {
		cfg.MaxHorizon = DefaultMaxHorizon
	}
	if cfg.HoldDays > cfg.MaxHorizon {
		return RunConfig{}, fmt.Errorf("hold_days (%d) 不能超过 max_horizon (%d)", cfg.HoldDays, cfg.MaxHorizon)
	}
	if cfg.HistHorizon <= 0 {
		cfg.HistHorizon = DefaultHistHorizon
	}
	if cfg.HistHorizon > cfg.MaxHorizon {
		return RunConfig{}, fmt.Errorf("hist_horizon (%d) 不能超过 max_horizon (%d)", cfg.HistHorizon, cfg.MaxHorizon)
	}

	cfg.Indicators.Normalize()
	if err := cfg.Indicators.Validate(); err != nil {
		return RunConfig{}, err
	}
	if cfg.Filters != nil {
		if err := cfg.Filters.Normalize(); err != nil {
			return RunConfig{}, err
		}
	}
	return cfg, nil
}

func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.UTC)
}
