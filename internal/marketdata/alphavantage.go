package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"quantlab/internal/universe"
)

const defaultAlphaVantageBase = "https://www.alphavantage.co/query"

// AlphaVantageSource 通过 TIME_SERIES_DAILY_ADJUSTED 接口拉取复权日线。
type AlphaVantageSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAlphaVantageSource(apiKey, baseURL string) (*AlphaVantageSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("alphavantage api key 不能为空")
	}
	if baseURL == "" {
		baseURL = defaultAlphaVantageBase
	}
	return &AlphaVantageSource{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *AlphaVantageSource) Name() string { return "alphavantage" }

func (s *AlphaVantageSource) Fetch(ctx context.Context, req FetchRequest) ([]universe.Bar, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	query := url.Values{}
	query.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	query.Set("symbol", req.Symbol)
	query.Set("outputsize", "full")
	query.Set("apikey", s.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage 返回状态码 %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseDailySeries(body, req)
}

// parseDailySeries 解析 Time Series (Daily) 字段；限流与错误提示按失败处理。
func parseDailySeries(body []byte, req FetchRequest) ([]universe.Bar, error) {
	root := gjson.ParseBytes(body)
	if msg := root.Get("Error Message"); msg.Exists() {
		return nil, fmt.Errorf("alphavantage 错误: %s", msg.String())
	}
	if note := root.Get("Note"); note.Exists() {
		return nil, fmt.Errorf("alphavantage 限流: %s", note.String())
	}
	series := root.Get("Time Series (Daily)")
	if !series.Exists() {
		return nil, fmt.Errorf("响应缺少 Time Series (Daily) 字段")
	}

	var bars []universe.Bar
	var parseErr error
	series.ForEach(func(key, value gjson.Result) bool {
		date, err := time.ParseInLocation("2006-01-02", key.String(), time.UTC)
		if err != nil {
			parseErr = fmt.Errorf("非法日期 %q: %w", key.String(), err)
			return false
		}
		if !req.Start.IsZero() && date.Before(req.Start) {
			return true
		}
		if !req.End.IsZero() && date.After(req.End) {
			return true
		}
		bars = append(bars, universe.Bar{
			Symbol:   req.Symbol,
			Date:     date,
			High:     value.Get(`2\. high`).Float(),
			Low:      value.Get(`3\. low`).Float(),
			Close:    value.Get(`4\. close`).Float(),
			AdjClose: value.Get(`5\. adjusted close`).Float(),
			Volume:   value.Get(`6\. volume`).Float(),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
