package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantlab/internal/universe"
)

const sampleDailyPayload = `{
	"Meta Data": {"2. Symbol": "AAPL"},
	"Time Series (Daily)": {
		"2024-01-03": {"1. open": "184.22", "2. high": "185.88", "3. low": "183.43", "4. close": "184.25", "5. adjusted close": "183.90", "6. volume": "58414500"},
		"2024-01-02": {"1. open": "187.15", "2. high": "188.44", "3. low": "183.89", "4. close": "185.64", "5. adjusted close": "185.28", "6. volume": "82488700"}
	}
}`

func TestAlphaVantageSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY_ADJUSTED", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, sampleDailyPayload)
	}))
	defer srv.Close()

	src, err := NewAlphaVantageSource("test-key", srv.URL)
	require.NoError(t, err)

	bars, err := src.Fetch(context.Background(), FetchRequest{Symbol: "AAPL"})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	// 响应按日期倒序返回，解析结果必须升序。
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.InDelta(t, 185.28, bars[0].AdjClose, 1e-9)
	assert.InDelta(t, 188.44, bars[0].High, 1e-9)
	assert.InDelta(t, 82488700, bars[0].Volume, 1e-3)
}

func TestAlphaVantageSource_DateFilter(t *testing.T) {
	bars, err := parseDailySeries([]byte(sampleDailyPayload), FetchRequest{
		Symbol: "AAPL",
		Start:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), bars[0].Date)
}

func TestAlphaVantageSource_ErrorResponses(t *testing.T) {
	_, err := parseDailySeries([]byte(`{"Error Message": "Invalid API call."}`), FetchRequest{Symbol: "AAPL"})
	assert.Error(t, err)

	_, err = parseDailySeries([]byte(`{"Note": "API call frequency limit reached."}`), FetchRequest{Symbol: "AAPL"})
	assert.Error(t, err)

	_, err = parseDailySeries([]byte(`{}`), FetchRequest{Symbol: "AAPL"})
	assert.Error(t, err)
}

type stubSource struct {
	fail map[string]bool
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(_ context.Context, req FetchRequest) ([]universe.Bar, error) {
	if s.fail[req.Symbol] {
		return nil, fmt.Errorf("模拟失败")
	}
	return []universe.Bar{{
		Symbol:   req.Symbol,
		Date:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		AdjClose: 100, High: 101, Low: 99, Close: 100, Volume: 1000,
	}}, nil
}

func newTestService(t *testing.T, src BarSource) *Service {
	t.Helper()
	store, err := universe.NewBarStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc, err := NewService(ServiceConfig{
		Store:           store,
		Sources:         map[string]BarSource{"stub": src},
		DefaultSource:   "stub",
		RateLimitPerMin: 60000,
		MaxConcurrent:   2,
	})
	require.NoError(t, err)
	return svc
}

func waitForJob(t *testing.T, svc *Service, id string) FetchJob {
	t.Helper()
	var job FetchJob
	require.Eventually(t, func() bool {
		snap, ok := svc.JobSnapshot(id)
		if !ok {
			return false
		}
		job = snap
		return snap.Status != JobStatusPending && snap.Status != JobStatusRunning
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestService_SubmitFetch(t *testing.T) {
	svc := newTestService(t, &stubSource{})

	job, err := svc.SubmitFetch(FetchParams{Symbols: []string{"aapl", "MSFT", "AAPL"}})
	require.NoError(t, err)
	assert.Equal(t, 2, job.Total)

	done := waitForJob(t, svc, job.ID)
	assert.Equal(t, JobStatusDone, done.Status)
	assert.Equal(t, 2, done.Completed)
	assert.Equal(t, 2, done.BarsSaved)
	assert.Empty(t, done.Warnings)
}

func TestService_PartialFailure(t *testing.T) {
	svc := newTestService(t, &stubSource{fail: map[string]bool{"MSFT": true}})

	job, err := svc.SubmitFetch(FetchParams{Symbols: []string{"AAPL", "MSFT"}})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.ID)
	assert.Equal(t, JobStatusPartial, done.Status)
	assert.Len(t, done.Warnings, 1)
}

func TestService_AllFailed(t *testing.T) {
	svc := newTestService(t, &stubSource{fail: map[string]bool{"AAPL": true}})

	job, err := svc.SubmitFetch(FetchParams{Symbols: []string{"AAPL"}})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.ID)
	assert.Equal(t, JobStatusFailed, done.Status)
}

func TestService_Validation(t *testing.T) {
	svc := newTestService(t, &stubSource{})

	_, err := svc.SubmitFetch(FetchParams{})
	assert.Error(t, err)

	_, err = svc.SubmitFetch(FetchParams{Symbols: []string{"AAPL"}, Source: "bogus"})
	assert.Error(t, err)
}
