package marketdata

import (
	"context"
	"time"

	"quantlab/internal/universe"
)

// FetchRequest 描述一次远端日线请求。Start/End 为零值时不限制。
type FetchRequest struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

// BarSource 统一不同行情供应商的拉取行为。
type BarSource interface {
	Fetch(ctx context.Context, req FetchRequest) ([]universe.Bar, error)
	Name() string
}
