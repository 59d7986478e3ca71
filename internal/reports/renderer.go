package reports

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"quantlab/internal/engine"
	"quantlab/internal/logger"
)

// Renderer 把单次回测的结果渲染为 HTML 报告产物，可选生成 PNG 快照。
type Renderer struct {
	dir         string
	snapshotPNG bool
}

func NewRenderer(dir string, snapshotPNG bool) (*Renderer, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("report dir 不能为空")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Renderer{dir: dir, snapshotPNG: snapshotPNG}, nil
}

// RenderRun 写出 <runID>.html（以及可选的 <runID>.png），返回 HTML 路径。
// PNG 快照依赖本机 headless 浏览器；不可用时只记录告警，不视为失败。
func (r *Renderer) RenderRun(ctx context.Context, runID, title string, equity, drawdown engine.Series, metrics map[string]float64) (string, error) {
	if r == nil {
		return "", fmt.Errorf("renderer 未初始化")
	}
	html, err := buildRunPage(title, equity, drawdown, metrics)
	if err != nil {
		return "", err
	}
	htmlPath := filepath.Join(r.dir, runID+".html")
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return "", err
	}
	if r.snapshotPNG {
		if err := ensureHeadlessAvailable(ctx); err != nil {
			logger.Warnf("[reports] headless 浏览器不可用，跳过 PNG 快照: %v", err)
			return htmlPath, nil
		}
		png, err := renderHTMLToPNG(ctx, html, chartWidthPx, 2*chartHeightPx+120)
		if err != nil {
			logger.Warnf("[reports] PNG 快照失败: %v", err)
			return htmlPath, nil
		}
		pngPath := filepath.Join(r.dir, runID+".png")
		if err := os.WriteFile(pngPath, png, 0o644); err != nil {
			logger.Warnf("[reports] 写入 PNG 失败: %v", err)
		}
	}
	return htmlPath, nil
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

func ensureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
