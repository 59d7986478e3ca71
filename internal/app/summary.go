package app

import (
	"fmt"
	"strings"
)

type StartupSummary struct {
	HTTPAddr       string
	DataRoot       string
	UniverseSize   int
	Presets        []string
	MarketSource   string
	FetcherReady   bool
	RefreshEnabled bool
	ReportEnabled  bool
	NotifyEnabled  bool
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[服务 (SERVICE)]")
	fmt.Printf("  HTTP 监听: %s\n", s.HTTPAddr)
	fmt.Printf("  数据目录: %s\n", s.DataRoot)
	fmt.Println()

	fmt.Println("[行情数据 (MARKET DATA)]")
	fmt.Printf("  本地标的数: %d\n", s.UniverseSize)
	fmt.Printf("  数据源: %s (拉取%s)\n", s.MarketSource, onOff(s.FetcherReady))
	fmt.Printf("  每日刷新: %s\n", onOff(s.RefreshEnabled))
	fmt.Println()

	fmt.Println("[回测 (BACKTEST)]")
	fmt.Printf("  策略预设: %s\n", formatList(s.Presets))
	fmt.Printf("  报告渲染: %s\n", onOff(s.ReportEnabled))
	fmt.Printf("  Telegram 通知: %s\n", onOff(s.NotifyEnabled))
	fmt.Println(strings.Repeat("=", 80))
}

func onOff(enabled bool) string {
	if enabled {
		return "启用"
	}
	return "禁用"
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
