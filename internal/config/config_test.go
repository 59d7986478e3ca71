package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  env: prod
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, defaultAppLogLevel, cfg.App.LogLevel)
	assert.Equal(t, defaultAppHTTPAddr, cfg.App.HTTPAddr)
	assert.Equal(t, defaultDataRoot, cfg.Data.Root)
	assert.Equal(t, defaultMarketSource, cfg.MarketData.Source)
	assert.Equal(t, defaultMarketRatePerMin, cfg.MarketData.RateLimitPerMin)
	assert.Equal(t, defaultBacktestMaxRuns, cfg.Backtest.MaxConcurrentRuns)
	assert.Equal(t, defaultBacktestScanParallel, cfg.Backtest.ScanParallel)
	assert.Equal(t, defaultPresetsPath, cfg.Presets.Path)
	assert.True(t, cfg.Report.Enabled)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  log_level: debug
backtest:
  max_concurrent_runs: 4
  scan_parallel: 16
report:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 4, cfg.Backtest.MaxConcurrentRuns)
	assert.Equal(t, 16, cfg.Backtest.ScanParallel)
	// 显式写 false 不能被默认值覆盖。
	assert.False(t, cfg.Report.Enabled)
}

func TestLoad_IncludeMerge(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
app:
  log_level: warn
data:
  root: /tmp/base
`)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
data:
  root: /tmp/override
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	// 主文件后合并，应覆盖 include 中的同名键。
	assert.Equal(t, "/tmp/override", cfg.Data.Root)
	assert.Equal(t, "warn", cfg.App.LogLevel)
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include:\n  - a.yaml\n")

	_, err := Load(filepath.Join(dir, "a.yaml"))
	assert.ErrorContains(t, err, "循环")
}

func TestLoad_Validation(t *testing.T) {
	dir := t.TempDir()

	bad := writeConfig(t, dir, "bad_level.yaml", `
app:
  log_level: verbose
`)
	_, err := Load(bad)
	assert.ErrorContains(t, err, "log_level")

	tg := writeConfig(t, dir, "bad_tg.yaml", `
notify:
  telegram:
    enabled: true
`)
	_, err = Load(tg)
	assert.ErrorContains(t, err, "telegram")

	refresh := writeConfig(t, dir, "bad_refresh.yaml", `
marketdata:
  refresh:
    enabled: true
`)
	_, err = Load(refresh)
	assert.ErrorContains(t, err, "api_key")
}
