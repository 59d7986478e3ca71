package backtesthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quantlab/internal/backtest"
	"quantlab/internal/marketdata"
	"quantlab/internal/presets"
	"quantlab/internal/universe"

	"github.com/gin-gonic/gin"
)

// Server 提供回测相关的 HTTP API。
type Server struct {
	addr    string
	bars    *universe.BarStore
	sim     *backtest.Simulator
	results *backtest.ResultStore
	fetcher *marketdata.Service
	presets *presets.Registry
	router  *gin.Engine
}

// Config 描述回测 HTTP Server 的依赖。
type Config struct {
	Addr      string
	Bars      *universe.BarStore
	Simulator *backtest.Simulator
	Results   *backtest.ResultStore
	Fetcher   *marketdata.Service
	Presets   *presets.Registry
}

// NewServer 构建回测 HTTP Server。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Bars == nil {
		return nil, errors.New("bar store 不能为空")
	}
	if cfg.Results == nil {
		return nil, errors.New("result store 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:    cfg.Addr,
		bars:    cfg.Bars,
		sim:     cfg.Simulator,
		results: cfg.Results,
		fetcher: cfg.Fetcher,
		presets: cfg.Presets,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/api/universe/meta", s.handleUniverseMeta)
	s.router.GET("/api/presets", s.handlePresets)

	api := s.router.Group("/api/backtest")
	api.POST("/fetch", s.handleFetch)
	api.GET("/fetch/:id", s.handleFetchStatus)
	api.GET("/jobs", s.handleJobs)
	api.POST("/runs", s.handleRunStart)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/metrics", s.handleRunMetrics)
	api.GET("/runs/:id/:kind", s.handleRunArtifact)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleUniverseMeta(c *gin.Context) {
	metas, err := s.bars.ListMeta(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, universe.BuildMeta(metas))
}

func (s *Server) handlePresets(c *gin.Context) {
	if s.presets == nil {
		c.JSON(http.StatusOK, gin.H{"presets": []presets.Preset{}})
		return
	}
	snap := s.presets.Snapshot()
	list := make([]presets.Preset, 0, len(snap.Presets))
	for _, name := range s.presets.Names() {
		list = append(list, snap.Presets[name])
	}
	c.JSON(http.StatusOK, gin.H{"presets": list, "version": snap.Version})
}

func (s *Server) handleFetch(c *gin.Context) {
	if s.fetcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "行情拉取服务未启用"})
		return
	}
	var req struct {
		Symbols []string `json:"symbols" binding:"required"`
		Start   string   `json:"start"`
		End     string   `json:"end"`
		Source  string   `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseOptionalDay(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start 日期格式非法，应为 YYYY-MM-DD"})
		return
	}
	end, err := parseOptionalDay(req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end 日期格式非法，应为 YYYY-MM-DD"})
		return
	}
	job, err := s.fetcher.SubmitFetch(marketdata.FetchParams{
		Symbols: req.Symbols,
		Start:   start,
		End:     end,
		Source:  req.Source,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

func (s *Server) handleFetchStatus(c *gin.Context) {
	if s.fetcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "行情拉取服务未启用"})
		return
	}
	job, ok := s.fetcher.JobSnapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleJobs(c *gin.Context) {
	if s.fetcher == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []marketdata.FetchJob{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.fetcher.JobsSnapshot()})
}

func (s *Server) handleRunStart(c *gin.Context) {
	if s.sim == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "回测模拟器未启用"})
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := backtest.ParseRunRequest(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := s.sim.StartRun(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.results.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleRunMetrics(c *gin.Context) {
	run, err := s.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": run.Stats.Metrics})
}

// 允许通过通配路由直接读取的产物类型。
var artifactKinds = map[string]bool{
	backtest.ArtifactTrades:   true,
	backtest.ArtifactLedger:   true,
	backtest.ArtifactEquity:   true,
	backtest.ArtifactDrawdown: true,
	backtest.ArtifactPicks:    true,
	backtest.ArtifactStats:    true,
	backtest.ArtifactHist:     true,
	backtest.ArtifactReport:   true,
}

func (s *Server) handleRunArtifact(c *gin.Context) {
	kind := strings.ToLower(c.Param("kind"))
	if !artifactKinds[kind] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown artifact kind"})
		return
	}
	var payload json.RawMessage
	err := s.results.LoadArtifact(c.Request.Context(), c.Param("id"), kind, &payload)
	if errors.Is(err, backtest.ErrArtifactNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{kind: payload})
}

func parseOptionalDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或监听出错。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
