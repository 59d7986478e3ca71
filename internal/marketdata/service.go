package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"quantlab/internal/logger"
	"quantlab/internal/universe"
)

// 任务状态。
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
	JobStatusPartial = "partial"
)

// FetchParams 描述一次批量拉取：多只标的同一时间区间。
type FetchParams struct {
	Symbols []string  `json:"symbols"`
	Start   time.Time `json:"start,omitempty"`
	End     time.Time `json:"end,omitempty"`
	Source  string    `json:"source,omitempty"`
}

// FetchJob 是批量拉取任务的进度快照。
type FetchJob struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Params    FetchParams `json:"params"`
	Total     int         `json:"total"`
	Completed int         `json:"completed"`
	BarsSaved int         `json:"bars_saved"`
	Message   string      `json:"message,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (j *FetchJob) copy() FetchJob {
	out := *j
	out.Warnings = append([]string(nil), j.Warnings...)
	out.Params.Symbols = append([]string(nil), j.Params.Symbols...)
	return out
}

// ServiceConfig 配置行情拉取服务。
type ServiceConfig struct {
	Store           *universe.BarStore
	Sources         map[string]BarSource
	DefaultSource   string
	RateLimitPerMin int
	MaxConcurrent   int
}

// Service 负责管理拉取任务、限流与写库。
type Service struct {
	store         *universe.BarStore
	sources       map[string]BarSource
	defaultSource string

	limiter *rate.Limiter
	sem     chan struct{}

	mu   sync.RWMutex
	jobs map[string]*FetchJob

	baseCtx context.Context
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store 不能为空")
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("至少需要一个数据源")
	}
	// Alpha Vantage 免费档每分钟 5 次，默认按此限流。
	perMin := cfg.RateLimitPerMin
	if perMin <= 0 {
		perMin = 5
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	svc := &Service{
		store:         cfg.Store,
		sources:       make(map[string]BarSource),
		defaultSource: strings.ToLower(cfg.DefaultSource),
		limiter:       rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 1),
		sem:           make(chan struct{}, maxConcurrent),
		jobs:          make(map[string]*FetchJob),
		baseCtx:       context.Background(),
	}
	for k, v := range cfg.Sources {
		svc.sources[strings.ToLower(k)] = v
	}
	if svc.defaultSource == "" {
		for k := range svc.sources {
			svc.defaultSource = k
			break
		}
	}
	return svc, nil
}

// SetContext 注入宿主 ctx，用于任务取消。
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Service) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// SubmitFetch 提交批量拉取任务并立即返回任务快照。
func (s *Service) SubmitFetch(params FetchParams) (FetchJob, error) {
	symbols := dedupeSymbols(params.Symbols)
	if len(symbols) == 0 {
		return FetchJob{}, fmt.Errorf("symbols 不能为空")
	}
	params.Symbols = symbols

	sourceName := strings.ToLower(params.Source)
	if sourceName == "" {
		sourceName = s.defaultSource
	}
	src := s.sources[sourceName]
	if src == nil {
		return FetchJob{}, fmt.Errorf("未知数据源: %s", params.Source)
	}
	params.Source = sourceName

	job := &FetchJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Params:    params,
		Total:     len(symbols),
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	logger.Infof("[marketdata] 任务 %s 提交：%d 只标的，数据源=%s", job.ID, len(symbols), sourceName)

	go s.runJob(job.ID, src)
	return job.copy(), nil
}

func (s *Service) runJob(jobID string, source BarSource) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx().Done():
		s.setJobStatus(jobID, JobStatusFailed, "服务已关闭")
		return
	}
	defer func() { <-s.sem }()

	job := s.getJob(jobID)
	if job == nil {
		return
	}
	s.updateJob(jobID, func(j *FetchJob) {
		j.Status = JobStatusRunning
		j.Message = ""
	})

	ctx := s.ctx()
	params := job.Params
	var warnings []string

	for _, symbol := range params.Symbols {
		if err := ctx.Err(); err != nil {
			s.setJobStatus(jobID, JobStatusFailed, err.Error())
			return
		}
		if err := s.limiter.Wait(ctx); err != nil {
			s.setJobStatus(jobID, JobStatusFailed, err.Error())
			return
		}
		bars, err := source.Fetch(ctx, FetchRequest{Symbol: symbol, Start: params.Start, End: params.End})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", symbol, err))
			logger.Warnf("[marketdata] %s 拉取失败: %v", symbol, err)
			s.updateJob(jobID, func(j *FetchJob) {
				j.Completed++
				j.Warnings = append([]string(nil), warnings...)
				j.UpdatedAt = time.Now()
			})
			continue
		}
		saved, err := s.store.UpsertBars(ctx, symbol, bars)
		if err != nil {
			s.setJobStatus(jobID, JobStatusFailed, fmt.Sprintf("写入失败: %v", err))
			return
		}
		s.updateJob(jobID, func(j *FetchJob) {
			j.Completed++
			j.BarsSaved += saved
			j.UpdatedAt = time.Now()
		})
	}

	status := JobStatusDone
	message := "拉取完成"
	if len(warnings) > 0 {
		if len(warnings) == len(params.Symbols) {
			status = JobStatusFailed
			message = "全部标的拉取失败"
		} else {
			status = JobStatusPartial
			message = "已完成，但部分标的失败"
		}
	}
	s.updateJob(jobID, func(j *FetchJob) {
		j.Status = status
		j.Message = message
		j.UpdatedAt = time.Now()
		if len(warnings) > 0 {
			j.Warnings = append([]string(nil), warnings...)
		}
	})
	logger.Infof("[marketdata] 任务 %s 完成，状态=%s，失败=%d", jobID, status, len(warnings))
}

func (s *Service) setJobStatus(jobID, status, message string) {
	s.updateJob(jobID, func(j *FetchJob) {
		j.Status = status
		j.Message = message
		j.UpdatedAt = time.Now()
	})
}

func (s *Service) getJob(id string) *FetchJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

func (s *Service) updateJob(id string, fn func(*FetchJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && fn != nil {
		fn(job)
	}
}

// JobSnapshot 返回指定任务的副本。
func (s *Service) JobSnapshot(id string) (FetchJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return FetchJob{}, false
	}
	return job.copy(), true
}

// JobsSnapshot 返回所有任务的拷贝列表。
func (s *Service) JobsSnapshot() []FetchJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FetchJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.copy())
	}
	return out
}

func dedupeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	var out []string
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
