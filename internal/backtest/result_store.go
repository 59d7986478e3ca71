package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Artifact kinds stored per run.
const (
	ArtifactTrades   = "trades"
	ArtifactLedger   = "ledger"
	ArtifactEquity   = "equity"
	ArtifactDrawdown = "drawdown"
	ArtifactPicks    = "picks"
	ArtifactStats    = "stats"
	ArtifactHist     = "hist"
	ArtifactReport   = "report"
)

type runModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	Status      string `gorm:"size:16;index"`
	Message     string
	ConfigJSON  datatypes.JSON `gorm:"column:config_json"`
	StatsJSON   datatypes.JSON `gorm:"column:stats_json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (runModel) TableName() string { return "backtest_runs" }

type artifactModel struct {
	ID        uint           `gorm:"primaryKey"`
	RunID     string         `gorm:"size:64;uniqueIndex:idx_artifact_run_kind"`
	Kind      string         `gorm:"size:32;uniqueIndex:idx_artifact_run_kind"`
	Payload   datatypes.JSON `gorm:"column:payload_json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (artifactModel) TableName() string { return "backtest_artifacts" }

// ResultStore persists runs and their bulky artifacts (trades, ledger,
// curves) using Gorm + SQLite.
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(root string) (*ResultStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("result store root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "results.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &artifactModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &ResultStore{db: db}, nil
}

func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertRun writes a fresh run row.
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("result store 未初始化")
	}
	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return err
	}
	model := runModel{
		ID:         run.ID,
		Status:     run.Status,
		Message:    run.Message,
		ConfigJSON: cfgJSON,
		StatsJSON:  statsJSON,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// UpdateRunStatus updates status and message only.
func (s *ResultStore) UpdateRunStatus(ctx context.Context, id, status, message string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("result store 未初始化")
	}
	updates := map[string]interface{}{
		"status":  status,
		"message": message,
	}
	if status == RunStatusDone || status == RunStatusFailed {
		now := time.Now()
		updates["completed_at"] = &now
	}
	return s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(updates).Error
}

// CompleteRun writes the final stats together with the terminal status.
func (s *ResultStore) CompleteRun(ctx context.Context, id, status, message string, stats RunStats) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("result store 未初始化")
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       status,
		"message":      message,
		"stats_json":   datatypes.JSON(statsJSON),
		"completed_at": &now,
	}).Error
}

// SaveArtifact upserts one JSON artifact for the run.
func (s *ResultStore) SaveArtifact(ctx context.Context, runID, kind string, payload interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("result store 未初始化")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	model := artifactModel{RunID: runID, Kind: kind, Payload: raw}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload_json", "updated_at"}),
		}).
		Create(&model).Error
}

// ErrArtifactNotFound 表示该 run 没有对应类型的产物。
var ErrArtifactNotFound = errors.New("artifact not found")

// LoadArtifact decodes one artifact into out.
func (s *ResultStore) LoadArtifact(ctx context.Context, runID, kind string, out interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("result store 未初始化")
	}
	var model artifactModel
	err := s.db.WithContext(ctx).
		Where("run_id = ? AND kind = ?", runID, kind).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrArtifactNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(model.Payload, out)
}

// GetRun loads a single run by id.
func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	if s == nil || s.db == nil {
		return Run{}, fmt.Errorf("result store 未初始化")
	}
	var model runModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return Run{}, err
	}
	return modelToRun(model)
}

// ListRuns returns the most recent runs.
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("result store 未初始化")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var models []runModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(models))
	for _, m := range models {
		run, err := modelToRun(m)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func modelToRun(m runModel) (Run, error) {
	run := Run{
		ID:        m.ID,
		Status:    m.Status,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.CompletedAt != nil {
		run.CompletedAt = *m.CompletedAt
	}
	if len(m.ConfigJSON) > 0 {
		if err := json.Unmarshal(m.ConfigJSON, &run.Config); err != nil {
			return Run{}, err
		}
	}
	if len(m.StatsJSON) > 0 {
		if err := json.Unmarshal(m.StatsJSON, &run.Stats); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}
