package universe

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Bar 是单只标的一根日线。
type Bar struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	AdjClose float64   `json:"adj_close"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// SymbolMeta 是标的的基础元数据，用于板块与市值过滤。
type SymbolMeta struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Sector    string  `json:"sector"`
	MarketCap float64 `json:"market_cap"`
}

// BarStore 管理 daily_bars/symbol_meta 表。
type BarStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewBarStore(root string) (*BarStore, error) {
	if root == "" {
		return nil, fmt.Errorf("bar store root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "universe.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureUniverseSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &BarStore{db: db, path: path}, nil
}

func (s *BarStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureUniverseSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_bars (
			symbol TEXT NOT NULL,
			ts INTEGER NOT NULL,
			adj_close REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL DEFAULT 0,
			PRIMARY KEY(symbol, ts)
		);`,
		`CREATE TABLE IF NOT EXISTS symbol_meta (
			symbol TEXT PRIMARY KEY,
			name TEXT,
			sector TEXT,
			market_cap REAL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bars_symbol_ts ON daily_bars(symbol, ts);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertBars 批量写入日线，同一 (symbol, ts) 覆盖旧值。
func (s *BarStore) UpsertBars(ctx context.Context, symbol string, bars []Bar) (int, error) {
	if symbol == "" {
		return 0, fmt.Errorf("symbol 不能为空")
	}
	if len(bars) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_bars (symbol, ts, adj_close, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, ts) DO UPDATE SET
			adj_close=excluded.adj_close, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, b := range bars {
		if b.Date.IsZero() {
			continue
		}
		if _, err := stmt.ExecContext(ctx, symbol, b.Date.UTC().Unix(),
			b.AdjClose, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// LoadBars 读取指定时间段的日线，按时间升序。start/end 为零值时不限。
func (s *BarStore) LoadBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	startTS := int64(0)
	endTS := int64(1<<62 - 1)
	if !start.IsZero() {
		startTS = start.UTC().Unix()
	}
	if !end.IsZero() {
		endTS = end.UTC().Unix()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, adj_close, high, low, close, volume
		FROM daily_bars
		WHERE symbol=? AND ts BETWEEN ? AND ?
		ORDER BY ts ASC`, symbol, startTS, endTS)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bar
	for rows.Next() {
		var b Bar
		var ts int64
		if err := rows.Scan(&ts, &b.AdjClose, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Symbol = symbol
		b.Date = time.Unix(ts, 0).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListSymbols 返回有日线数据的全部标的。
func (s *BarStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM daily_bars ORDER BY symbol ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// CountBars 返回指定标的的日线条数。
func (s *BarStore) CountBars(ctx context.Context, symbol string) (int, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM daily_bars WHERE symbol=?`, symbol).Scan(&cnt)
	return cnt, err
}

// UpsertMeta 写入或更新标的元数据。
func (s *BarStore) UpsertMeta(ctx context.Context, metas []SymbolMeta) error {
	if len(metas) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbol_meta (symbol, name, sector, market_cap, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name=excluded.name, sector=excluded.sector,
			market_cap=excluded.market_cap, updated_at=excluded.updated_at`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := time.Now().UnixMilli()
	for _, m := range metas {
		if m.Symbol == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, m.Symbol, m.Name, m.Sector, m.MarketCap, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListMeta 返回全部标的元数据，按 symbol 升序。
func (s *BarStore) ListMeta(ctx context.Context) ([]SymbolMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, name, sector, market_cap FROM symbol_meta ORDER BY symbol ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SymbolMeta
	for rows.Next() {
		var m SymbolMeta
		var name, sector sql.NullString
		var mcap sql.NullFloat64
		if err := rows.Scan(&m.Symbol, &name, &sector, &mcap); err != nil {
			return nil, err
		}
		m.Name = name.String
		m.Sector = sector.String
		m.MarketCap = mcap.Float64
		out = append(out, m)
	}
	return out, rows.Err()
}
