package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/opsxjacky/portfolio-backtest/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id              TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	symbols         TEXT NOT NULL,
	start_date      TEXT,
	end_date        TEXT,
	days            INTEGER NOT NULL,
	rolling_window  INTEGER NOT NULL,
	initial_capital REAL,
	final_value     REAL,
	total_return    REAL,
	cagr            REAL,
	volatility      REAL,
	sharpe          REAL,
	max_drawdown    REAL,
	total_trades    INTEGER NOT NULL,
	total_fees      REAL
);
CREATE TABLE IF NOT EXISTS backtest_trades (
	run_id  TEXT NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
	day     INTEGER NOT NULL,
	date    TEXT NOT NULL,
	symbol  TEXT NOT NULL,
	side    TEXT NOT NULL,
	shares  INTEGER NOT NULL,
	price   REAL NOT NULL,
	value   REAL NOT NULL,
	fee     REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backtest_trades_run ON backtest_trades(run_id);
`

// timeLayout 定宽时间格式, 保证按字符串排序即按时间排序
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run 已保存的回测摘要
type Run struct {
	report.Summary
	CreatedAt time.Time
}

// SQLiteStore 基于 SQLite 的回测结果存储
type SQLiteStore struct {
	db *sql.DB
}

// Open 打开 (或创建) 数据库并建表
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close 关闭数据库连接
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveReport 在一个事务中写入回测摘要与全部成交记录
func (s *SQLiteStore) SaveReport(ctx context.Context, r *report.BacktestReport) error {
	sum := r.Summary()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO backtest_runs (
		id, created_at, strategy, symbols, start_date, end_date, days, rolling_window,
		initial_capital, final_value, total_return, cagr, volatility, sharpe,
		max_drawdown, total_trades, total_fees
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, r.CreatedAt.UTC().Format(timeLayout), sum.Strategy, sum.Symbols,
		sum.StartDate, sum.EndDate, sum.Days, sum.Window,
		finite(sum.InitialCapital), finite(sum.FinalValue), finite(sum.TotalReturn),
		finite(sum.CAGR), finite(sum.Volatility), finite(sum.Sharpe),
		finite(sum.MaxDrawdown), sum.TotalTrades, finite(sum.TotalFees),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", sum.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO backtest_trades
		(run_id, day, date, symbol, side, shares, price, value, fee)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range r.Trades {
		if _, err := stmt.ExecContext(ctx, sum.ID, t.Day, t.Date, t.Symbol, string(t.Side),
			t.Shares, t.Price, t.Value, t.Fee); err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}
	return tx.Commit()
}

// ListRuns 按创建时间倒序返回最近的回测摘要, limit <= 0 表示全部
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, created_at, strategy, symbols, start_date, end_date, days, rolling_window,
		initial_capital, final_value, total_return, cagr, volatility, sharpe,
		max_drawdown, total_trades, total_fees
		FROM backtest_runs ORDER BY created_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			createdAt string
			start     sql.NullString
			end       sql.NullString
			floats    [8]sql.NullFloat64
		)
		if err := rows.Scan(&run.ID, &createdAt, &run.Strategy, &run.Symbols, &start, &end,
			&run.Days, &run.Window, &floats[0], &floats[1], &floats[2], &floats[3],
			&floats[4], &floats[5], &floats[6], &run.TotalTrades, &floats[7]); err != nil {
			return nil, err
		}
		run.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		run.StartDate, run.EndDate = start.String, end.String
		run.InitialCapital = orNaN(floats[0])
		run.FinalValue = orNaN(floats[1])
		run.TotalReturn = orNaN(floats[2])
		run.CAGR = orNaN(floats[3])
		run.Volatility = orNaN(floats[4])
		run.Sharpe = orNaN(floats[5])
		run.MaxDrawdown = orNaN(floats[6])
		run.TotalFees = orNaN(floats[7])
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// TradeCount 某次回测保存的成交记录数
func (s *SQLiteStore) TradeCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM backtest_trades WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// finite 非有限值存为 NULL
func finite(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
