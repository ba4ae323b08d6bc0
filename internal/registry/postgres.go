package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore persists registry records in a strategy_metrics table,
// one row per (strategy_id, version).
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresStore connects with the given DSN.
func NewPostgresStore(dsn string, timeout time.Duration) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return NewPostgresStoreWithDB(db, timeout), nil
}

// NewPostgresStoreWithDB wraps an existing connection pool.
func NewPostgresStoreWithDB(db *sqlx.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

// Migrate creates the strategy_metrics table if missing.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	schema := `
		CREATE TABLE IF NOT EXISTS strategy_metrics (
			strategy_id        TEXT NOT NULL,
			version            TEXT NOT NULL,
			total_trades       INTEGER NOT NULL DEFAULT 0,
			winning_trades     INTEGER NOT NULL DEFAULT 0,
			losing_trades      INTEGER NOT NULL DEFAULT 0,
			total_pnl          DOUBLE PRECISION NOT NULL DEFAULT 0,
			win_rate           DOUBLE PRECISION NOT NULL DEFAULT 0,
			profit_factor      DOUBLE PRECISION NOT NULL DEFAULT 0,
			sharpe_ratio       DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_drawdown       DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_trade_pnl      DOUBLE PRECISION NOT NULL DEFAULT 0,
			largest_win        DOUBLE PRECISION NOT NULL DEFAULT 0,
			largest_loss       DOUBLE PRECISION NOT NULL DEFAULT 0,
			backtest_passed    BOOLEAN NOT NULL DEFAULT FALSE,
			walkforward_passed BOOLEAN NOT NULL DEFAULT FALSE,
			approved_live      BOOLEAN NOT NULL DEFAULT FALSE,
			live_enabled       BOOLEAN NOT NULL DEFAULT FALSE,
			created_at         TIMESTAMPTZ NOT NULL,
			updated_at         TIMESTAMPTZ NOT NULL,
			approved_at        TIMESTAMPTZ,
			PRIMARY KEY (strategy_id, version)
		)`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create strategy_metrics table: %w", err)
	}
	return nil
}

// Upsert writes the whole record, replacing any previous row for the
// same (strategy_id, version).
func (p *PostgresStore) Upsert(ctx context.Context, m StrategyMetrics) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := `
		INSERT INTO strategy_metrics
		(strategy_id, version, total_trades, winning_trades, losing_trades,
		 total_pnl, win_rate, profit_factor, sharpe_ratio, max_drawdown,
		 avg_trade_pnl, largest_win, largest_loss,
		 backtest_passed, walkforward_passed, approved_live, live_enabled,
		 created_at, updated_at, approved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (strategy_id, version) DO UPDATE SET
			total_trades = EXCLUDED.total_trades,
			winning_trades = EXCLUDED.winning_trades,
			losing_trades = EXCLUDED.losing_trades,
			total_pnl = EXCLUDED.total_pnl,
			win_rate = EXCLUDED.win_rate,
			profit_factor = EXCLUDED.profit_factor,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			max_drawdown = EXCLUDED.max_drawdown,
			avg_trade_pnl = EXCLUDED.avg_trade_pnl,
			largest_win = EXCLUDED.largest_win,
			largest_loss = EXCLUDED.largest_loss,
			backtest_passed = EXCLUDED.backtest_passed,
			walkforward_passed = EXCLUDED.walkforward_passed,
			approved_live = EXCLUDED.approved_live,
			live_enabled = EXCLUDED.live_enabled,
			updated_at = EXCLUDED.updated_at,
			approved_at = EXCLUDED.approved_at`

	_, err := p.db.ExecContext(ctx, query,
		m.StrategyID, m.Version, m.TotalTrades, m.WinningTrades, m.LosingTrades,
		m.TotalPnL, m.WinRate, m.ProfitFactor, m.SharpeRatio, m.MaxDrawdown,
		m.AvgTradePnL, m.LargestWin, m.LargestLoss,
		m.BacktestPassed, m.WalkforwardPassed, m.ApprovedLive, m.LiveEnabled,
		m.CreatedAt, m.UpdatedAt, m.ApprovedAt)
	if err != nil {
		return fmt.Errorf("upsert strategy metrics: %w", err)
	}
	return nil
}

// LoadAll returns every persisted record ordered by key.
func (p *PostgresStore) LoadAll(ctx context.Context) ([]StrategyMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := `
		SELECT strategy_id, version, total_trades, winning_trades, losing_trades,
		       total_pnl, win_rate, profit_factor, sharpe_ratio, max_drawdown,
		       avg_trade_pnl, largest_win, largest_loss,
		       backtest_passed, walkforward_passed, approved_live, live_enabled,
		       created_at, updated_at, approved_at
		FROM strategy_metrics
		ORDER BY strategy_id, version`

	var records []StrategyMetrics
	if err := p.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("load strategy metrics: %w", err)
	}
	return records, nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
