package storage

// backtest.go: persisted rollups of completed backtest runs, so strategy
// tweaks can be compared after the fact without rerunning.

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/spotbot/internal/domain"
)

// SaveBacktestResult stores the aggregate outcome of one run.
func (s *SQLiteStorage) SaveBacktestResult(ctx context.Context, run domain.BacktestRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backtest_results (id, created_at, strategy, symbol, start_at, end_at,
		                              total_return_percent, win_rate, total_trades,
		                              total_income, total_volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID.String(), run.CreatedAt.UTC(), run.Strategy, run.Symbol,
		run.Start.UTC(), run.End.UTC(),
		run.Result.TotalReturnPercent, run.Result.WinRate, run.Result.TotalTrades,
		run.Result.TotalIncome.String(), run.Result.TotalVolume.String())
	if err != nil {
		return fmt.Errorf("storage.SaveBacktestResult: %w", err)
	}
	return nil
}

// ListBacktestRuns returns the newest runs, optionally filtered by symbol.
func (s *SQLiteStorage) ListBacktestRuns(ctx context.Context, symbol string, limit int) ([]domain.BacktestRun, error) {
	query := `
		SELECT id, created_at, strategy, symbol, start_at, end_at,
		       total_return_percent, win_rate, total_trades, total_income, total_volume
		FROM backtest_results`
	var args []any
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListBacktestRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.BacktestRun
	for rows.Next() {
		run, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListBacktestRuns: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanBacktestRun(rows *sql.Rows) (domain.BacktestRun, error) {
	var (
		run                       domain.BacktestRun
		id, createdAt, start, end string
		totalIncome, totalVolume  string
	)
	if err := rows.Scan(&id, &createdAt, &run.Strategy, &run.Symbol, &start, &end,
		&run.Result.TotalReturnPercent, &run.Result.WinRate, &run.Result.TotalTrades,
		&totalIncome, &totalVolume); err != nil {
		return domain.BacktestRun{}, err
	}

	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return domain.BacktestRun{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.BacktestRun{}, err
	}
	if run.Start, err = parseTime(start); err != nil {
		return domain.BacktestRun{}, err
	}
	if run.End, err = parseTime(end); err != nil {
		return domain.BacktestRun{}, err
	}
	if run.Result.TotalIncome, err = decimal.NewFromString(totalIncome); err != nil {
		return domain.BacktestRun{}, fmt.Errorf("parse total_income %q: %w", totalIncome, err)
	}
	if run.Result.TotalVolume, err = decimal.NewFromString(totalVolume); err != nil {
		return domain.BacktestRun{}, fmt.Errorf("parse total_volume %q: %w", totalVolume, err)
	}
	return run, nil
}
