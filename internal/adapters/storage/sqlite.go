package storage

// sqlite.go: deal lifecycle persistence.
//
// The single-open-position invariant is enforced in the schema itself: a
// partial unique index on (symbol, source) over rows still in the open state.
// The service-level guard query remains the fast path, but a racing second
// insert fails here regardless of what the guard saw.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/spotbot/internal/domain"
	"github.com/alejandrodnm/spotbot/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS deal (
    id                      TEXT PRIMARY KEY,
    created_at              DATETIME NOT NULL,
    external_id             TEXT UNIQUE,
    symbol                  TEXT NOT NULL,
    qty                     TEXT NOT NULL,
    price                   REAL NOT NULL,
    take_profit_price       REAL,
    stop_loss_price         REAL,
    is_take_profit_executed INTEGER NOT NULL DEFAULT 0,
    is_stop_loss_executed   INTEGER NOT NULL DEFAULT 0,
    is_manually_closed      INTEGER NOT NULL DEFAULT 0,
    sell_price              REAL,
    action                  TEXT NOT NULL,
    source                  TEXT NOT NULL,
    closed_at               DATETIME
);

-- At most one open BUY deal per (symbol, source)
CREATE UNIQUE INDEX IF NOT EXISTS idx_deal_open_slot ON deal(symbol, source)
    WHERE action = 'BUY'
      AND is_take_profit_executed = 0
      AND is_stop_loss_executed = 0
      AND is_manually_closed = 0;

CREATE INDEX IF NOT EXISTS idx_deal_closed  ON deal(symbol, source, closed_at);
CREATE INDEX IF NOT EXISTS idx_deal_created ON deal(created_at);

CREATE TABLE IF NOT EXISTS backtest_results (
    id                   TEXT PRIMARY KEY,
    created_at           DATETIME NOT NULL,
    strategy             TEXT NOT NULL,
    symbol               TEXT NOT NULL,
    start_at             DATETIME NOT NULL,
    end_at               DATETIME NOT NULL,
    total_return_percent REAL NOT NULL,
    win_rate             REAL NOT NULL,
    total_trades         INTEGER NOT NULL,
    total_income         TEXT NOT NULL,
    total_volume         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_backtest_symbol ON backtest_results(symbol, created_at DESC);
`

// openPredicate matches rows in the OPEN state, the same predicate the
// partial unique index is scoped to.
const openPredicate = `action = 'BUY'
      AND is_take_profit_executed = 0
      AND is_stop_loss_executed = 0
      AND is_manually_closed = 0`

const dealColumns = `id, created_at, external_id, symbol, qty, price,
       take_profit_price, stop_loss_price,
       is_take_profit_executed, is_stop_loss_executed, is_manually_closed,
       sell_price, action, source, closed_at`

// SQLiteStorage implements ports.DealStorage and ports.BacktestStorage.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at path and applies the
// schema. Use ":memory:" for tests.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// HasOpenBuy reports whether an open BUY deal exists for (symbol, source).
func (s *SQLiteStorage) HasOpenBuy(ctx context.Context, symbol, source string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM deal
		WHERE symbol = ? AND source = ? AND `+openPredicate+`
		LIMIT 1
	`, symbol, source).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.HasOpenBuy: %w", err)
	}
	return true, nil
}

// GetOpenPosition returns the single open deal for the key.
func (s *SQLiteStorage) GetOpenPosition(ctx context.Context, symbol, source string) (domain.Deal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+dealColumns+` FROM deal
		WHERE symbol = ? AND source = ? AND `+openPredicate+`
		LIMIT 1
	`, symbol, source)

	deal, err := scanDeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Deal{}, domain.ErrNoOpenPosition
	}
	if err != nil {
		return domain.Deal{}, fmt.Errorf("storage.GetOpenPosition: %w", err)
	}
	return deal, nil
}

// CreateFromBuy inserts a new open deal from the signal and the exchange buy
// acknowledgement. A second open deal for the same key is rejected by the
// partial unique index and surfaces as domain.ErrPositionExists.
func (s *SQLiteStorage) CreateFromBuy(ctx context.Context, signal domain.Signal, resp ports.OrderResponse) (domain.Deal, error) {
	deal := domain.Deal{
		ID:              uuid.New(),
		CreatedAt:       time.Now().UTC(),
		ExternalID:      resp.OrderID,
		Symbol:          resp.Symbol,
		Qty:             resp.Qty,
		Price:           resp.Price.InexactFloat64(),
		TakeProfitPrice: decimalPtrToFloat(resp.TakeProfitPrice),
		StopLossPrice:   decimalPtrToFloat(resp.StopLossPrice),
		Action:          domain.ActionBuy,
		Source:          signal.Source,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deal (id, created_at, external_id, symbol, qty, price,
		                  take_profit_price, stop_loss_price, action, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, deal.ID.String(), deal.CreatedAt, nullableString(deal.ExternalID), deal.Symbol,
		deal.Qty.String(), deal.Price, deal.TakeProfitPrice, deal.StopLossPrice,
		deal.Action.String(), deal.Source)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Deal{}, fmt.Errorf("storage.CreateFromBuy: %s/%s: %w",
				deal.Symbol, deal.Source, domain.ErrPositionExists)
		}
		return domain.Deal{}, fmt.Errorf("storage.CreateFromBuy: %w", err)
	}
	return deal, nil
}

// ClosePosition marks the open deal for the key as manually closed.
func (s *SQLiteStorage) ClosePosition(ctx context.Context, signal domain.Signal, resp ports.OrderResponse) (domain.Deal, error) {
	sellPrice := resp.Price.InexactFloat64()
	res, err := s.db.ExecContext(ctx, `
		UPDATE deal
		SET is_manually_closed = 1, sell_price = ?, closed_at = ?
		WHERE symbol = ? AND source = ? AND `+openPredicate+`
	`, sellPrice, time.Now().UTC(), signal.Symbol, signal.Source)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("storage.ClosePosition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Deal{}, fmt.Errorf("storage.ClosePosition: rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Deal{}, fmt.Errorf("storage.ClosePosition: %s/%s: %w",
			signal.Symbol, signal.Source, domain.ErrNoOpenPosition)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+dealColumns+` FROM deal
		WHERE symbol = ? AND source = ? AND is_manually_closed = 1
		ORDER BY closed_at DESC
		LIMIT 1
	`, signal.Symbol, signal.Source)
	deal, err := scanDeal(row)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("storage.ClosePosition: reload: %w", err)
	}
	return deal, nil
}

// MarkTakeProfitExecuted flips the take-profit flag and records the sell
// price. Calling twice rewrites the same values.
func (s *SQLiteStorage) MarkTakeProfitExecuted(ctx context.Context, dealID uuid.UUID, price float64) error {
	return s.markExecuted(ctx, "is_take_profit_executed", dealID, price)
}

// MarkStopLossExecuted flips the stop-loss flag and records the sell price.
func (s *SQLiteStorage) MarkStopLossExecuted(ctx context.Context, dealID uuid.UUID, price float64) error {
	return s.markExecuted(ctx, "is_stop_loss_executed", dealID, price)
}

func (s *SQLiteStorage) markExecuted(ctx context.Context, column string, dealID uuid.UUID, price float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE deal
		SET `+column+` = 1, sell_price = ?, closed_at = ?
		WHERE id = ?
	`, price, time.Now().UTC(), dealID.String())
	if err != nil {
		return fmt.Errorf("storage.markExecuted %s: %w", column, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("storage.markExecuted %s: deal %s not found", column, dealID)
	}
	return nil
}

// HasRecentlyClosed reports whether any deal for the key reached a terminal
// state within the trailing window.
func (s *SQLiteStorage) HasRecentlyClosed(ctx context.Context, symbol, source string, window time.Duration) (bool, error) {
	since := time.Now().UTC().Add(-window)
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM deal
		WHERE symbol = ? AND source = ?
		  AND closed_at IS NOT NULL AND closed_at >= ?
		LIMIT 1
	`, symbol, source, since).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.HasRecentlyClosed: %w", err)
	}
	return true, nil
}

// ListOpenPositions returns every open BUY deal across all keys.
func (s *SQLiteStorage) ListOpenPositions(ctx context.Context) ([]domain.Deal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dealColumns+` FROM deal
		WHERE `+openPredicate+`
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListOpenPositions: query: %w", err)
	}
	defer rows.Close()
	return collectDeals(rows)
}

// ListByPeriod returns BUY deals created in [start, end). Empty symbol or
// source matches any.
func (s *SQLiteStorage) ListByPeriod(ctx context.Context, start, end time.Time, symbol, source string) ([]domain.Deal, error) {
	query := `
		SELECT ` + dealColumns + ` FROM deal
		WHERE action = 'BUY' AND created_at >= ? AND created_at < ?`
	args := []any{start.UTC(), end.UTC()}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	if source != "" {
		query += ` AND source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListByPeriod: query: %w", err)
	}
	defer rows.Close()
	return collectDeals(rows)
}

// rowScanner lets scanDeal work for both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(row rowScanner) (domain.Deal, error) {
	var (
		d          domain.Deal
		id         string
		createdAt  string
		externalID sql.NullString
		qty        string
		tp, sl     sql.NullFloat64
		tpExec     int
		slExec     int
		manual     int
		sellPrice  sql.NullFloat64
		action     string
		closedAt   sql.NullString
	)
	if err := row.Scan(&id, &createdAt, &externalID, &d.Symbol, &qty, &d.Price,
		&tp, &sl, &tpExec, &slExec, &manual, &sellPrice, &action, &d.Source, &closedAt); err != nil {
		return domain.Deal{}, err
	}

	var err error
	if d.ID, err = uuid.Parse(id); err != nil {
		return domain.Deal{}, fmt.Errorf("parse deal id %q: %w", id, err)
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Deal{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if d.Qty, err = decimal.NewFromString(qty); err != nil {
		return domain.Deal{}, fmt.Errorf("parse qty %q: %w", qty, err)
	}
	if d.Action, err = domain.ParseAction(action); err != nil {
		return domain.Deal{}, err
	}
	d.ExternalID = externalID.String
	d.TakeProfitPrice = nullableFloat(tp)
	d.StopLossPrice = nullableFloat(sl)
	d.SellPrice = nullableFloat(sellPrice)
	d.IsTakeProfitExecuted = tpExec == 1
	d.IsStopLossExecuted = slExec == 1
	d.IsManuallyClosed = manual == 1
	if closedAt.Valid {
		t, err := parseTime(closedAt.String)
		if err != nil {
			return domain.Deal{}, fmt.Errorf("parse closed_at %q: %w", closedAt.String, err)
		}
		d.ClosedAt = &t
	}
	return d, nil
}

func collectDeals(rows *sql.Rows) ([]domain.Deal, error) {
	var deals []domain.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal row: %w", err)
		}
		deals = append(deals, deal)
	}
	return deals, rows.Err()
}

// parseTime accepts the formats the driver may hand back for DATETIME.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func decimalPtrToFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
