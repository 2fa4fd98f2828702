package domain

import (
	"time"

	"github.com/google/uuid"
)

// BacktestRun is the persisted record of one completed backtest: the inputs
// that produced it plus the aggregate result (individual trades are not
// persisted, only their rollup).
type BacktestRun struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Strategy  string
	Symbol    string
	Start     time.Time
	End       time.Time
	Result    BacktestResult
}
