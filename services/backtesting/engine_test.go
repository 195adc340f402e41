package backtesting

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ttss_backend/models"
)

func setupBacktestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateMarketModels(db))
	require.NoError(t, models.MigrateSignalModels(db))
	return db
}

// seedSeries writes sequential bars with the given closes starting at day 1
func seedSeries(t *testing.T, db *gorm.DB, code string, closes []float64) []string {
	dates := make([]string, len(closes))
	for i, c := range closes {
		dates[i] = fmt.Sprintf("202607%02d", i+1)
		require.NoError(t, db.Create(&models.DailyBar{
			TsCode:    code,
			TradeDate: dates[i],
			Close:     decimal.NewFromFloat(c),
		}).Error)
	}
	return dates
}

func seedScore(t *testing.T, db *gorm.DB, code, date string, strategy models.StrategyType, score int) {
	require.NoError(t, db.Create(&models.SignalSummary{
		TsCode: code, TradeDate: date, StrategyType: strategy, TagScore: score,
	}).Error)
}

func TestBacktestEntryAndS1Exit(t *testing.T) {
	db := setupBacktestDB(t)
	e := InitEngine(db)

	dates := seedSeries(t, db, "600001.SH", []float64{10, 10, 11, 12, 13, 12.5})
	seedScore(t, db, "600001.SH", dates[1], models.StrategyB1, 4) // enter at close 10
	seedScore(t, db, "600001.SH", dates[4], models.StrategyS1, 2) // exit at close 13

	run, err := e.Run(1, Params{
		StartDate: dates[0], EndDate: dates[len(dates)-1],
		PoolCodes: []string{"600001.SH"}, ScoreEntry: 3, HoldDays: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, run.TotalTrades)
	assert.Equal(t, 1, run.WinTrades)
	assert.InDelta(t, 1.0, run.WinRate, 1e-9)
	assert.InDelta(t, 30.0, run.AvgReturn, 1e-6) // 10 -> 13

	assert.Contains(t, run.Detail, "s1_signal")
}

func TestBacktestHorizonExit(t *testing.T) {
	db := setupBacktestDB(t)
	e := InitEngine(db)

	closes := []float64{10, 10, 10.5, 10.2, 9.8, 9.5, 9.4}
	dates := seedSeries(t, db, "600001.SH", closes)
	seedScore(t, db, "600001.SH", dates[0], models.StrategyB1, 5)

	run, err := e.Run(1, Params{
		StartDate: dates[0], EndDate: dates[len(dates)-1],
		PoolCodes: []string{"600001.SH"}, ScoreEntry: 3, HoldDays: 3,
	})
	require.NoError(t, err)
	require.Equal(t, 1, run.TotalTrades)
	assert.Equal(t, 0, run.WinTrades)
	assert.Contains(t, run.Detail, "horizon")
	// exit 3 trading days after entry: close 10.2 vs entry 10
	assert.InDelta(t, 2.0, run.AvgReturn, 1e-6)
}

func TestBacktestBelowEntryScore(t *testing.T) {
	db := setupBacktestDB(t)
	e := InitEngine(db)

	dates := seedSeries(t, db, "600001.SH", []float64{10, 11, 12})
	seedScore(t, db, "600001.SH", dates[0], models.StrategyB1, 2)

	run, err := e.Run(1, Params{
		StartDate: dates[0], EndDate: dates[len(dates)-1],
		PoolCodes: []string{"600001.SH"}, ScoreEntry: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, run.TotalTrades)
	assert.InDelta(t, 0.0, run.WinRate, 1e-9)
}

func TestBacktestValidation(t *testing.T) {
	db := setupBacktestDB(t)
	e := InitEngine(db)

	_, err := e.Run(1, Params{StartDate: "20260701", EndDate: "20260731"})
	assert.ErrorIs(t, err, ErrEmptyPool)

	_, err = e.Run(1, Params{StartDate: "20260731", EndDate: "20260701", PoolCodes: []string{"600001.SH"}})
	assert.ErrorIs(t, err, ErrBadDateRange)
}

func TestBacktestListRuns(t *testing.T) {
	db := setupBacktestDB(t)
	e := InitEngine(db)

	dates := seedSeries(t, db, "600001.SH", []float64{10, 11})
	_, err := e.Run(7, Params{
		StartDate: dates[0], EndDate: dates[1], PoolCodes: []string{"600001.SH"},
	})
	require.NoError(t, err)

	runs, err := e.ListRuns(7, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	other, err := e.ListRuns(8, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
