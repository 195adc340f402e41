package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttss_backend/models"
)

func TestWatchlistAddRemove(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := InitWatchlistService(db)

	require.NoError(t, db.Create(&models.DailyBar{
		TsCode: "600519.SH", StockName: "贵州茅台", TradeDate: "20260828",
		Close: decimal.NewFromInt(1500),
	}).Error)
	require.NoError(t, db.Create(&models.SignalSummary{
		TsCode: "600519.SH", TradeDate: "20260828", StrategyType: models.StrategyB1,
		MatchedTagNames: `["小阴小阳","缩量企稳"]`,
	}).Error)

	entry, err := svc.Add(7, "600519.SH", "观察回调")
	require.NoError(t, err)
	assert.Equal(t, "贵州茅台", entry.StockName)
	assert.Equal(t, "20260828", entry.AddedDate)
	assert.JSONEq(t, `["小阴小阳","缩量企稳"]`, entry.FactorSnapshot)

	// duplicate add rejected
	_, err = svc.Add(7, "600519.SH", "")
	assert.ErrorIs(t, err, ErrAlreadyWatched)

	// another user can watch the same code
	_, err = svc.Add(8, "600519.SH", "")
	require.NoError(t, err)

	list, err := svc.List(7)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Remove(7, "600519.SH"))
	list, err = svc.List(7)
	require.NoError(t, err)
	assert.Empty(t, list)

	// removing again fails
	assert.ErrorIs(t, svc.Remove(7, "600519.SH"), ErrNotWatched)
}

func TestWatchlistReactivate(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := InitWatchlistService(db)

	require.NoError(t, db.Create(&models.DailyBar{
		TsCode: "000001.SZ", StockName: "平安银行", TradeDate: "20260828",
		Close: decimal.NewFromInt(12),
	}).Error)

	_, err := svc.Add(7, "000001.SZ", "first")
	require.NoError(t, err)
	require.NoError(t, svc.Remove(7, "000001.SZ"))

	// re-adding reuses the row instead of violating the unique key
	entry, err := svc.Add(7, "000001.SZ", "second")
	require.NoError(t, err)
	assert.True(t, entry.IsActive)
	assert.Equal(t, "second", entry.Note)

	var count int64
	db.Model(&models.ObservationEntry{}).Where("user_id = ?", 7).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestWatchlistUpdateNote(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := InitWatchlistService(db)

	require.NoError(t, db.Create(&models.DailyBar{
		TsCode: "000001.SZ", TradeDate: "20260828", Close: decimal.NewFromInt(12),
	}).Error)

	_, err := svc.Add(7, "000001.SZ", "old")
	require.NoError(t, err)

	entry, err := svc.UpdateNote(7, "000001.SZ", "new note")
	require.NoError(t, err)
	assert.Equal(t, "new note", entry.Note)

	_, err = svc.UpdateNote(7, "999999.SH", "x")
	assert.ErrorIs(t, err, ErrNotWatched)
}

func TestWatchlistMissingStockStillAdds(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := InitWatchlistService(db)

	// no bar data: snapshot stays empty but the entry is created
	entry, err := svc.Add(7, "300750.SZ", "")
	require.NoError(t, err)
	assert.Empty(t, entry.AddedDate)
}
