package signals

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ttss_backend/models"
)

// seedTagFixture builds 3 tags x 3 stocks on one date:
// stock A matches tags 101,102,103; B matches 101,102; C matches 101.
func seedTagFixture(t *testing.T, db *gorm.DB) {
	const date = "20260828"
	matches := map[string][]uint{
		"600001.SH": {101, 102, 103},
		"600002.SH": {101, 102},
		"600003.SH": {101},
	}
	scores := map[string]int{"600001.SH": 3, "600002.SH": 2, "600003.SH": 1}

	for code, tagIDs := range matches {
		matchedSet := make(map[uint]bool)
		for _, id := range tagIDs {
			matchedSet[id] = true
		}
		for _, tagID := range []uint{101, 102, 103} {
			require.NoError(t, db.Create(&models.TagMatchResult{
				TsCode: code, TradeDate: date, TagID: tagID,
				TagName: fmt.Sprintf("tag-%d", tagID), Matched: matchedSet[tagID],
				StrategyType: models.StrategyB1, Category: models.CategoryPlus,
			}).Error)
		}
		require.NoError(t, db.Create(&models.SignalSummary{
			TsCode: code, TradeDate: date, StrategyType: models.StrategyB1,
			TagScore: scores[code], MatchedTags: len(tagIDs), TotalTags: 3,
		}).Error)
	}

	require.NoError(t, db.Create(&models.DailyBar{TsCode: "600001.SH", TradeDate: date}).Error)
}

func TestFilterStocksAndLogic(t *testing.T) {
	db := setupSignalTestDB(t)
	seedTagFixture(t, db)
	svc := InitFilterService(db)

	page, err := svc.FilterStocks(FilterQuery{
		StrategyType: "B1", TagIDs: []uint{101, 102}, TagLogic: "AND",
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
	require.Len(t, page.Stocks, 2)

	codes := []string{page.Stocks[0].TsCode, page.Stocks[1].TsCode}
	assert.Contains(t, codes, "600001.SH")
	assert.Contains(t, codes, "600002.SH")

	// all three tags: only the full match survives
	page, err = svc.FilterStocks(FilterQuery{
		StrategyType: "B1", TagIDs: []uint{101, 102, 103}, TagLogic: "AND",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, "600001.SH", page.Stocks[0].TsCode)
}

func TestFilterStocksOrLogic(t *testing.T) {
	db := setupSignalTestDB(t)
	seedTagFixture(t, db)
	svc := InitFilterService(db)

	page, err := svc.FilterStocks(FilterQuery{
		StrategyType: "B1", TagIDs: []uint{102, 103}, TagLogic: "OR",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
}

func TestFilterStocksEmptyTagSet(t *testing.T) {
	db := setupSignalTestDB(t)
	seedTagFixture(t, db)
	svc := InitFilterService(db)

	// a tag nobody matches short-circuits to an empty page
	page, err := svc.FilterStocks(FilterQuery{
		StrategyType: "B1", TagIDs: []uint{999}, TagLogic: "AND",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Total)
	assert.Empty(t, page.Stocks)
}

func TestFilterStocksNoTagFilter(t *testing.T) {
	db := setupSignalTestDB(t)
	seedTagFixture(t, db)
	svc := InitFilterService(db)

	page, err := svc.FilterStocks(FilterQuery{StrategyType: "B1"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	// default sort is tagScore desc
	assert.Equal(t, "600001.SH", page.Stocks[0].TsCode)
	assert.Equal(t, "600003.SH", page.Stocks[2].TsCode)
}

func TestFilterStocksValidation(t *testing.T) {
	db := setupSignalTestDB(t)
	svc := InitFilterService(db)

	_, err := svc.FilterStocks(FilterQuery{StrategyType: "B9"})
	assert.ErrorIs(t, err, ErrInvalidStrategy)

	_, err = svc.FilterStocks(FilterQuery{StrategyType: "B1", SortBy: "volume"})
	assert.ErrorIs(t, err, ErrInvalidSortKey)

	_, err = svc.FilterStocks(FilterQuery{StrategyType: "B1", TagLogic: "XOR"})
	assert.ErrorIs(t, err, ErrInvalidLogic)

	_, err = svc.FilterStocks(FilterQuery{StrategyType: "B1", SortDir: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidSortDir)
}

func TestFilterStocksPagination(t *testing.T) {
	db := setupSignalTestDB(t)
	svc := InitFilterService(db)

	const date = "20260828"
	for i := 0; i < 47; i++ {
		require.NoError(t, db.Create(&models.SignalSummary{
			TsCode:       fmt.Sprintf("600%03d.SH", i),
			TradeDate:    date,
			StrategyType: models.StrategyB1,
			TagScore:     i % 5,
		}).Error)
	}
	require.NoError(t, db.Create(&models.DailyBar{TsCode: "600000.SH", TradeDate: date}).Error)

	page, err := svc.FilterStocks(FilterQuery{StrategyType: "B1", Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 47, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Stocks, 20)

	page3, err := svc.FilterStocks(FilterQuery{StrategyType: "B1", Page: 3, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, page3.Stocks, 7)

	// past the end: empty page, total intact
	page4, err := svc.FilterStocks(FilterQuery{StrategyType: "B1", Page: 4, PageSize: 20})
	require.NoError(t, err)
	assert.Empty(t, page4.Stocks)
	assert.EqualValues(t, 47, page4.Total)
}

func TestFilterStocksDeterministicTieBreak(t *testing.T) {
	db := setupSignalTestDB(t)
	svc := InitFilterService(db)

	const date = "20260828"
	for _, code := range []string{"600002.SH", "600001.SH", "600003.SH"} {
		require.NoError(t, db.Create(&models.SignalSummary{
			TsCode: code, TradeDate: date, StrategyType: models.StrategyB1, TagScore: 4,
		}).Error)
	}
	require.NoError(t, db.Create(&models.DailyBar{TsCode: "600001.SH", TradeDate: date}).Error)

	page, err := svc.FilterStocks(FilterQuery{StrategyType: "B1"})
	require.NoError(t, err)
	require.Len(t, page.Stocks, 3)
	assert.Equal(t, "600001.SH", page.Stocks[0].TsCode)
	assert.Equal(t, "600002.SH", page.Stocks[1].TsCode)
	assert.Equal(t, "600003.SH", page.Stocks[2].TsCode)
}

func TestFilterStocksDefaultsToLatestCalculatedDate(t *testing.T) {
	db := setupSignalTestDB(t)
	svc := InitFilterService(db)

	// summaries exist for the 27th, but a fresh bar import already sits
	// on the 28th with no calculation behind it
	require.NoError(t, db.Create(&models.SignalSummary{
		TsCode: "600001.SH", TradeDate: "20260827", StrategyType: models.StrategyB1, TagScore: 3,
	}).Error)
	require.NoError(t, db.Create(&models.DailyBar{TsCode: "600001.SH", TradeDate: "20260827"}).Error)
	require.NoError(t, db.Create(&models.DailyBar{TsCode: "600001.SH", TradeDate: "20260828"}).Error)

	page, err := svc.FilterStocks(FilterQuery{StrategyType: "B1"})
	require.NoError(t, err)
	assert.Equal(t, "20260827", page.TradeDate)
	assert.EqualValues(t, 1, page.Total)

	// an S1 summary on a later date must not shift the B1 default
	require.NoError(t, db.Create(&models.SignalSummary{
		TsCode: "600001.SH", TradeDate: "20260828", StrategyType: models.StrategyS1, TagScore: 1,
	}).Error)
	page, err = svc.FilterStocks(FilterQuery{StrategyType: "B1"})
	require.NoError(t, err)
	assert.Equal(t, "20260827", page.TradeDate)

	// the latest-date endpoint still reports the newest bar
	latest, err := svc.LatestTradeDate()
	require.NoError(t, err)
	assert.Equal(t, "20260828", latest)
}

func TestFilterStocksNoData(t *testing.T) {
	db := setupSignalTestDB(t)
	svc := InitFilterService(db)

	// no bars at all: empty result, not an error
	page, err := svc.FilterStocks(FilterQuery{StrategyType: "B1"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Total)
	assert.Empty(t, page.Stocks)
	assert.Empty(t, page.TradeDate)
}

func TestTagStatistics(t *testing.T) {
	db := setupSignalTestDB(t)
	seedTagFixture(t, db)
	svc := InitFilterService(db)

	stats, err := svc.TagStatistics("20260828", "B1")
	require.NoError(t, err)
	require.Len(t, stats, 3)

	byID := make(map[uint]TagStat)
	for _, s := range stats {
		byID[s.TagID] = s
	}
	assert.EqualValues(t, 3, byID[101].MatchedCount)
	assert.EqualValues(t, 2, byID[102].MatchedCount)
	assert.EqualValues(t, 1, byID[103].MatchedCount)
	assert.InDelta(t, 1.0, byID[101].MatchRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, byID[103].MatchRate, 1e-9)
}

func TestStockTagDetails(t *testing.T) {
	db := setupSignalTestDB(t)
	seedTagFixture(t, db)
	svc := InitFilterService(db)

	detail, err := svc.StockTagDetails("600002.SH", "20260828", "B1")
	require.NoError(t, err)
	assert.Equal(t, "600002.SH", detail.Summary.TsCode)
	assert.Len(t, detail.Tags, 3)

	_, err = svc.StockTagDetails("999999.SH", "20260828", "B1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
