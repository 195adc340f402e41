package signals

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ttss_backend/models"
)

// Filter errors
var (
	ErrInvalidStrategy = errors.New("invalid strategy type")
	ErrInvalidLogic    = errors.New("invalid tag logic, expected AND or OR")
	ErrInvalidSortKey  = errors.New("invalid sort key")
	ErrInvalidSortDir  = errors.New("invalid sort direction")
)

// sortColumns maps API sort keys to summary table columns
var sortColumns = map[string]string{
	"tagScore":  "tag_score",
	"tagCount":  "matched_tags",
	"pctChange": "pct_change",
}

// FilterQuery is one filtered-stocks request
type FilterQuery struct {
	StrategyType       string
	TagIDs             []uint
	TagLogic           string // AND | OR, default AND
	SortBy             string // tagScore | tagCount | pctChange, default tagScore
	SortDir            string // asc | desc, default desc
	Page               int
	PageSize           int
	TradeDate          string   // empty means latest
	ExcludedIndustries []string // from the user's config
}

// FilterPage is the paginated response payload
type FilterPage struct {
	Stocks     []models.SignalSummary `json:"stocks"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"pageSize"`
	TotalPages int                    `json:"totalPages"`
	TradeDate  string                 `json:"tradeDate"`
}

// TagStat is one row of the tag statistics endpoint
type TagStat struct {
	TagID        uint    `json:"tag_id"`
	TagName      string  `json:"tag_name"`
	Category     string  `json:"category"`
	MatchedCount int64   `json:"matched_count"`
	TotalCount   int64   `json:"total_count"`
	MatchRate    float64 `json:"match_rate"`
}

// StockTagDetail joins one stock's summary with its per-tag results
type StockTagDetail struct {
	Summary models.SignalSummary `json:"summary"`
	Tags    []TagDetailRow       `json:"tags"`
}

// TagDetailRow is one tag result enriched with the tag meaning
type TagDetailRow struct {
	TagID    uint   `json:"tag_id"`
	TagName  string `json:"tag_name"`
	Category string `json:"category"`
	Matched  bool   `json:"matched"`
	Meaning  string `json:"meaning"`
}

// FilterService answers the dashboard filter endpoints
type FilterService struct {
	db *gorm.DB
}

var filterService *FilterService

// InitFilterService creates the global filter service
func InitFilterService(db *gorm.DB) *FilterService {
	filterService = &FilterService{db: db}
	return filterService
}

// GetFilterService returns the global filter service
func GetFilterService() *FilterService {
	return filterService
}

func (q *FilterQuery) normalize() error {
	if q.StrategyType != string(models.StrategyB1) && q.StrategyType != string(models.StrategyS1) {
		return fmt.Errorf("%w: %s", ErrInvalidStrategy, q.StrategyType)
	}
	if q.TagLogic == "" {
		q.TagLogic = string(models.LogicAnd)
	}
	if q.TagLogic != string(models.LogicAnd) && q.TagLogic != string(models.LogicOr) {
		return fmt.Errorf("%w: %s", ErrInvalidLogic, q.TagLogic)
	}
	if q.SortBy == "" {
		q.SortBy = "tagScore"
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidSortKey, q.SortBy)
	}
	if q.SortDir == "" {
		q.SortDir = "desc"
	}
	if q.SortDir != "asc" && q.SortDir != "desc" {
		return fmt.Errorf("%w: %s", ErrInvalidSortDir, q.SortDir)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 200 {
		q.PageSize = 20
	}
	return nil
}

// LatestTradeDate returns the most recent trade date with bar data, empty
// string when no data exists. Serves the latest-date endpoint only; the
// filter queries resolve their date from the summaries instead.
func (s *FilterService) LatestTradeDate() (string, error) {
	var date *string
	err := s.db.Model(&models.DailyBar{}).Select("MAX(trade_date)").Scan(&date).Error
	if err != nil {
		return "", err
	}
	if date == nil {
		return "", nil
	}
	return *date, nil
}

// latestSummaryDate returns the most recent trade date that actually has
// calculated summaries for the strategy. Bars can run ahead of the last
// calculation, so falling back to the bar table would land on a date with
// no signal rows.
func (s *FilterService) latestSummaryDate(strategy string) (string, error) {
	var date *string
	err := s.db.Model(&models.SignalSummary{}).
		Where("strategy_type = ?", strategy).
		Select("MAX(trade_date)").Scan(&date).Error
	if err != nil {
		return "", err
	}
	if date == nil {
		return "", nil
	}
	return *date, nil
}

// codesMatchingTags resolves the code set for a tag filter. AND requires
// every tag in the set matched, OR requires at least one.
func (s *FilterService) codesMatchingTags(tradeDate, strategy string, tagIDs []uint, logic string) ([]string, error) {
	var codes []string
	tx := s.db.Model(&models.TagMatchResult{}).
		Where("trade_date = ? AND strategy_type = ? AND matched = ? AND tag_id IN ?",
			tradeDate, strategy, true, tagIDs)

	if logic == string(models.LogicAnd) {
		tx = tx.Select("ts_code").
			Group("ts_code").
			Having("COUNT(DISTINCT tag_id) = ?", len(tagIDs))
	} else {
		tx = tx.Distinct("ts_code")
	}

	err := tx.Pluck("ts_code", &codes).Error
	return codes, err
}

// FilterStocks runs the main dashboard query: tag-set filter, sort,
// paginate over signal summaries.
func (s *FilterService) FilterStocks(q FilterQuery) (*FilterPage, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}

	tradeDate := q.TradeDate
	if tradeDate == "" {
		latest, err := s.latestSummaryDate(q.StrategyType)
		if err != nil {
			return nil, err
		}
		tradeDate = latest
	}

	page := &FilterPage{
		Stocks:    []models.SignalSummary{},
		Page:      q.Page,
		PageSize:  q.PageSize,
		TradeDate: tradeDate,
	}
	if tradeDate == "" {
		return page, nil
	}

	tx := s.db.Model(&models.SignalSummary{}).
		Where("trade_date = ? AND strategy_type = ?", tradeDate, q.StrategyType)

	if len(q.ExcludedIndustries) > 0 {
		tx = tx.Where("industry NOT IN ?", q.ExcludedIndustries)
	}

	if len(q.TagIDs) > 0 {
		codes, err := s.codesMatchingTags(tradeDate, q.StrategyType, q.TagIDs, q.TagLogic)
		if err != nil {
			return nil, err
		}
		// nothing matches the whole set: short-circuit to an empty page
		if len(codes) == 0 {
			return page, nil
		}
		tx = tx.Where("ts_code IN ?", codes)
	}

	if err := tx.Count(&page.Total).Error; err != nil {
		return nil, err
	}

	order := fmt.Sprintf("%s %s, ts_code ASC", sortColumns[q.SortBy], q.SortDir)
	err := tx.Order(order).
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&page.Stocks).Error
	if err != nil {
		return nil, err
	}

	page.TotalPages = int((page.Total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return page, nil
}

// TagStatistics returns per-tag match counts and rates for a date
func (s *FilterService) TagStatistics(tradeDate, strategy string) ([]TagStat, error) {
	if strategy != string(models.StrategyB1) && strategy != string(models.StrategyS1) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStrategy, strategy)
	}
	if tradeDate == "" {
		latest, err := s.latestSummaryDate(strategy)
		if err != nil {
			return nil, err
		}
		tradeDate = latest
	}
	if tradeDate == "" {
		return []TagStat{}, nil
	}

	var stats []TagStat
	err := s.db.Model(&models.TagMatchResult{}).
		Select("tag_id, tag_name, category, "+
			"SUM(CASE WHEN matched THEN 1 ELSE 0 END) AS matched_count, "+
			"COUNT(*) AS total_count").
		Where("trade_date = ? AND strategy_type = ?", tradeDate, strategy).
		Group("tag_id, tag_name, category").
		Order("tag_id ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	for i := range stats {
		if stats[i].TotalCount > 0 {
			stats[i].MatchRate = float64(stats[i].MatchedCount) / float64(stats[i].TotalCount)
		}
	}
	return stats, nil
}

// StockTagDetails returns one stock's summary and per-tag breakdown
func (s *FilterService) StockTagDetails(code, tradeDate, strategy string) (*StockTagDetail, error) {
	if strategy != string(models.StrategyB1) && strategy != string(models.StrategyS1) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStrategy, strategy)
	}
	if tradeDate == "" {
		latest, err := s.latestSummaryDate(strategy)
		if err != nil {
			return nil, err
		}
		tradeDate = latest
	}

	var summary models.SignalSummary
	err := s.db.Where("ts_code = ? AND trade_date = ? AND strategy_type = ?",
		code, tradeDate, strategy).First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}

	var rows []TagDetailRow
	err = s.db.Model(&models.TagMatchResult{}).
		Select("stock_tag_results.tag_id, stock_tag_results.tag_name, "+
			"stock_tag_results.category, stock_tag_results.matched, "+
			"strategy_config_tags.meaning").
		Joins("LEFT JOIN strategy_config_tags ON strategy_config_tags.id = stock_tag_results.tag_id").
		Where("stock_tag_results.ts_code = ? AND stock_tag_results.trade_date = ? AND stock_tag_results.strategy_type = ?",
			code, tradeDate, strategy).
		Order("strategy_config_tags.sort_order ASC, stock_tag_results.tag_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return &StockTagDetail{Summary: summary, Tags: rows}, nil
}
