package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SignalStrength grades a summary row for UI display
type SignalStrength string

const (
	StrengthStrong SignalStrength = "strong"
	StrengthMedium SignalStrength = "medium"
	StrengthWeak   SignalStrength = "weak"
)

// TagMatchResult stores one tag evaluation for one stock on one trade date.
// Rows exist for every enabled tag so match rates can be computed, matched
// or not.
type TagMatchResult struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	TsCode       string       `gorm:"type:varchar(20);uniqueIndex:uk_result_code_date_tag;index" json:"ts_code"`
	StockName    string       `gorm:"type:varchar(100)" json:"stock_name"`
	TradeDate    string       `gorm:"type:varchar(8);uniqueIndex:uk_result_code_date_tag;index" json:"trade_date"`
	TagID        uint         `gorm:"uniqueIndex:uk_result_code_date_tag;index" json:"tag_id"`
	TagName      string       `gorm:"type:varchar(100)" json:"tag_name"`
	Matched      bool         `gorm:"default:false;index" json:"matched"`
	StrategyType StrategyType `gorm:"type:varchar(20);index" json:"strategy_type"`
	Category     TagCategory  `gorm:"type:varchar(20)" json:"category"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TableName overrides the default table name
func (TagMatchResult) TableName() string {
	return "stock_tag_results"
}

// SignalSummary is the per-stock rollup of one calculation run: counts,
// score, strength grade and a snapshot of price/indicator values at
// calculation time so the list endpoint needs no joins.
type SignalSummary struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	TsCode          string          `gorm:"type:varchar(20);uniqueIndex:uk_summary_code_date_strategy;index" json:"ts_code"`
	StockName       string          `gorm:"type:varchar(100)" json:"stock_name"`
	Industry        string          `gorm:"type:varchar(50);index" json:"industry"`
	TradeDate       string          `gorm:"type:varchar(8);uniqueIndex:uk_summary_code_date_strategy;index" json:"trade_date"`
	StrategyType    StrategyType    `gorm:"type:varchar(20);uniqueIndex:uk_summary_code_date_strategy;index" json:"strategy_type"`
	TotalTags       int             `json:"total_tags"`
	MatchedTags     int             `json:"matched_tags"`
	PlusCount       int             `json:"plus_count"`
	MinusCount      int             `json:"minus_count"`
	TagScore        int             `gorm:"index" json:"tag_score"`
	MatchedTagIDs   string          `gorm:"type:text" json:"matched_tag_ids"`   // JSON array, tag sort order
	MatchedTagNames string          `gorm:"type:text" json:"matched_tag_names"` // JSON array, same order
	SignalStrength  SignalStrength  `gorm:"type:varchar(20)" json:"signal_strength"`
	CurrentPrice    decimal.Decimal `gorm:"type:decimal(15,2)" json:"current_price"`
	PriceChange     decimal.Decimal `gorm:"type:decimal(15,2)" json:"price_change"`
	PctChange       decimal.Decimal `gorm:"type:decimal(10,4)" json:"pct_change"`
	Volume          int64           `json:"volume"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"`
	VolumeRatio     decimal.Decimal `gorm:"type:decimal(10,4)" json:"volume_ratio"`
	TotalMv         decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_mv"`
	KdjK            decimal.Decimal `gorm:"type:decimal(10,4)" json:"kdj_k"`
	KdjD            decimal.Decimal `gorm:"type:decimal(10,4)" json:"kdj_d"`
	KdjJ            decimal.Decimal `gorm:"type:decimal(10,4)" json:"kdj_j"`
	MacdDif         decimal.Decimal `gorm:"type:decimal(10,4)" json:"macd_dif"`
	MacdDea         decimal.Decimal `gorm:"type:decimal(10,4)" json:"macd_dea"`
	MacdValue       decimal.Decimal `gorm:"type:decimal(10,4)" json:"macd_value"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName overrides the default table name
func (SignalSummary) TableName() string {
	return "stock_tag_summary"
}

// Calculation run status constants
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// CalculationLog records one signal calculation run for auditing and the
// admin runs endpoint.
type CalculationLog struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	TradeDate     string       `gorm:"type:varchar(8);index" json:"trade_date"`
	StrategyType  StrategyType `gorm:"type:varchar(20);index" json:"strategy_type"`
	TriggerSource string       `gorm:"type:varchar(20)" json:"trigger_source"` // schedule, manual
	TotalStocks   int          `json:"total_stocks"`
	PassedFilter  int          `json:"passed_filter"`
	TaggedStocks  int          `json:"tagged_stocks"`
	Status        string       `gorm:"type:varchar(20)" json:"status"`
	ErrorMessage  string       `gorm:"type:text" json:"error_message"`
	DurationMs    int64        `json:"duration_ms"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    *time.Time   `json:"finished_at"`
}

// TableName overrides the default table name
func (CalculationLog) TableName() string {
	return "stock_tag_calculation_log"
}

// BacktestRun stores one pool backtest request and its aggregate outcome
type BacktestRun struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"index" json:"user_id"`
	StartDate   string     `gorm:"type:varchar(8)" json:"start_date"`
	EndDate     string     `gorm:"type:varchar(8)" json:"end_date"`
	PoolCodes   string     `gorm:"type:text" json:"pool_codes"` // JSON array
	ScoreEntry  int        `json:"score_entry"`                 // minimum B1 score to enter
	HoldDays    int        `json:"hold_days"`                   // max holding horizon
	TotalTrades int        `json:"total_trades"`
	WinTrades   int        `json:"win_trades"`
	WinRate     float64    `json:"win_rate"`
	AvgReturn   float64    `json:"avg_return"` // percent
	Detail      string     `gorm:"type:text" json:"detail"`    // JSON per-trade breakdown
	Status      string     `gorm:"type:varchar(20)" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}

// MigrateSignalModels runs database migrations for signal result models
func MigrateSignalModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&TagMatchResult{},
		&SignalSummary{},
		&CalculationLog{},
		&BacktestRun{},
	)
}
