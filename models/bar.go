package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DailyBar represents one trading day of one instrument.
// Trade dates are stored as YYYYMMDD strings to match the upstream data feed.
type DailyBar struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	TsCode       string          `gorm:"type:varchar(20);uniqueIndex:uk_bar_code_date;index" json:"ts_code"`
	StockName    string          `gorm:"type:varchar(100)" json:"stock_name"`
	TradeDate    string          `gorm:"type:varchar(8);uniqueIndex:uk_bar_code_date;index" json:"trade_date"`
	Open         decimal.Decimal `gorm:"type:decimal(15,2)" json:"open"`
	High         decimal.Decimal `gorm:"type:decimal(15,2)" json:"high"`
	Low          decimal.Decimal `gorm:"type:decimal(15,2)" json:"low"`
	Close        decimal.Decimal `gorm:"type:decimal(15,2)" json:"close"`
	PreClose     decimal.Decimal `gorm:"type:decimal(15,2)" json:"pre_close"`
	PriceChange  decimal.Decimal `gorm:"type:decimal(15,2)" json:"price_change"`
	PctChange    decimal.Decimal `gorm:"type:decimal(10,4)" json:"pct_change"`
	Volume       int64           `json:"volume"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"`
	VolumeRatio  decimal.Decimal `gorm:"type:decimal(10,4)" json:"volume_ratio"`
	TurnoverRate decimal.Decimal `gorm:"type:decimal(10,4)" json:"turnover_rate"`
	Swing        decimal.Decimal `gorm:"type:decimal(10,4)" json:"swing"` // intraday amplitude in percent
	TotalMv      decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_mv"`
	CircMv       decimal.Decimal `gorm:"type:decimal(20,2)" json:"circ_mv"`
	Industry     string          `gorm:"type:varchar(50)" json:"industry"`
	Area         string          `gorm:"type:varchar(50)" json:"area"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TableName overrides the default table name
func (DailyBar) TableName() string {
	return "daily_bars"
}

// StockInfo represents the instrument universe used by the calculation jobs
type StockInfo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TsCode    string    `gorm:"type:varchar(20);uniqueIndex" json:"ts_code"`
	Name      string    `gorm:"type:varchar(100)" json:"name"`
	Industry  string    `gorm:"type:varchar(50)" json:"industry"`
	Area      string    `gorm:"type:varchar(50)" json:"area"`
	ListDate  string    `gorm:"type:varchar(8)" json:"list_date"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MigrateMarketModels runs database migrations for market data models
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&DailyBar{},
		&StockInfo{},
	)
}
