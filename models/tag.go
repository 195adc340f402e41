package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StrategyType identifies which signal strategy a tag belongs to
type StrategyType string

const (
	StrategyB1 StrategyType = "B1" // watch/buy signal
	StrategyS1 StrategyType = "S1" // sell/warning signal
)

// String returns the string representation of StrategyType
func (s StrategyType) String() string {
	return string(s)
}

// ValidStrategyTypes returns the supported strategy types
func ValidStrategyTypes() []StrategyType {
	return []StrategyType{StrategyB1, StrategyS1}
}

// TagCategory classifies a tag as a bullish or bearish contributor
type TagCategory string

const (
	CategoryPlus  TagCategory = "plus"  // bullish contributor, adds to score
	CategoryMinus TagCategory = "minus" // bearish contributor, subtracts from score
)

// TagType distinguishes built-in rules from user-authored ones
type TagType string

const (
	TagTypeSystem TagType = "system" // built-in rule, core fields immutable
	TagTypeCustom TagType = "custom" // user-authored, calculation logic is descriptive only
)

// LogicType selects set semantics when filtering by multiple tags
type LogicType string

const (
	LogicAnd LogicType = "AND"
	LogicOr  LogicType = "OR"
)

// Tag represents a named boolean rule evaluated against daily stock data.
// System tags are evaluated by the rule registry keyed on Code; custom tags
// carry free-text calculation logic that is validated but never executed.
type Tag struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	Name             string           `gorm:"type:varchar(100);not null" json:"name"`
	Code             string           `gorm:"type:varchar(100);uniqueIndex:uk_tag_code_strategy" json:"code"`
	StrategyType     StrategyType     `gorm:"type:varchar(20);not null;uniqueIndex:uk_tag_code_strategy" json:"strategy_type"`
	Category         TagCategory      `gorm:"type:varchar(20);not null" json:"category"`
	TagType          TagType          `gorm:"type:varchar(20);not null;default:'custom'" json:"tag_type"`
	IsFilter         bool             `gorm:"default:false" json:"is_filter"` // hard precondition, not a scoring tag
	IsEnabled        bool             `gorm:"default:true" json:"is_enabled"`
	ThresholdValue   *decimal.Decimal `gorm:"type:decimal(15,4)" json:"threshold_value"` // overrides the rule's built-in constant
	SortOrder        int              `gorm:"default:0" json:"sort_order"`
	Meaning          string           `gorm:"type:text" json:"meaning"`
	CalculationLogic string           `gorm:"type:text" json:"calculation_logic"`
	CreatedBy        string           `gorm:"type:varchar(100)" json:"created_by"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName overrides the default table name
func (Tag) TableName() string {
	return "strategy_config_tags"
}

// TagOperationLog stores an audit trail for tag configuration changes
type TagOperationLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TagID         *uint     `gorm:"index" json:"tag_id"`
	TagName       string    `gorm:"type:varchar(100)" json:"tag_name"`
	OperationType string    `gorm:"type:varchar(20);not null" json:"operation_type"` // create, update, delete, enable, disable, reorder
	OldValue      string    `gorm:"type:text" json:"old_value"`
	NewValue      string    `gorm:"type:text" json:"new_value"`
	OperatedBy    string    `gorm:"type:varchar(100)" json:"operated_by"`
	Remark        string    `gorm:"type:varchar(255)" json:"remark"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName overrides the default table name
func (TagOperationLog) TableName() string {
	return "strategy_config_tag_logs"
}

// Tag operation type constants
const (
	TagOpCreate  = "create"
	TagOpUpdate  = "update"
	TagOpDelete  = "delete"
	TagOpEnable  = "enable"
	TagOpDisable = "disable"
	TagOpReorder = "reorder"
)

func threshold(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

// SystemTags returns the built-in tag definitions seeded at migration time.
// Rule semantics live in services/tags; the Code column is the join key.
func SystemTags() []Tag {
	return []Tag{
		// B1 filter tags: hard preconditions applied before scoring
		{
			Name: "J值达标", Code: "j_lt_13_qfq", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, IsFilter: true, ThresholdValue: threshold(13), SortOrder: 0,
			Meaning: "KDJ的J值低于阈值，短线超卖", CalculationLogic: "KDJ <= 13",
		},
		{
			Name: "MACD＞0", Code: "macd_dif_gt_0_qfq", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, IsFilter: true, ThresholdValue: threshold(0), SortOrder: 1,
			Meaning: "MACD的DIF在零轴之上，中期趋势向好", CalculationLogic: "MACD_DIF > 0",
		},
		// B1 plus tags
		{
			Name: "红肥绿瘦", Code: "up1", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, SortOrder: 10,
			Meaning: "最近10个交易日上涨日成交量均大于相邻下跌日", CalculationLogic: "EVERY(VOL[up] > VOL[down], 10)",
		},
		{
			Name: "分歧后缩量", Code: "up2", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, ThresholdValue: threshold(0.5), SortOrder: 11,
			Meaning: "当日成交额不超过前一日的50%", CalculationLogic: "AMOUNT <= REF(AMOUNT, 1) * 0.5",
		},
		{
			Name: "小阴小阳", Code: "up3", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, SortOrder: 12,
			Meaning: "当日涨跌幅在-2%到+1.8%之间", CalculationLogic: "-2 <= PCT_CHG <= 1.8",
		},
		{
			Name: "近期有异动", Code: "up4", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, SortOrder: 13,
			Meaning: "最近10日存在涨幅≥6%且成交量≥前一日1.5倍的交易日", CalculationLogic: "PCT_CHG >= 6 AND VOL >= REF(VOL, 1) * 1.5",
		},
		{
			Name: "倍量红柱", Code: "up5", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, ThresholdValue: threshold(1.8), SortOrder: 14,
			Meaning: "最近10日存在上涨日且成交量≥前一日1.8倍", CalculationLogic: "PCT_CHG > 0 AND VOL >= REF(VOL, 1) * 1.8",
		},
		{
			Name: "振幅适当", Code: "up6", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, SortOrder: 15,
			Meaning: "600开头振幅≤4%，000/300/688开头≤7%", CalculationLogic: "SWING <= 4 OR SWING <= 7",
		},
		{
			Name: "市值适当", Code: "up7", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, ThresholdValue: threshold(800000), SortOrder: 16,
			Meaning: "总市值不低于80亿元", CalculationLogic: "TOTAL_MV >= 800000",
		},
		{
			Name: "缩量企稳", Code: "vol_stable", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, SortOrder: 17,
			Meaning: "近2日平均成交额不超过前3日平均的80%", CalculationLogic: "MA(AMOUNT, 2) <= MA(REF(AMOUNT, 2), 3) * 0.8",
		},
		{
			Name: "底部放量", Code: "vol_bottom", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, ThresholdValue: threshold(1.5), SortOrder: 18,
			Meaning: "当日成交额不低于近5日平均的1.5倍", CalculationLogic: "AMOUNT >= MA(AMOUNT, 5) * 1.5",
		},
		{
			Name: "放量突破", Code: "vol_breakout", StrategyType: StrategyB1, Category: CategoryPlus,
			TagType: TagTypeSystem, ThresholdValue: threshold(2.0), SortOrder: 19,
			Meaning: "当日上涨且成交额不低于近5日平均的2倍", CalculationLogic: "AMOUNT >= MA(AMOUNT, 5) * 2 AND PCT_CHG > 0",
		},
		// B1 minus tags
		{
			Name: "高位放量", Code: "high_vol", StrategyType: StrategyB1, Category: CategoryMinus,
			TagType: TagTypeSystem, ThresholdValue: threshold(0.8), SortOrder: 30,
			Meaning: "当日成交额达到近10日最大值的80%以上，高位换手风险", CalculationLogic: "AMOUNT >= MAX(AMOUNT, 10) * 0.8",
		},
		{
			Name: "跌破20日线", Code: "break_ma", StrategyType: StrategyB1, Category: CategoryMinus,
			TagType: TagTypeSystem, SortOrder: 31,
			Meaning: "收盘价低于20日均线", CalculationLogic: "CLOSE < MA_20",
		},
		{
			Name: "放量下跌", Code: "down1", StrategyType: StrategyB1, Category: CategoryMinus,
			TagType: TagTypeSystem, SortOrder: 32,
			Meaning: "最近10日出现下跌且成交量≥前5日最大成交量", CalculationLogic: "PCT_CHG < 0 AND VOL >= MAX(REF(VOL, 1), 5)",
		},
		{
			Name: "缩量涨停", Code: "down2", StrategyType: StrategyB1, Category: CategoryMinus,
			TagType: TagTypeSystem, ThresholdValue: threshold(0.5), SortOrder: 33,
			Meaning: "最近20日出现涨停且涨停日成交量≤前一日的50%", CalculationLogic: "PCT_CHG >= 9.8 AND VOL <= REF(VOL, 1) * 0.5",
		},
		// S1 tags
		{
			Name: "J值超买", Code: "j_gt_90_qfq", StrategyType: StrategyS1, Category: CategoryPlus,
			TagType: TagTypeSystem, IsFilter: true, ThresholdValue: threshold(90), SortOrder: 0,
			Meaning: "KDJ的J值高于阈值，短线超买", CalculationLogic: "KDJ >= 90",
		},
		{
			Name: "MACD死叉", Code: "macd_dead_cross", StrategyType: StrategyS1, Category: CategoryPlus,
			TagType: TagTypeSystem, SortOrder: 1,
			Meaning: "DIF下穿DEA，动能转弱", CalculationLogic: "CROSS(MACD_DEA, MACD_DIF)",
		},
		{
			Name: "高位放量", Code: "high_vol", StrategyType: StrategyS1, Category: CategoryPlus,
			TagType: TagTypeSystem, ThresholdValue: threshold(0.8), SortOrder: 2,
			Meaning: "当日成交额达到近10日最大值的80%以上", CalculationLogic: "AMOUNT >= MAX(AMOUNT, 10) * 0.8",
		},
		{
			Name: "跌破20日线", Code: "break_ma", StrategyType: StrategyS1, Category: CategoryPlus,
			TagType: TagTypeSystem, SortOrder: 3,
			Meaning: "收盘价低于20日均线", CalculationLogic: "CLOSE < MA_20",
		},
		{
			Name: "均线多头", Code: "ma_bull", StrategyType: StrategyS1, Category: CategoryMinus,
			TagType: TagTypeSystem, SortOrder: 10,
			Meaning: "MA5>MA10>MA20，趋势仍然向上，降低卖出权重", CalculationLogic: "MA_5 > MA_10 AND MA_10 > MA_20",
		},
	}
}

// MigrateTagModels runs database migrations for tag models and seeds system tags
func MigrateTagModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Tag{},
		&TagOperationLog{},
	)
	if err != nil {
		return err
	}

	// Seed system tags, keyed by (code, strategy) so re-running is a no-op
	for _, tag := range SystemTags() {
		var existing Tag
		if db.Where("code = ? AND strategy_type = ?", tag.Code, tag.StrategyType).
			First(&existing).Error == gorm.ErrRecordNotFound {
			db.Create(&tag)
		}
	}

	return nil
}
