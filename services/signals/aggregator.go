package signals

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ttss_backend/models"
	"ttss_backend/services/tags"
)

// Summarize rolls the per-tag outcomes for one stock into match rows and a
// summary row. Outcomes arrive in tag sort order, so matched ids/names keep
// that order. Custom (unevaluated) tags count toward total only.
func Summarize(tradeDate string, strategy models.StrategyType, bar tags.BarData,
	ind tags.IndicatorSnapshot, outcomes []tags.TagOutcome) (models.SignalSummary, []models.TagMatchResult) {

	results := make([]models.TagMatchResult, 0, len(outcomes))
	var matchedIDs []uint
	var matchedNames []string
	var plus, minus, matched int

	for _, o := range outcomes {
		results = append(results, models.TagMatchResult{
			TsCode:       bar.TsCode,
			StockName:    bar.StockName,
			TradeDate:    tradeDate,
			TagID:        o.Tag.ID,
			TagName:      o.Tag.Name,
			Matched:      o.Matched,
			StrategyType: strategy,
			Category:     o.Tag.Category,
		})
		if !o.Matched {
			continue
		}
		matched++
		matchedIDs = append(matchedIDs, o.Tag.ID)
		matchedNames = append(matchedNames, o.Tag.Name)
		if o.Tag.Category == models.CategoryMinus {
			minus++
		} else {
			plus++
		}
	}

	score := plus - minus
	idsJSON, _ := json.Marshal(matchedIDs)
	namesJSON, _ := json.Marshal(matchedNames)

	summary := models.SignalSummary{
		TsCode:          bar.TsCode,
		StockName:       bar.StockName,
		Industry:        bar.Industry,
		TradeDate:       tradeDate,
		StrategyType:    strategy,
		TotalTags:       len(outcomes),
		MatchedTags:     matched,
		PlusCount:       plus,
		MinusCount:      minus,
		TagScore:        score,
		MatchedTagIDs:   string(idsJSON),
		MatchedTagNames: string(namesJSON),
		SignalStrength:  gradeStrength(score, bar.VolumeRatio),
		CurrentPrice:    decimal.NewFromFloat(bar.Close),
		PriceChange:     decimal.NewFromFloat(bar.Close - bar.PreClose),
		PctChange:       decimal.NewFromFloat(bar.PctChange),
		Volume:          int64(bar.Volume),
		Amount:          decimal.NewFromFloat(bar.Amount),
		VolumeRatio:     decimal.NewFromFloat(bar.VolumeRatio),
		TotalMv:         decimal.NewFromFloat(bar.TotalMv),
		KdjK:            decimal.NewFromFloat(ind.K),
		KdjD:            decimal.NewFromFloat(ind.D),
		KdjJ:            decimal.NewFromFloat(ind.J),
		MacdDif:         decimal.NewFromFloat(ind.DIF),
		MacdDea:         decimal.NewFromFloat(ind.DEA),
		MacdValue:       decimal.NewFromFloat(ind.MACD),
	}
	return summary, results
}

// gradeStrength maps score and volume ratio to a display grade
func gradeStrength(score int, volumeRatio float64) models.SignalStrength {
	if score >= 5 && volumeRatio >= 2 {
		return models.StrengthStrong
	}
	if score >= 3 {
		return models.StrengthMedium
	}
	return models.StrengthWeak
}

// UpsertResults writes match rows, replacing existing rows with the same
// (code, date, tag) key so recalculation is idempotent.
func UpsertResults(db *gorm.DB, results []models.TagMatchResult) error {
	if len(results) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ts_code"}, {Name: "trade_date"}, {Name: "tag_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stock_name", "tag_name", "matched", "strategy_type", "category",
		}),
	}).Create(&results).Error
}

// UpsertSummary writes the summary row, replacing an existing row with the
// same (code, date, strategy) key.
func UpsertSummary(db *gorm.DB, summary *models.SignalSummary) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ts_code"}, {Name: "trade_date"}, {Name: "strategy_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stock_name", "industry", "total_tags", "matched_tags", "plus_count", "minus_count",
			"tag_score", "matched_tag_ids", "matched_tag_names", "signal_strength",
			"current_price", "price_change", "pct_change", "volume", "amount",
			"volume_ratio", "total_mv", "kdj_k", "kdj_d", "kdj_j",
			"macd_dif", "macd_dea", "macd_value", "updated_at",
		}),
	}).Create(summary).Error
}
