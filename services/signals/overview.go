package signals

import (
	"fmt"
	"math"

	"ttss_backend/models"
)

// MarketOverview is the dashboard headline payload: market breadth for the
// latest trade date plus signal counts and the prior-day win rate.
type MarketOverview struct {
	ActiveMarketCap  string  `json:"activeMarketCap"`
	MarketSentiment  string  `json:"marketSentiment"`
	SentimentChange  float64 `json:"sentimentChange"`
	TodayB1Count     int64   `json:"todayB1Count"`
	MonitorPoolCount int64   `json:"monitorPoolCount"`
	B1Condition      string  `json:"b1Condition"`
	B1Triggered      int64   `json:"b1Triggered"`
	B1Total          int64   `json:"b1Total"`
	S1Triggered      int64   `json:"s1Triggered"`
	S1Total          int64   `json:"s1Total"`
	SellWarningCount int64   `json:"sellWarningCount"`
	SellCondition    string  `json:"sellCondition"`
	YesterdayWinRate float64 `json:"yesterdayWinRate"`
	WinRateCondition string  `json:"winRateCondition"`
	TradeDate        string  `json:"tradeDate"`
}

type marketBreadth struct {
	TotalStocks int64
	TotalAmount float64
	AvgPct      float64
	UpStocks    int64
}

// MarketOverview aggregates the overview card. Missing data degrades to
// zero values rather than an error so the dashboard always renders.
func (s *FilterService) MarketOverview() (*MarketOverview, error) {
	ov := &MarketOverview{
		ActiveMarketCap:  "0",
		MarketSentiment:  "无数据",
		B1Condition:      "J值<13 & MACD>0",
		SellCondition:    "J值>90 / MACD死叉",
		WinRateCondition: "次日涨幅 > 1%",
	}

	latest, err := s.LatestTradeDate()
	if err != nil {
		return nil, err
	}
	if latest == "" {
		return ov, nil
	}
	ov.TradeDate = latest

	var breadth marketBreadth
	err = s.db.Model(&models.DailyBar{}).
		Select("COUNT(*) AS total_stocks, "+
			"COALESCE(SUM(amount), 0) AS total_amount, "+
			"COALESCE(AVG(pct_change), 0) AS avg_pct, "+
			"SUM(CASE WHEN pct_change > 0 THEN 1 ELSE 0 END) AS up_stocks").
		Where("trade_date = ?", latest).
		Scan(&breadth).Error
	if err != nil {
		return nil, err
	}

	if breadth.TotalAmount > 0 {
		// amount is stored in yuan, report trillions
		ov.ActiveMarketCap = fmt.Sprintf("%.2f万亿", breadth.TotalAmount/1e12)
	}
	if breadth.TotalStocks > 0 {
		upRatio := float64(breadth.UpStocks) / float64(breadth.TotalStocks)
		switch {
		case upRatio > 0.6:
			ov.MarketSentiment = "乐观"
		case upRatio > 0.4:
			ov.MarketSentiment = "中性"
		default:
			ov.MarketSentiment = "悲观"
		}
	}
	ov.SentimentChange = math.Round(breadth.AvgPct*100) / 100

	if err := s.countSignals(ov); err != nil {
		return nil, err
	}

	err = s.db.Model(&models.StockInfo{}).
		Where("is_active = ?", true).
		Count(&ov.MonitorPoolCount).Error
	if err != nil {
		return nil, err
	}

	winRate, err := s.previousDayWinRate(latest)
	if err != nil {
		return nil, err
	}
	ov.YesterdayWinRate = winRate

	return ov, nil
}

// countSignals fills the B1/S1 triggered and total counters from the
// summary table, each strategy pinned to its own latest calculated date.
func (s *FilterService) countSignals(ov *MarketOverview) error {
	for _, strategy := range models.ValidStrategyTypes() {
		date, err := s.latestSummaryDate(string(strategy))
		if err != nil {
			return err
		}

		var triggered, total int64
		if date != "" {
			err = s.db.Model(&models.SignalSummary{}).
				Where("strategy_type = ? AND trade_date = ?", strategy, date).
				Count(&triggered).Error
			if err != nil {
				return err
			}
		}
		err = s.db.Model(&models.SignalSummary{}).
			Where("strategy_type = ?", strategy).
			Count(&total).Error
		if err != nil {
			return err
		}

		if strategy == models.StrategyB1 {
			ov.TodayB1Count = triggered
			ov.B1Triggered = triggered
			ov.B1Total = total
		} else {
			ov.S1Triggered = triggered
			ov.S1Total = total
			ov.SellWarningCount = triggered
		}
	}
	return nil
}

// previousDayWinRate is the share of stocks that gained more than 1% on
// the trade date before the given one, in percent.
func (s *FilterService) previousDayWinRate(latest string) (float64, error) {
	var prev *string
	err := s.db.Model(&models.DailyBar{}).
		Where("trade_date < ?", latest).
		Select("MAX(trade_date)").Scan(&prev).Error
	if err != nil {
		return 0, err
	}
	if prev == nil || *prev == "" {
		return 0, nil
	}

	var counts struct {
		Wins  int64
		Total int64
	}
	err = s.db.Model(&models.DailyBar{}).
		Select("SUM(CASE WHEN pct_change > 1 THEN 1 ELSE 0 END) AS wins, COUNT(*) AS total").
		Where("trade_date = ?", *prev).
		Scan(&counts).Error
	if err != nil {
		return 0, err
	}
	if counts.Total == 0 {
		return 0, nil
	}
	return math.Round(float64(counts.Wins)/float64(counts.Total)*1000) / 10, nil
}
