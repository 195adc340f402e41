package services

import (
	"errors"

	"gorm.io/gorm"

	"ttss_backend/models"
	"ttss_backend/services/indicators"
)

// ErrStockNotFound is returned when a code has no bar data
var ErrStockNotFound = errors.New("stock not found")

// StockService serves kline and indicator series for the detail charts
type StockService struct {
	db *gorm.DB
}

var stockService *StockService

// InitStockService creates the global stock service
func InitStockService(db *gorm.DB) *StockService {
	stockService = &StockService{db: db}
	return stockService
}

// GetStockService returns the global stock service
func GetStockService() *StockService {
	return stockService
}

// KlinePoint is one chart row: the bar plus computed indicators
type KlinePoint struct {
	TradeDate string  `json:"trade_date"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	PctChange float64 `json:"pct_change"`
	K         float64 `json:"kdj_k"`
	D         float64 `json:"kdj_d"`
	J         float64 `json:"kdj_j"`
	DIF       float64 `json:"macd_dif"`
	DEA       float64 `json:"macd_dea"`
	MACD      float64 `json:"macd_value"`
	MA5       float64 `json:"ma5"`
	MA10      float64 `json:"ma10"`
	MA20      float64 `json:"ma20"`
}

// StockDetail is the chart endpoint payload
type StockDetail struct {
	TsCode    string       `json:"ts_code"`
	StockName string       `json:"stock_name"`
	Kline     []KlinePoint `json:"kline"`
}

// GetBars returns raw bars for a code, oldest first, capped at limit
func (s *StockService) GetBars(code string, limit int) ([]models.DailyBar, error) {
	if limit <= 0 || limit > 500 {
		limit = 120
	}
	var bars []models.DailyBar
	err := s.db.Where("ts_code = ?", code).
		Order("trade_date DESC").
		Limit(limit).
		Find(&bars).Error
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrStockNotFound
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// GetDetail returns the kline series with KDJ, MACD and MA overlays
func (s *StockService) GetDetail(code string, limit int) (*StockDetail, error) {
	bars, err := s.GetBars(code, limit)
	if err != nil {
		return nil, err
	}

	indicatorBars := make([]indicators.Bar, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()
		cls, _ := b.Close.Float64()
		indicatorBars[i] = indicators.Bar{High: high, Low: low, Close: cls}
		closes[i] = cls
	}

	kdj := indicators.KDJ(indicatorBars, 9)
	macd := indicators.MACD(closes, 12, 26, 9)
	ma5 := indicators.MA(closes, 5)
	ma10 := indicators.MA(closes, 10)
	ma20 := indicators.MA(closes, 20)

	detail := &StockDetail{
		TsCode:    code,
		StockName: bars[len(bars)-1].StockName,
		Kline:     make([]KlinePoint, len(bars)),
	}
	for i, b := range bars {
		open, _ := b.Open.Float64()
		pct, _ := b.PctChange.Float64()
		detail.Kline[i] = KlinePoint{
			TradeDate: b.TradeDate,
			Open:      open,
			High:      indicatorBars[i].High,
			Low:       indicatorBars[i].Low,
			Close:     closes[i],
			Volume:    b.Volume,
			PctChange: pct,
			K:         kdj[i].K,
			D:         kdj[i].D,
			J:         kdj[i].J,
			DIF:       macd[i].DIF,
			DEA:       macd[i].DEA,
			MACD:      macd[i].MACD,
			MA5:       ma5[i].Value,
			MA10:      ma10[i].Value,
			MA20:      ma20[i].Value,
		}
	}
	return detail, nil
}
