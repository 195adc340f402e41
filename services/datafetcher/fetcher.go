package datafetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ttss_backend/models"
)

// feedBar is one row from the upstream daily feed
type feedBar struct {
	TsCode       string          `json:"ts_code"`
	Name         string          `json:"name"`
	TradeDate    string          `json:"trade_date"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	PreClose     decimal.Decimal `json:"pre_close"`
	PctChg       decimal.Decimal `json:"pct_chg"`
	Vol          int64           `json:"vol"`
	Amount       decimal.Decimal `json:"amount"`
	VolumeRatio  decimal.Decimal `json:"volume_ratio"`
	TurnoverRate decimal.Decimal `json:"turnover_rate"`
	Swing        decimal.Decimal `json:"swing"`
	TotalMv      decimal.Decimal `json:"total_mv"`
	CircMv       decimal.Decimal `json:"circ_mv"`
	Industry     string          `json:"industry"`
	Area         string          `json:"area"`
}

// Fetcher pulls daily bars from the upstream feed and upserts them
type Fetcher struct {
	db      *gorm.DB
	feedURL string
	client  *http.Client
}

var fetcher *Fetcher

// InitFetcher creates the global fetcher. Empty feed URL disables pulls
// but bulk import still works.
func InitFetcher(db *gorm.DB, feedURL string) *Fetcher {
	fetcher = &Fetcher{
		db:      db,
		feedURL: feedURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	return fetcher
}

// GetFetcher returns the global fetcher
func GetFetcher() *Fetcher {
	return fetcher
}

// FetchDaily pulls one trade date from the feed and upserts the bars.
// Returns rows written.
func (f *Fetcher) FetchDaily(ctx context.Context, tradeDate string) (int, error) {
	if f.feedURL == "" {
		return 0, fmt.Errorf("feed URL not configured")
	}

	url := fmt.Sprintf("%s?trade_date=%s", f.feedURL, tradeDate)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var rows []feedBar
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return 0, fmt.Errorf("feed decode failed: %w", err)
	}

	bars := make([]models.DailyBar, 0, len(rows))
	for _, r := range rows {
		if r.TsCode == "" || r.TradeDate == "" {
			continue
		}
		bars = append(bars, models.DailyBar{
			TsCode:       r.TsCode,
			StockName:    r.Name,
			TradeDate:    r.TradeDate,
			Open:         r.Open,
			High:         r.High,
			Low:          r.Low,
			Close:        r.Close,
			PreClose:     r.PreClose,
			PriceChange:  r.Close.Sub(r.PreClose),
			PctChange:    r.PctChg,
			Volume:       r.Vol,
			Amount:       r.Amount,
			VolumeRatio:  r.VolumeRatio,
			TurnoverRate: r.TurnoverRate,
			Swing:        r.Swing,
			TotalMv:      r.TotalMv,
			CircMv:       r.CircMv,
			Industry:     r.Industry,
			Area:         r.Area,
		})
	}

	n, err := f.ImportBars(bars)
	if err != nil {
		return n, err
	}
	log.Printf("Fetched %d bars for %s", n, tradeDate)
	return n, nil
}

// ImportBars upserts bars in batches on the (code, date) key
func (f *Fetcher) ImportBars(bars []models.DailyBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	err := f.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ts_code"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stock_name", "open", "high", "low", "close", "pre_close",
			"price_change", "pct_change", "volume", "amount", "volume_ratio",
			"turnover_rate", "swing", "total_mv", "circ_mv", "industry", "area",
		}),
	}).CreateInBatches(&bars, 500).Error
	if err != nil {
		return 0, err
	}
	return len(bars), nil
}

// RefreshStockList rebuilds the instrument universe from the latest bars
func (f *Fetcher) RefreshStockList() (int, error) {
	var latest *string
	if err := f.db.Model(&models.DailyBar{}).Select("MAX(trade_date)").Scan(&latest).Error; err != nil {
		return 0, err
	}
	if latest == nil || *latest == "" {
		return 0, nil
	}

	var bars []models.DailyBar
	err := f.db.Select("ts_code, stock_name, industry, area").
		Where("trade_date = ?", *latest).
		Find(&bars).Error
	if err != nil {
		return 0, err
	}

	infos := make([]models.StockInfo, 0, len(bars))
	for _, b := range bars {
		infos = append(infos, models.StockInfo{
			TsCode:   b.TsCode,
			Name:     b.StockName,
			Industry: b.Industry,
			Area:     b.Area,
			IsActive: true,
		})
	}
	if len(infos) == 0 {
		return 0, nil
	}

	err = f.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ts_code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "industry", "area", "is_active", "updated_at",
		}),
	}).CreateInBatches(&infos, 500).Error
	if err != nil {
		return 0, err
	}
	return len(infos), nil
}
