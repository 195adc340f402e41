package signals

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"ttss_backend/models"
	"ttss_backend/services/indicators"
	"ttss_backend/services/tags"
)

// ErrNoTradeData is returned when no bar data exists to calculate against
var ErrNoTradeData = errors.New("no trade data available")

// historyDepth is how many bars are loaded per stock. MACD(12,26,9) needs
// warm-up beyond the 26-day slow EMA, 60 bars keeps the tail stable.
const historyDepth = 60

// Archiver persists a run snapshot to external storage after calculation
type Archiver interface {
	ArchiveRun(ctx context.Context, runLog models.CalculationLog, summaries []models.SignalSummary) error
}

// Broadcaster pushes run-complete notifications to connected clients
type Broadcaster interface {
	BroadcastRunComplete(runLog models.CalculationLog, stockCount int)
}

// CalculationService runs the daily signal pipeline
type CalculationService struct {
	db          *gorm.DB
	archiver    Archiver
	broadcaster Broadcaster
}

var calculationService *CalculationService

// InitCalculationService creates the global calculation service. Archiver
// and broadcaster may be nil when not configured.
func InitCalculationService(db *gorm.DB, archiver Archiver, broadcaster Broadcaster) *CalculationService {
	calculationService = &CalculationService{db: db, archiver: archiver, broadcaster: broadcaster}
	return calculationService
}

// GetCalculationService returns the global calculation service
func GetCalculationService() *CalculationService {
	return calculationService
}

// buildContext converts a bar history into an evaluation context with
// computed indicators. History is oldest to newest, current bar last.
func buildContext(history []models.DailyBar) *tags.EvalContext {
	barData := make([]tags.BarData, len(history))
	bars := make([]indicators.Bar, len(history))
	closes := make([]float64, len(history))

	for i, b := range history {
		open, _ := b.Open.Float64()
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()
		cls, _ := b.Close.Float64()
		preClose, _ := b.PreClose.Float64()
		pct, _ := b.PctChange.Float64()
		amount, _ := b.Amount.Float64()
		volRatio, _ := b.VolumeRatio.Float64()
		swing, _ := b.Swing.Float64()
		totalMv, _ := b.TotalMv.Float64()

		barData[i] = tags.BarData{
			TsCode:      b.TsCode,
			StockName:   b.StockName,
			Industry:    b.Industry,
			TradeDate:   b.TradeDate,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       cls,
			PreClose:    preClose,
			PctChange:   pct,
			Volume:      float64(b.Volume),
			Amount:      amount,
			VolumeRatio: volRatio,
			Swing:       swing,
			TotalMv:     totalMv,
		}
		bars[i] = indicators.Bar{High: high, Low: low, Close: cls}
		closes[i] = cls
	}

	kdj := indicators.KDJ(bars, 9)
	macd := indicators.MACD(closes, 12, 26, 9)
	last := len(history) - 1

	snapshot := tags.IndicatorSnapshot{}
	if last >= 0 {
		snapshot.K = kdj[last].K
		snapshot.D = kdj[last].D
		snapshot.J = kdj[last].J
		snapshot.DIF = macd[last].DIF
		snapshot.DEA = macd[last].DEA
		snapshot.MACD = macd[last].MACD
		if last >= 1 {
			snapshot.PrevDIF = macd[last-1].DIF
			snapshot.PrevDEA = macd[last-1].DEA
		}
		snapshot.MA5, snapshot.MA5Valid = indicators.LastMA(closes, 5)
		snapshot.MA10, snapshot.MA10Valid = indicators.LastMA(closes, 10)
		snapshot.MA20, snapshot.MA20Valid = indicators.LastMA(closes, 20)
	}

	return &tags.EvalContext{
		Bar:        barData[last],
		Indicators: snapshot,
		History:    barData,
	}
}

// resolveTradeDate picks the explicit date or falls back to the latest
// date present in daily bars.
func (s *CalculationService) resolveTradeDate(tradeDate string) (string, error) {
	if tradeDate != "" {
		return tradeDate, nil
	}
	var date *string
	if err := s.db.Model(&models.DailyBar{}).Select("MAX(trade_date)").Scan(&date).Error; err != nil {
		return "", err
	}
	if date == nil || *date == "" {
		return "", ErrNoTradeData
	}
	return *date, nil
}

// Run executes one calculation: quick-filter the universe on filter tags,
// evaluate the full tag set for survivors, upsert results and summaries,
// then archive and broadcast. Re-running the same date overwrites.
func (s *CalculationService) Run(tradeDate string, strategy models.StrategyType,
	triggerSource string, overrides tags.ThresholdOverrides) (*models.CalculationLog, error) {

	started := time.Now()
	runLog := models.CalculationLog{
		StrategyType:  strategy,
		TriggerSource: triggerSource,
		Status:        models.RunStatusRunning,
		StartedAt:     started,
	}

	date, err := s.resolveTradeDate(tradeDate)
	if err != nil {
		return nil, err
	}
	runLog.TradeDate = date

	tagService := tags.GetTagService()
	tagList, err := tagService.ListTags(tags.ListQuery{
		StrategyType: string(strategy),
		EnabledOnly:  true,
	})
	if err != nil {
		return nil, err
	}

	var codes []string
	err = s.db.Model(&models.DailyBar{}).
		Where("trade_date = ?", date).
		Distinct("ts_code").
		Pluck("ts_code", &codes).Error
	if err != nil {
		return nil, err
	}
	runLog.TotalStocks = len(codes)

	if len(codes) == 0 {
		return s.finishRun(&runLog, nil, started, nil)
	}

	var summaries []models.SignalSummary
	var runErr error

	for _, code := range codes {
		history, err := s.loadHistory(code, date)
		if err != nil {
			log.Printf("Calculation: failed to load history for %s: %v", code, err)
			runErr = err
			continue
		}
		if len(history) == 0 {
			continue
		}

		ctx := buildContext(history)
		if !tags.PassesFilters(ctx, tagList, overrides) {
			continue
		}
		runLog.PassedFilter++

		outcomes := tags.Evaluate(ctx, tagList, overrides)
		summary, results := Summarize(date, strategy, ctx.Bar, ctx.Indicators, outcomes)

		if err := UpsertResults(s.db, results); err != nil {
			log.Printf("Calculation: failed to upsert results for %s: %v", code, err)
			runErr = err
			continue
		}
		if err := UpsertSummary(s.db, &summary); err != nil {
			log.Printf("Calculation: failed to upsert summary for %s: %v", code, err)
			runErr = err
			continue
		}
		runLog.TaggedStocks++
		summaries = append(summaries, summary)
	}

	return s.finishRun(&runLog, summaries, started, runErr)
}

// loadHistory loads the trailing bars for a code up to and including the
// trade date, oldest first.
func (s *CalculationService) loadHistory(code, tradeDate string) ([]models.DailyBar, error) {
	var history []models.DailyBar
	err := s.db.Where("ts_code = ? AND trade_date <= ?", code, tradeDate).
		Order("trade_date DESC").
		Limit(historyDepth).
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	// reverse to oldest-first
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

func (s *CalculationService) finishRun(runLog *models.CalculationLog,
	summaries []models.SignalSummary, started time.Time, runErr error) (*models.CalculationLog, error) {

	finished := time.Now()
	runLog.FinishedAt = &finished
	runLog.DurationMs = finished.Sub(started).Milliseconds()
	if runErr != nil {
		runLog.Status = models.RunStatusFailed
		runLog.ErrorMessage = runErr.Error()
	} else {
		runLog.Status = models.RunStatusSuccess
	}

	if err := s.db.Create(runLog).Error; err != nil {
		return nil, err
	}

	if s.archiver != nil && len(summaries) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.archiver.ArchiveRun(ctx, *runLog, summaries); err != nil {
			log.Printf("Calculation: archive failed (non-fatal): %v", err)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastRunComplete(*runLog, len(summaries))
	}

	log.Printf("Calculation run finished: strategy=%s date=%s total=%d passed=%d tagged=%d status=%s duration=%dms",
		runLog.StrategyType, runLog.TradeDate, runLog.TotalStocks,
		runLog.PassedFilter, runLog.TaggedStocks, runLog.Status, runLog.DurationMs)

	return runLog, runErr
}

// ListRuns returns recent calculation logs, newest first
func (s *CalculationService) ListRuns(limit int) ([]models.CalculationLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []models.CalculationLog
	err := s.db.Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// CleanupOldRows deletes match results and summaries older than the
// retention window. Returns rows removed.
func (s *CalculationService) CleanupOldRows(before string) (int64, error) {
	res := s.db.Where("trade_date < ?", before).Delete(&models.TagMatchResult{})
	if res.Error != nil {
		return 0, res.Error
	}
	deleted := res.RowsAffected

	res = s.db.Where("trade_date < ?", before).Delete(&models.SignalSummary{})
	if res.Error != nil {
		return deleted, res.Error
	}
	return deleted + res.RowsAffected, nil
}
