package backtesting

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"ttss_backend/models"
)

// Engine errors
var (
	ErrEmptyPool    = errors.New("backtest pool is empty")
	ErrBadDateRange = errors.New("invalid backtest date range")
)

// Params configures one backtest run
type Params struct {
	StartDate  string   // YYYYMMDD inclusive
	EndDate    string   // YYYYMMDD inclusive
	PoolCodes  []string // stocks to walk
	ScoreEntry int      // minimum B1 tag score to enter, default 3
	HoldDays   int      // max holding horizon in trading days, default 10
}

// Trade is one simulated round trip
type Trade struct {
	TsCode     string  `json:"ts_code"`
	EntryDate  string  `json:"entry_date"`
	EntryPrice float64 `json:"entry_price"`
	ExitDate   string  `json:"exit_date"`
	ExitPrice  float64 `json:"exit_price"`
	ReturnPct  float64 `json:"return_pct"`
	ExitReason string  `json:"exit_reason"` // s1_signal, horizon, range_end
}

// Engine simulates the B1-entry / S1-exit strategy over stored summaries
type Engine struct {
	db *gorm.DB
}

var engine *Engine

// InitEngine creates the global backtest engine
func InitEngine(db *gorm.DB) *Engine {
	engine = &Engine{db: db}
	return engine
}

// GetEngine returns the global backtest engine
func GetEngine() *Engine {
	return engine
}

// Run walks each pool stock through the date range: enter at close when
// the B1 score reaches the entry threshold, exit on the first S1 signal,
// the holding horizon, or the end of the range. Persists a BacktestRun.
func (e *Engine) Run(userID uint, p Params) (*models.BacktestRun, error) {
	if len(p.PoolCodes) == 0 {
		return nil, ErrEmptyPool
	}
	if p.StartDate == "" || p.EndDate == "" || p.StartDate > p.EndDate {
		return nil, ErrBadDateRange
	}
	if p.ScoreEntry <= 0 {
		p.ScoreEntry = 3
	}
	if p.HoldDays <= 0 {
		p.HoldDays = 10
	}

	var trades []Trade
	for _, code := range p.PoolCodes {
		codeTrades, err := e.walkStock(code, p)
		if err != nil {
			return nil, err
		}
		trades = append(trades, codeTrades...)
	}

	run := buildRun(userID, p, trades)
	if err := e.db.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// walkStock simulates trades for one code
func (e *Engine) walkStock(code string, p Params) ([]Trade, error) {
	var bars []models.DailyBar
	err := e.db.Where("ts_code = ? AND trade_date >= ? AND trade_date <= ?",
		code, p.StartDate, p.EndDate).
		Order("trade_date ASC").
		Find(&bars).Error
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}

	entryScores, err := e.loadScores(code, p, models.StrategyB1)
	if err != nil {
		return nil, err
	}
	exitDates, err := e.loadScores(code, p, models.StrategyS1)
	if err != nil {
		return nil, err
	}

	var trades []Trade
	for i := 0; i < len(bars); i++ {
		score, hasSignal := entryScores[bars[i].TradeDate]
		if !hasSignal || score < p.ScoreEntry {
			continue
		}
		entryPrice, _ := bars[i].Close.Float64()
		if entryPrice <= 0 {
			continue
		}

		exitIdx := len(bars) - 1
		reason := "range_end"
		for j := i + 1; j < len(bars); j++ {
			if s1, ok := exitDates[bars[j].TradeDate]; ok && s1 >= 1 {
				exitIdx = j
				reason = "s1_signal"
				break
			}
			if j-i >= p.HoldDays {
				exitIdx = j
				reason = "horizon"
				break
			}
		}
		if exitIdx <= i {
			break
		}

		exitPrice, _ := bars[exitIdx].Close.Float64()
		trades = append(trades, Trade{
			TsCode:     code,
			EntryDate:  bars[i].TradeDate,
			EntryPrice: entryPrice,
			ExitDate:   bars[exitIdx].TradeDate,
			ExitPrice:  exitPrice,
			ReturnPct:  (exitPrice/entryPrice - 1) * 100,
			ExitReason: reason,
		})
		i = exitIdx // no overlapping positions
	}
	return trades, nil
}

// loadScores maps trade date to tag score for one code and strategy
func (e *Engine) loadScores(code string, p Params, strategy models.StrategyType) (map[string]int, error) {
	var rows []models.SignalSummary
	err := e.db.Select("trade_date, tag_score").
		Where("ts_code = ? AND strategy_type = ? AND trade_date >= ? AND trade_date <= ?",
			code, strategy, p.StartDate, p.EndDate).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	scores := make(map[string]int, len(rows))
	for _, r := range rows {
		scores[r.TradeDate] = r.TagScore
	}
	return scores, nil
}

func buildRun(userID uint, p Params, trades []Trade) *models.BacktestRun {
	wins := 0
	totalReturn := 0.0
	for _, t := range trades {
		if t.ReturnPct > 0 {
			wins++
		}
		totalReturn += t.ReturnPct
	}

	winRate := 0.0
	avgReturn := 0.0
	if len(trades) > 0 {
		winRate = float64(wins) / float64(len(trades))
		avgReturn = totalReturn / float64(len(trades))
	}

	poolJSON, _ := json.Marshal(p.PoolCodes)
	detailJSON, _ := json.Marshal(trades)
	finished := time.Now()

	return &models.BacktestRun{
		UserID:      userID,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		PoolCodes:   string(poolJSON),
		ScoreEntry:  p.ScoreEntry,
		HoldDays:    p.HoldDays,
		TotalTrades: len(trades),
		WinTrades:   wins,
		WinRate:     winRate,
		AvgReturn:   avgReturn,
		Detail:      string(detailJSON),
		Status:      models.RunStatusSuccess,
		FinishedAt:  &finished,
	}
}

// ListRuns returns the user's recent backtest runs, newest first
func (e *Engine) ListRuns(userID uint, limit int) ([]models.BacktestRun, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var runs []models.BacktestRun
	err := e.db.Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
