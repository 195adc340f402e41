package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ttss_backend/middleware"
	"ttss_backend/models"
	"ttss_backend/services"
	"ttss_backend/services/backtesting"
	"ttss_backend/services/signals"
)

type calculateRequest struct {
	TradeDate    string `json:"trade_date"`
	StrategyType string `json:"strategy_type" binding:"required"`
}

// TriggerCalculation starts a manual signal run with the caller's
// configured thresholds, admin only
// POST /api/v1/signals/calculate
func TriggerCalculation(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validStrategy(req.StrategyType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strategy type"})
		return
	}

	overrides, err := services.GetUserConfigService().ThresholdOverrides(middleware.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load threshold config"})
		return
	}

	runLog, err := signals.GetCalculationService().Run(
		req.TradeDate,
		models.StrategyType(req.StrategyType),
		"manual",
		overrides,
	)
	if err != nil {
		if errors.Is(err, signals.ErrNoTradeData) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no trade data available"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "calculation failed", "run": runLog})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": runLog})
}

// ListCalculationRuns returns recent calculation logs
// GET /api/v1/signals/runs
func ListCalculationRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := signals.GetCalculationService().ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

type backtestRequest struct {
	StartDate  string   `json:"start_date" binding:"required"`
	EndDate    string   `json:"end_date" binding:"required"`
	Codes      []string `json:"codes"` // empty means the saved pool
	ScoreEntry int      `json:"score_entry"`
	HoldDays   int      `json:"hold_days"`
}

// RunBacktest simulates the B1-entry / S1-exit strategy over a pool
// POST /api/v1/backtests
func RunBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.CurrentUserID(c)
	codes := req.Codes
	if len(codes) == 0 {
		saved, err := services.GetUserConfigService().GetBacktestPool(userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load backtest pool"})
			return
		}
		codes = saved
	}

	run, err := backtesting.GetEngine().Run(userID, backtesting.Params{
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		PoolCodes:  codes,
		ScoreEntry: req.ScoreEntry,
		HoldDays:   req.HoldDays,
	})
	if err != nil {
		if errors.Is(err, backtesting.ErrEmptyPool) || errors.Is(err, backtesting.ErrBadDateRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "backtest failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

// ListBacktests returns the caller's recent backtest runs
// GET /api/v1/backtests
func ListBacktests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	runs, err := backtesting.GetEngine().ListRuns(middleware.CurrentUserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list backtests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// SignalWebSocket subscribes to run-complete broadcasts
// GET /ws/signals
func SignalWebSocket(c *gin.Context) {
	services.GetSignalHub().ServeWS(c.Writer, c.Request)
}
