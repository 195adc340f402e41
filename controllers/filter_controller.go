package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ttss_backend/middleware"
	"ttss_backend/models"
	"ttss_backend/services"
	"ttss_backend/services/signals"
	"ttss_backend/services/tags"
)

// parseTagIDs splits a comma-separated id list
func parseTagIDs(raw string) ([]uint, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func isFilterValidationError(err error) bool {
	return errors.Is(err, signals.ErrInvalidStrategy) ||
		errors.Is(err, signals.ErrInvalidLogic) ||
		errors.Is(err, signals.ErrInvalidSortKey) ||
		errors.Is(err, signals.ErrInvalidSortDir)
}

// GetFilteredStocks runs the main dashboard filter
// GET /api/v1/filter/stocks
func GetFilteredStocks(c *gin.Context) {
	tagIDs, err := parseTagIDs(c.Query("tagIds"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tagIds"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	query := signals.FilterQuery{
		StrategyType:       strategyParam(c),
		TagIDs:             tagIDs,
		TagLogic:           c.Query("tagLogic"),
		SortBy:             c.Query("sortBy"),
		SortDir:            c.Query("sortDir"),
		Page:               page,
		PageSize:           pageSize,
		TradeDate:          c.Query("date"),
		ExcludedIndustries: excludedIndustries(c),
	}

	result, err := signals.GetFilterService().FilterStocks(query)
	if err != nil {
		if isFilterValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "filter query failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAvailableTags lists tags for the filter panel
// GET /api/v1/filter/tags
func GetAvailableTags(c *gin.Context) {
	tagList, err := tags.GetTagService().ListTags(tags.ListQuery{
		StrategyType: c.DefaultQuery("strategy", "B1"),
		Category:     c.Query("category"),
		EnabledOnly:  true,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tags"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tagList})
}

// GetTagStatistics returns per-tag match counts for a date
// GET /api/v1/filter/statistics
func GetTagStatistics(c *gin.Context) {
	stats, err := signals.GetFilterService().TagStatistics(
		c.Query("date"),
		c.DefaultQuery("strategy", "B1"),
	)
	if err != nil {
		if isFilterValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "statistics query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"statistics": stats})
}

// GetStockTagDetails returns one stock's summary and per-tag breakdown
// GET /api/v1/filter/stocks/:code
func GetStockTagDetails(c *gin.Context) {
	detail, err := signals.GetFilterService().StockTagDetails(
		c.Param("code"),
		c.Query("date"),
		c.DefaultQuery("strategy", "B1"),
	)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no signal data for stock"})
			return
		}
		if isFilterValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "detail query failed"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetMarketOverview returns the dashboard headline card
// GET /api/v1/market/overview
func GetMarketOverview(c *gin.Context) {
	overview, err := signals.GetFilterService().MarketOverview()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "overview query failed"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

// GetLatestTradeDate returns the most recent date with bar data
// GET /api/v1/filter/latest-date
func GetLatestTradeDate(c *gin.Context) {
	date, err := signals.GetFilterService().LatestTradeDate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve latest date"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tradeDate": date})
}

// strategies guard for controller query params
func validStrategy(s string) bool {
	return s == string(models.StrategyB1) || s == string(models.StrategyS1)
}

func strategyParam(c *gin.Context) string {
	return c.DefaultQuery("strategy", "B1")
}

// excludedIndustries reads the caller's configured industry exclusions.
// Errors degrade to no exclusion rather than failing the request.
func excludedIndustries(c *gin.Context) []string {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return nil
	}
	cfg, err := services.GetUserConfigService().GetConfig(userID)
	if err != nil || cfg.ExcludedIndustries == "" {
		return nil
	}
	var industries []string
	if err := json.Unmarshal([]byte(cfg.ExcludedIndustries), &industries); err != nil {
		return nil
	}
	return industries
}
