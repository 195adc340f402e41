package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ttss_backend/services"
)

// GetStockDetail returns the kline series with indicator overlays
// GET /api/v1/stocks/:code/detail
func GetStockDetail(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "120"))

	detail, err := services.GetStockService().GetDetail(c.Param("code"), limit)
	if err != nil {
		if errors.Is(err, services.ErrStockNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "stock not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stock detail"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetStockBars returns raw daily bars
// GET /api/v1/stocks/:code/bars
func GetStockBars(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "120"))

	bars, err := services.GetStockService().GetBars(c.Param("code"), limit)
	if err != nil {
		if errors.Is(err, services.ErrStockNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "stock not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bars"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bars": bars})
}
