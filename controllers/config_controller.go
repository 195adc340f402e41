package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ttss_backend/middleware"
	"ttss_backend/services"
)

// GetUserConfig returns the caller's strategy config, creating defaults
// on first access
// GET /api/v1/config
func GetUserConfig(c *gin.Context) {
	cfg, err := services.GetUserConfigService().GetConfig(middleware.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load config"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg})
}

// UpdateUserConfig applies a partial config update
// PUT /api/v1/config
func UpdateUserConfig(c *gin.Context) {
	var input services.UpdateConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := services.GetUserConfigService().UpdateConfig(middleware.CurrentUserID(c), input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg})
}

// ResetUserConfig restores the caller's config to defaults
// POST /api/v1/config/reset
func ResetUserConfig(c *gin.Context) {
	cfg, err := services.GetUserConfigService().ResetConfig(middleware.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset config"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg})
}

// GetBacktestPool returns the caller's backtest pool codes
// GET /api/v1/config/backtest-pool
func GetBacktestPool(c *gin.Context) {
	codes, err := services.GetUserConfigService().GetBacktestPool(middleware.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load backtest pool"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes})
}

type backtestPoolRequest struct {
	Codes []string `json:"codes" binding:"required"`
}

// SetBacktestPool replaces the caller's backtest pool
// PUT /api/v1/config/backtest-pool
func SetBacktestPool(c *gin.Context) {
	var req backtestPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := services.GetUserConfigService().SetBacktestPool(middleware.CurrentUserID(c), req.Codes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": req.Codes})
}
