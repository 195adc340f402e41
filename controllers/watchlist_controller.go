package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ttss_backend/middleware"
	"ttss_backend/services"
)

// GetWatchlist returns the caller's observation pool
// GET /api/v1/watchlist
func GetWatchlist(c *gin.Context) {
	entries, err := services.GetWatchlistService().List(middleware.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load watchlist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": entries})
}

type addWatchRequest struct {
	TsCode string `json:"ts_code" binding:"required"`
	Note   string `json:"note"`
}

// AddToWatchlist puts a stock on the caller's watchlist
// POST /api/v1/watchlist
func AddToWatchlist(c *gin.Context) {
	var req addWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := services.GetWatchlistService().Add(middleware.CurrentUserID(c), req.TsCode, req.Note)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyWatched) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stock already on watchlist"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add to watchlist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// RemoveFromWatchlist deactivates a watchlist entry
// DELETE /api/v1/watchlist/:code
func RemoveFromWatchlist(c *gin.Context) {
	err := services.GetWatchlistService().Remove(middleware.CurrentUserID(c), c.Param("code"))
	if err != nil {
		if errors.Is(err, services.ErrNotWatched) {
			c.JSON(http.StatusNotFound, gin.H{"error": "stock not on watchlist"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove from watchlist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}

type updateNoteRequest struct {
	Note string `json:"note"`
}

// UpdateWatchlistNote changes the note on an entry
// PUT /api/v1/watchlist/:code
func UpdateWatchlistNote(c *gin.Context) {
	var req updateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := services.GetWatchlistService().UpdateNote(middleware.CurrentUserID(c), c.Param("code"), req.Note)
	if err != nil {
		if errors.Is(err, services.ErrNotWatched) {
			c.JSON(http.StatusNotFound, gin.H{"error": "stock not on watchlist"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update note"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}
