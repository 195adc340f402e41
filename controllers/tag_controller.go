package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ttss_backend/models"
	"ttss_backend/services/tags"
)

func operatorName(c *gin.Context) string {
	if phone := c.GetString("phone"); phone != "" {
		return phone
	}
	return "unknown"
}

func tagIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
		return 0, false
	}
	return uint(id), true
}

func respondTagError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tags.ErrTagNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, tags.ErrSystemTagReadOnly),
		errors.Is(err, tags.ErrSystemTagDelete),
		errors.Is(err, tags.ErrTagReferenced),
		errors.Is(err, tags.ErrInvalidLogic):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tag operation failed"})
	}
}

// ListTags returns tag configuration rows
// GET /api/v1/tags
func ListTags(c *gin.Context) {
	tagList, err := tags.GetTagService().ListTags(tags.ListQuery{
		StrategyType: c.Query("strategy"),
		Category:     c.Query("category"),
		TagType:      c.Query("tagType"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tags"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tagList})
}

// GetTag returns one tag
// GET /api/v1/tags/:id
func GetTag(c *gin.Context) {
	id, ok := tagIDParam(c)
	if !ok {
		return
	}
	tag, err := tags.GetTagService().GetTag(id)
	if err != nil {
		respondTagError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

type createTagRequest struct {
	Name             string           `json:"name" binding:"required"`
	Code             string           `json:"code" binding:"required"`
	StrategyType     string           `json:"strategy_type" binding:"required"`
	Category         string           `json:"category" binding:"required"`
	ThresholdValue   *decimal.Decimal `json:"threshold_value"`
	Meaning          string           `json:"meaning"`
	CalculationLogic string           `json:"calculation_logic" binding:"required"`
	SortOrder        int              `json:"sort_order"`
}

// CreateTag creates a custom tag
// POST /api/v1/tags
func CreateTag(c *gin.Context) {
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag := models.Tag{
		Name:             req.Name,
		Code:             req.Code,
		StrategyType:     models.StrategyType(req.StrategyType),
		Category:         models.TagCategory(req.Category),
		ThresholdValue:   req.ThresholdValue,
		Meaning:          req.Meaning,
		CalculationLogic: req.CalculationLogic,
		SortOrder:        req.SortOrder,
		IsEnabled:        true,
	}
	if err := tags.GetTagService().CreateTag(&tag, operatorName(c)); err != nil {
		respondTagError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

type updateTagRequest struct {
	Name             *string         `json:"name"`
	Category         *string         `json:"category"`
	ThresholdValue   json.RawMessage `json:"threshold_value"`
	Meaning          *string         `json:"meaning"`
	CalculationLogic *string         `json:"calculation_logic"`
	SortOrder        *int            `json:"sort_order"`
}

// UpdateTag applies a partial tag update
// PUT /api/v1/tags/:id
func UpdateTag(c *gin.Context) {
	id, ok := tagIDParam(c)
	if !ok {
		return
	}
	var req updateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := tags.GetTagService().UpdateTag(id, tags.UpdateTagInput{
		Name:             req.Name,
		Category:         req.Category,
		ThresholdJSON:    req.ThresholdValue,
		Meaning:          req.Meaning,
		CalculationLogic: req.CalculationLogic,
		SortOrder:        req.SortOrder,
	}, operatorName(c))
	if err != nil {
		respondTagError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

// DeleteTag removes a custom tag
// DELETE /api/v1/tags/:id
func DeleteTag(c *gin.Context) {
	id, ok := tagIDParam(c)
	if !ok {
		return
	}
	if err := tags.GetTagService().DeleteTag(id, operatorName(c)); err != nil {
		respondTagError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tag deleted"})
}

// ToggleTag flips a tag's enabled flag
// POST /api/v1/tags/:id/toggle
func ToggleTag(c *gin.Context) {
	id, ok := tagIDParam(c)
	if !ok {
		return
	}
	tag, err := tags.GetTagService().ToggleTag(id, operatorName(c))
	if err != nil {
		respondTagError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

type reorderRequest struct {
	TagIDs []uint `json:"tag_ids" binding:"required"`
}

// ReorderTags assigns sort order from the given id sequence
// POST /api/v1/tags/reorder
func ReorderTags(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := tags.GetTagService().ReorderTags(req.TagIDs, operatorName(c)); err != nil {
		respondTagError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tags reordered"})
}

type validateLogicRequest struct {
	CalculationLogic string `json:"calculation_logic" binding:"required"`
}

// ValidateTagLogic checks calculation logic text without saving
// POST /api/v1/tags/validate-logic
func ValidateTagLogic(c *gin.Context) {
	var req validateLogicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	issues := tags.ValidateLogic(req.CalculationLogic)
	c.JSON(http.StatusOK, gin.H{"valid": len(issues) == 0, "issues": issues})
}

// GetTagOperationLogs returns recent audit rows, admin only
// GET /api/v1/tags/logs
func GetTagOperationLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := tags.GetTagService().ListOperationLogs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
