package tags

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"ttss_backend/models"
)

// Service errors
var (
	ErrTagNotFound       = errors.New("tag not found")
	ErrSystemTagReadOnly = errors.New("system tag core fields cannot be modified")
	ErrSystemTagDelete   = errors.New("system tags cannot be deleted")
	ErrTagReferenced     = errors.New("tag is referenced by match results")
	ErrInvalidLogic      = errors.New("calculation logic failed validation")
)

// TagService manages tag configuration with an audit trail
type TagService struct {
	db *gorm.DB
}

var tagService *TagService

// InitTagService creates the global tag service
func InitTagService(db *gorm.DB) *TagService {
	tagService = &TagService{db: db}
	return tagService
}

// GetTagService returns the global tag service
func GetTagService() *TagService {
	return tagService
}

// ListQuery filters the tag list endpoint
type ListQuery struct {
	StrategyType string
	Category     string
	TagType      string
	EnabledOnly  bool
}

// ListTags returns tags ordered by sort order then id
func (s *TagService) ListTags(q ListQuery) ([]models.Tag, error) {
	var tagList []models.Tag
	tx := s.db.Model(&models.Tag{})
	if q.StrategyType != "" {
		tx = tx.Where("strategy_type = ?", q.StrategyType)
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.TagType != "" {
		tx = tx.Where("tag_type = ?", q.TagType)
	}
	if q.EnabledOnly {
		tx = tx.Where("is_enabled = ?", true)
	}
	err := tx.Order("sort_order ASC, id ASC").Find(&tagList).Error
	return tagList, err
}

// GetTag fetches one tag by id
func (s *TagService) GetTag(id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return &tag, nil
}

// CreateTag creates a custom tag. The calculation logic must pass the
// heuristic validator; the tag type is forced to custom.
func (s *TagService) CreateTag(tag *models.Tag, operator string) error {
	if tag.StrategyType != models.StrategyB1 && tag.StrategyType != models.StrategyS1 {
		return fmt.Errorf("invalid strategy type: %s", tag.StrategyType)
	}
	if tag.Category != models.CategoryPlus && tag.Category != models.CategoryMinus {
		return fmt.Errorf("invalid category: %s", tag.Category)
	}
	if issues := ValidateLogic(tag.CalculationLogic); len(issues) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidLogic, issues[0])
	}

	tag.TagType = models.TagTypeCustom
	tag.CreatedBy = operator

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tag).Error; err != nil {
			return err
		}
		return s.logOperation(tx, &tag.ID, tag.Name, models.TagOpCreate, "", snapshotJSON(tag), operator, "")
	})
}

// UpdateTagInput carries the mutable fields of a tag update
type UpdateTagInput struct {
	Name             *string
	Category         *string
	ThresholdJSON    json.RawMessage // decimal or null, raw to tell absent from null
	Meaning          *string
	CalculationLogic *string
	SortOrder        *int
}

// UpdateTag applies an update. System tags keep name and category
// immutable; meaning, threshold, sort order and the descriptive
// calculation logic stay editable for both tag types.
func (s *TagService) UpdateTag(id uint, input UpdateTagInput, operator string) (*models.Tag, error) {
	tag, err := s.GetTag(id)
	if err != nil {
		return nil, err
	}
	old := snapshotJSON(tag)

	if tag.TagType == models.TagTypeSystem {
		if input.Name != nil && *input.Name != tag.Name {
			return nil, ErrSystemTagReadOnly
		}
		if input.Category != nil && *input.Category != string(tag.Category) {
			return nil, ErrSystemTagReadOnly
		}
	} else {
		if input.Name != nil {
			tag.Name = *input.Name
		}
		if input.Category != nil {
			tag.Category = models.TagCategory(*input.Category)
			if tag.Category != models.CategoryPlus && tag.Category != models.CategoryMinus {
				return nil, fmt.Errorf("invalid category: %s", tag.Category)
			}
		}
	}

	if input.CalculationLogic != nil {
		if issues := ValidateLogic(*input.CalculationLogic); len(issues) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidLogic, issues[0])
		}
		tag.CalculationLogic = *input.CalculationLogic
	}

	if input.Meaning != nil {
		tag.Meaning = *input.Meaning
	}
	if input.SortOrder != nil {
		tag.SortOrder = *input.SortOrder
	}
	if len(input.ThresholdJSON) > 0 {
		if err := json.Unmarshal(input.ThresholdJSON, &tag.ThresholdValue); err != nil {
			return nil, fmt.Errorf("invalid threshold value: %w", err)
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(tag).Error; err != nil {
			return err
		}
		return s.logOperation(tx, &tag.ID, tag.Name, models.TagOpUpdate, old, snapshotJSON(tag), operator, "")
	})
	if err != nil {
		return nil, err
	}
	return tag, nil
}

// DeleteTag removes a custom tag. System tags are never deletable; custom
// tags only while no match results reference them.
func (s *TagService) DeleteTag(id uint, operator string) error {
	tag, err := s.GetTag(id)
	if err != nil {
		return err
	}
	if tag.TagType == models.TagTypeSystem {
		return ErrSystemTagDelete
	}

	var refs int64
	if err := s.db.Model(&models.TagMatchResult{}).Where("tag_id = ?", id).Count(&refs).Error; err != nil {
		return err
	}
	if refs > 0 {
		return ErrTagReferenced
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Tag{}, id).Error; err != nil {
			return err
		}
		return s.logOperation(tx, &id, tag.Name, models.TagOpDelete, snapshotJSON(tag), "", operator, "")
	})
}

// ToggleTag flips the enabled flag
func (s *TagService) ToggleTag(id uint, operator string) (*models.Tag, error) {
	tag, err := s.GetTag(id)
	if err != nil {
		return nil, err
	}
	tag.IsEnabled = !tag.IsEnabled

	op := models.TagOpDisable
	if tag.IsEnabled {
		op = models.TagOpEnable
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(tag).Update("is_enabled", tag.IsEnabled).Error; err != nil {
			return err
		}
		return s.logOperation(tx, &tag.ID, tag.Name, op, "", fmt.Sprintf(`{"is_enabled":%t}`, tag.IsEnabled), operator, "")
	})
	if err != nil {
		return nil, err
	}
	return tag, nil
}

// ReorderTags assigns sort order following the given id sequence
func (s *TagService) ReorderTags(ids []uint, operator string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			res := tx.Model(&models.Tag{}).Where("id = ?", id).Update("sort_order", i)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: id=%d", ErrTagNotFound, id)
			}
		}
		newVal, _ := json.Marshal(ids)
		return s.logOperation(tx, nil, "", models.TagOpReorder, "", string(newVal), operator, "")
	})
}

// ListOperationLogs returns the most recent audit rows
func (s *TagService) ListOperationLogs(limit int) ([]models.TagOperationLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []models.TagOperationLog
	err := s.db.Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (s *TagService) logOperation(tx *gorm.DB, tagID *uint, tagName, op, oldVal, newVal, operator, remark string) error {
	entry := models.TagOperationLog{
		TagID:         tagID,
		TagName:       tagName,
		OperationType: op,
		OldValue:      oldVal,
		NewValue:      newVal,
		OperatedBy:    operator,
		Remark:        remark,
	}
	if err := tx.Create(&entry).Error; err != nil {
		log.Printf("Failed to write tag operation log: %v", err)
		return err
	}
	return nil
}

func snapshotJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
