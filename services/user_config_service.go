package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ttss_backend/models"
)

// UserConfigService manages per-user strategy configuration
type UserConfigService struct {
	db *gorm.DB
}

var userConfigService *UserConfigService

// InitUserConfigService creates the global user config service
func InitUserConfigService(db *gorm.DB) *UserConfigService {
	userConfigService = &UserConfigService{db: db}
	return userConfigService
}

// GetUserConfigService returns the global user config service
func GetUserConfigService() *UserConfigService {
	return userConfigService
}

// GetConfig returns the user's config, creating the default row on first
// access so the dashboard always has something to render.
func (s *UserConfigService) GetConfig(userID uint) (*models.UserConfig, error) {
	var cfg models.UserConfig
	err := s.db.Where("user_id = ?", userID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.DefaultUserConfig(userID)
		if err := s.db.Create(&cfg).Error; err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateConfigInput carries the updatable threshold fields
type UpdateConfigInput struct {
	B1JThreshold       *decimal.Decimal `json:"b1_j_threshold"`
	B1MacdDifThreshold *decimal.Decimal `json:"b1_macd_dif_threshold"`
	S1JHighThreshold   *decimal.Decimal `json:"s1_j_high_threshold"`
	ExcludedIndustries []string         `json:"excluded_industries"`
}

// UpdateConfig applies a partial update to the user's config
func (s *UserConfigService) UpdateConfig(userID uint, input UpdateConfigInput) (*models.UserConfig, error) {
	cfg, err := s.GetConfig(userID)
	if err != nil {
		return nil, err
	}

	if input.B1JThreshold != nil {
		if input.B1JThreshold.LessThan(decimal.Zero) || input.B1JThreshold.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("b1_j_threshold out of range: %s", input.B1JThreshold)
		}
		cfg.B1JThreshold = *input.B1JThreshold
	}
	if input.B1MacdDifThreshold != nil {
		cfg.B1MacdDifThreshold = *input.B1MacdDifThreshold
	}
	if input.S1JHighThreshold != nil {
		if input.S1JHighThreshold.LessThan(decimal.Zero) {
			return nil, fmt.Errorf("s1_j_high_threshold out of range: %s", input.S1JHighThreshold)
		}
		cfg.S1JHighThreshold = *input.S1JHighThreshold
	}
	if input.ExcludedIndustries != nil {
		b, err := json.Marshal(input.ExcludedIndustries)
		if err != nil {
			return nil, err
		}
		cfg.ExcludedIndustries = string(b)
	}

	if err := s.db.Save(cfg).Error; err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResetConfig restores the user's config to defaults, keeping the row
func (s *UserConfigService) ResetConfig(userID uint) (*models.UserConfig, error) {
	cfg, err := s.GetConfig(userID)
	if err != nil {
		return nil, err
	}
	defaults := models.DefaultUserConfig(userID)
	cfg.B1JThreshold = defaults.B1JThreshold
	cfg.B1MacdDifThreshold = defaults.B1MacdDifThreshold
	cfg.S1JHighThreshold = defaults.S1JHighThreshold
	cfg.ExcludedIndustries = defaults.ExcludedIndustries
	cfg.BacktestPoolCodes = defaults.BacktestPoolCodes

	if err := s.db.Save(cfg).Error; err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetBacktestPool returns the user's backtest pool codes
func (s *UserConfigService) GetBacktestPool(userID uint) ([]string, error) {
	cfg, err := s.GetConfig(userID)
	if err != nil {
		return nil, err
	}
	var codes []string
	if cfg.BacktestPoolCodes != "" {
		if err := json.Unmarshal([]byte(cfg.BacktestPoolCodes), &codes); err != nil {
			return nil, err
		}
	}
	if codes == nil {
		codes = []string{}
	}
	return codes, nil
}

// SetBacktestPool replaces the user's backtest pool codes
func (s *UserConfigService) SetBacktestPool(userID uint, codes []string) error {
	if len(codes) > 100 {
		return fmt.Errorf("backtest pool too large: %d codes, max 100", len(codes))
	}
	cfg, err := s.GetConfig(userID)
	if err != nil {
		return err
	}
	if codes == nil {
		codes = []string{}
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return err
	}
	cfg.BacktestPoolCodes = string(b)
	return s.db.Save(cfg).Error
}

// ThresholdOverrides maps the user's config onto tag codes for evaluation
func (s *UserConfigService) ThresholdOverrides(userID uint) (map[string]float64, error) {
	cfg, err := s.GetConfig(userID)
	if err != nil {
		return nil, err
	}
	b1j, _ := cfg.B1JThreshold.Float64()
	b1dif, _ := cfg.B1MacdDifThreshold.Float64()
	s1j, _ := cfg.S1JHighThreshold.Float64()
	return map[string]float64{
		"j_lt_13_qfq":       b1j,
		"macd_dif_gt_0_qfq": b1dif,
		"j_gt_90_qfq":       s1j,
	}, nil
}
