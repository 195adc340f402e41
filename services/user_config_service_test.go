package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ttss_backend/models"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateMarketModels(db))
	require.NoError(t, models.MigrateSignalModels(db))
	require.NoError(t, models.MigrateUserModels(db))
	return db
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestConfigDefaultInit(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := InitUserConfigService(db)

	cfg, err := svc.GetConfig(42)
	require.NoError(t, err)
	assert.True(t, cfg.B1JThreshold.Equal(decimal.NewFromInt(13)))
	assert.True(t, cfg.S1JHighThreshold.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, "[]", cfg.ExcludedIndustries)

	// second access returns the same row
	again, err := svc.GetConfig(42)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, again.ID)

	var count int64
	db.Model(&models.UserConfig{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestConfigUpdateAndReset(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := InitUserConfigService(db)

	cfg, err := svc.UpdateConfig(42, UpdateConfigInput{
		B1JThreshold:       decPtr(20),
		ExcludedIndustries: []string{"银行", "房地产"},
	})
	require.NoError(t, err)
	assert.True(t, cfg.B1JThreshold.Equal(decimal.NewFromInt(20)))
	assert.JSONEq(t, `["银行","房地产"]`, cfg.ExcludedIndustries)

	// out-of-range threshold rejected
	bad := decimal.NewFromInt(150)
	_, err = svc.UpdateConfig(42, UpdateConfigInput{B1JThreshold: &bad})
	assert.Error(t, err)

	reset, err := svc.ResetConfig(42)
	require.NoError(t, err)
	assert.True(t, reset.B1JThreshold.Equal(decimal.NewFromInt(13)))
	assert.Equal(t, "[]", reset.ExcludedIndustries)
	assert.Equal(t, cfg.ID, reset.ID) // row survives the reset
}

func TestBacktestPoolRoundTrip(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := InitUserConfigService(db)

	codes, err := svc.GetBacktestPool(42)
	require.NoError(t, err)
	assert.Empty(t, codes)

	require.NoError(t, svc.SetBacktestPool(42, []string{"600519.SH", "000001.SZ"}))
	codes, err = svc.GetBacktestPool(42)
	require.NoError(t, err)
	assert.Equal(t, []string{"600519.SH", "000001.SZ"}, codes)

	// oversized pool rejected
	big := make([]string, 101)
	assert.Error(t, svc.SetBacktestPool(42, big))
}

func TestThresholdOverridesMapping(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := InitUserConfigService(db)

	_, err := svc.UpdateConfig(42, UpdateConfigInput{B1JThreshold: decPtr(18)})
	require.NoError(t, err)

	overrides, err := svc.ThresholdOverrides(42)
	require.NoError(t, err)
	assert.Equal(t, 18.0, overrides["j_lt_13_qfq"])
	assert.Equal(t, 90.0, overrides["j_gt_90_qfq"])
}
