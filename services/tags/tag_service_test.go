package tags

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

func setupTagTestDB(t *testing.T) *TagService {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateTagModels(db))
	require.NoError(t, models.MigrateSignalModels(db))
	return InitTagService(db)
}

func strPtr(s string) *string { return &s }

func TestSystemTagsSeeded(t *testing.T) {
	svc := setupTagTestDB(t)

	tagList, err := svc.ListTags(ListQuery{StrategyType: "B1"})
	require.NoError(t, err)
	assert.NotEmpty(t, tagList)

	// seeding twice does not duplicate
	require.NoError(t, models.MigrateTagModels(svc.db))
	again, err := svc.ListTags(ListQuery{StrategyType: "B1"})
	require.NoError(t, err)
	assert.Len(t, again, len(tagList))
}

func TestSystemTagImmutableFields(t *testing.T) {
	svc := setupTagTestDB(t)

	tagList, err := svc.ListTags(ListQuery{StrategyType: "B1", TagType: string(models.TagTypeSystem)})
	require.NoError(t, err)
	require.NotEmpty(t, tagList)
	target := tagList[0]

	// category change rejected
	_, err = svc.UpdateTag(target.ID, UpdateTagInput{Category: strPtr("minus")}, "tester")
	assert.ErrorIs(t, err, ErrSystemTagReadOnly)

	// name change rejected
	_, err = svc.UpdateTag(target.ID, UpdateTagInput{Name: strPtr("renamed")}, "tester")
	assert.ErrorIs(t, err, ErrSystemTagReadOnly)

	// meaning change allowed
	updated, err := svc.UpdateTag(target.ID, UpdateTagInput{Meaning: strPtr("updated meaning")}, "tester")
	require.NoError(t, err)
	assert.Equal(t, "updated meaning", updated.Meaning)

	// calculation logic stays editable as long as it validates
	updated, err = svc.UpdateTag(target.ID, UpdateTagInput{CalculationLogic: strPtr("KDJ <= 15")}, "tester")
	require.NoError(t, err)
	assert.Equal(t, "KDJ <= 15", updated.CalculationLogic)

	_, err = svc.UpdateTag(target.ID, UpdateTagInput{CalculationLogic: strPtr("FOO > (1")}, "tester")
	assert.ErrorIs(t, err, ErrInvalidLogic)
}

func TestSystemTagDeleteForbidden(t *testing.T) {
	svc := setupTagTestDB(t)

	tagList, err := svc.ListTags(ListQuery{TagType: string(models.TagTypeSystem)})
	require.NoError(t, err)
	require.NotEmpty(t, tagList)

	err = svc.DeleteTag(tagList[0].ID, "tester")
	assert.ErrorIs(t, err, ErrSystemTagDelete)
}

func TestCustomTagLifecycle(t *testing.T) {
	svc := setupTagTestDB(t)

	tag := models.Tag{
		Name:             "自定义缩量",
		Code:             "custom_shrink",
		StrategyType:     models.StrategyB1,
		Category:         models.CategoryPlus,
		CalculationLogic: "AMOUNT <= REF(AMOUNT, 1) * 0.6",
	}
	require.NoError(t, svc.CreateTag(&tag, "tester"))
	assert.Equal(t, models.TagTypeCustom, tag.TagType)

	// referenced tags cannot be deleted
	require.NoError(t, svc.db.Create(&models.TagMatchResult{
		TsCode: "600519.SH", TradeDate: "20260828", TagID: tag.ID,
		TagName: tag.Name, Matched: true, StrategyType: models.StrategyB1,
	}).Error)
	assert.ErrorIs(t, svc.DeleteTag(tag.ID, "tester"), ErrTagReferenced)

	// unreferenced custom tags delete cleanly
	require.NoError(t, svc.db.Where("tag_id = ?", tag.ID).Delete(&models.TagMatchResult{}).Error)
	require.NoError(t, svc.DeleteTag(tag.ID, "tester"))

	_, err := svc.GetTag(tag.ID)
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestCreateTagRejectsBadLogic(t *testing.T) {
	svc := setupTagTestDB(t)

	tag := models.Tag{
		Name:             "坏标签",
		Code:             "bad_tag",
		StrategyType:     models.StrategyB1,
		Category:         models.CategoryPlus,
		CalculationLogic: "UNKNOWN_FIELD > (10",
	}
	err := svc.CreateTag(&tag, "tester")
	assert.ErrorIs(t, err, ErrInvalidLogic)
}

func TestToggleAndAuditLog(t *testing.T) {
	svc := setupTagTestDB(t)

	tagList, err := svc.ListTags(ListQuery{})
	require.NoError(t, err)
	target := tagList[0]
	require.True(t, target.IsEnabled)

	toggled, err := svc.ToggleTag(target.ID, "tester")
	require.NoError(t, err)
	assert.False(t, toggled.IsEnabled)

	logs, err := svc.ListOperationLogs(10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, models.TagOpDisable, logs[0].OperationType)
	assert.Equal(t, "tester", logs[0].OperatedBy)
}

func TestReorderTags(t *testing.T) {
	svc := setupTagTestDB(t)

	tagList, err := svc.ListTags(ListQuery{StrategyType: "B1"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(tagList), 3)

	ids := []uint{tagList[2].ID, tagList[0].ID, tagList[1].ID}
	require.NoError(t, svc.ReorderTags(ids, "tester"))

	reordered, err := svc.ListTags(ListQuery{StrategyType: "B1"})
	require.NoError(t, err)
	assert.Equal(t, tagList[2].ID, reordered[0].ID)

	// unknown id fails the whole reorder
	assert.Error(t, svc.ReorderTags([]uint{99999}, "tester"))
}

func TestEvaluateSkipsCustomTags(t *testing.T) {
	ctx := ctxWith(BarData{PctChange: 1.0}, IndicatorSnapshot{J: 10, DIF: 0.5}, nil, 0)
	tagList := []models.Tag{
		{Code: "j_lt_13_qfq", TagType: models.TagTypeSystem},
		{Code: "my_custom", TagType: models.TagTypeCustom},
	}
	outcomes := Evaluate(ctx, tagList, nil)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Evaluated)
	assert.True(t, outcomes[0].Matched)
	assert.False(t, outcomes[1].Evaluated)
	assert.False(t, outcomes[1].Matched)
}

func TestThresholdOverridePrecedence(t *testing.T) {
	rule, _ := LookupRule("j_lt_13_qfq")

	tag := models.Tag{Code: "j_lt_13_qfq"}
	assert.Equal(t, 13.0, ResolveThreshold(tag, rule, nil))

	d := decimal.NewFromInt(20)
	tag.ThresholdValue = &d
	assert.Equal(t, 20.0, ResolveThreshold(tag, rule, nil))

	// user override wins over the tag value
	assert.Equal(t, 25.0, ResolveThreshold(tag, rule, ThresholdOverrides{"j_lt_13_qfq": 25}))
}

func TestPassesFilters(t *testing.T) {
	tagList := []models.Tag{
		{Code: "j_lt_13_qfq", TagType: models.TagTypeSystem, IsFilter: true},
		{Code: "macd_dif_gt_0_qfq", TagType: models.TagTypeSystem, IsFilter: true},
		{Code: "up3", TagType: models.TagTypeSystem}, // not a filter, ignored here
	}

	pass := ctxWith(BarData{PctChange: 5}, IndicatorSnapshot{J: 10, DIF: 0.2}, nil, 0)
	assert.True(t, PassesFilters(pass, tagList, nil))

	fail := ctxWith(BarData{PctChange: 5}, IndicatorSnapshot{J: 50, DIF: 0.2}, nil, 0)
	assert.False(t, PassesFilters(fail, tagList, nil))
}
