package tags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLogicAccepts(t *testing.T) {
	cases := []string{
		"KDJ <= 13",
		"MACD_DIF > 0",
		"CLOSE < MA_20",
		"AMOUNT >= MAX(AMOUNT, 10) * 0.8",
		"PCT_CHG >= 6 AND VOL >= REF(VOL, 1) * 1.5",
		"CROSS(MACD_DEA, MACD_DIF)",
	}
	for _, c := range cases {
		assert.Empty(t, ValidateLogic(c), "expected valid: %s", c)
	}
}

func TestValidateLogicEmpty(t *testing.T) {
	issues := ValidateLogic("   ")
	assert.NotEmpty(t, issues)
}

func TestValidateLogicUnbalancedParens(t *testing.T) {
	assert.NotEmpty(t, ValidateLogic("MAX(AMOUNT, 10"))
	assert.NotEmpty(t, ValidateLogic("CLOSE > MA_20)"))
}

func TestValidateLogicUnknownField(t *testing.T) {
	issues := ValidateLogic("FOO_BAR > 10")
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "FOO_BAR")
}

func TestValidateLogicDoubledOperators(t *testing.T) {
	assert.NotEmpty(t, ValidateLogic("CLOSE ** 2"))
	assert.NotEmpty(t, ValidateLogic("CLOSE +/ 2"))
}

func TestValidateLogicIllegalCharacter(t *testing.T) {
	assert.NotEmpty(t, ValidateLogic("CLOSE > 10; DROP TABLE"))
}

func TestValidateLogicTooLong(t *testing.T) {
	assert.NotEmpty(t, ValidateLogic("CLOSE > 10 "+strings.Repeat("AND CLOSE > 10 ", 40)))
}

func TestValidateLogicAllowsCJK(t *testing.T) {
	assert.Empty(t, ValidateLogic("KDJ <= 13 （超卖区间）"))
}
