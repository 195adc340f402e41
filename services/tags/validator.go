package tags

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// knownFields are the identifiers allowed in calculation logic text.
// Custom tag logic is descriptive only, it is validated for plausibility
// but never executed.
var knownFields = map[string]bool{
	"OPEN": true, "HIGH": true, "LOW": true, "CLOSE": true, "PRE_CLOSE": true,
	"PCT_CHG": true, "VOL": true, "AMOUNT": true, "SWING": true,
	"TOTAL_MV": true, "CIRC_MV": true, "TURNOVER": true, "VOL_RATIO": true,
	"KDJ": true, "KDJ_K": true, "KDJ_D": true, "KDJ_J": true,
	"MACD": true, "MACD_DIF": true, "MACD_DEA": true,
	"MA_5": true, "MA_10": true, "MA_20": true, "MA_60": true,
	"REF": true, "MA": true, "MAX": true, "MIN": true, "SUM": true,
	"ABS": true, "CROSS": true, "EVERY": true, "EXIST": true, "COUNT": true,
	"AND": true, "OR": true, "NOT": true,
}

var identifierPattern = regexp.MustCompile(`[A-Z][A-Z0-9_]*`)

var doubledOperatorPattern = regexp.MustCompile(`[+\-*/][+*/]|[<>=!]{3,}|&{3,}|\|{3,}`)

// ValidateLogic checks calculation logic text heuristically and returns
// the list of problems found. An empty list means the text looks sane.
func ValidateLogic(logic string) []string {
	var issues []string

	trimmed := strings.TrimSpace(logic)
	if trimmed == "" {
		issues = append(issues, "计算逻辑不能为空")
		return issues
	}
	if len(trimmed) > 500 {
		issues = append(issues, "计算逻辑过长，最多500个字符")
	}

	// parenthesis balance
	depth := 0
	for _, r := range trimmed {
		switch r {
		case '(', '（':
			depth++
		case ')', '）':
			depth--
			if depth < 0 {
				issues = append(issues, "括号不匹配：多余的右括号")
				depth = 0
			}
		}
	}
	if depth > 0 {
		issues = append(issues, "括号不匹配：缺少右括号")
	}

	// character whitelist: identifiers, digits, operators, CJK for comments
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
			unicode.Is(unicode.Han, r) ||
			strings.ContainsRune(`+-*/%()（）<>=!&|.,_[]，。：:`, r) {
			continue
		}
		issues = append(issues, fmt.Sprintf("包含非法字符: %q", r))
		break
	}

	if doubledOperatorPattern.MatchString(trimmed) {
		issues = append(issues, "存在重复的运算符")
	}

	// uppercase identifiers must be known fields or functions
	for _, ident := range identifierPattern.FindAllString(trimmed, -1) {
		if !knownFields[ident] {
			issues = append(issues, fmt.Sprintf("未知字段或函数: %s", ident))
		}
	}

	return issues
}
