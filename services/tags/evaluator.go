package tags

import (
	"ttss_backend/models"
)

// TagOutcome is the result of evaluating one tag for one stock.
// Evaluated is false for custom tags (no executable rule) and for system
// tags whose code has no registered rule.
type TagOutcome struct {
	Tag       models.Tag
	Matched   bool
	Evaluated bool
}

// ThresholdOverrides lets per-user config replace specific tag thresholds
// at evaluation time, keyed by tag code.
type ThresholdOverrides map[string]float64

// ResolveThreshold picks the effective threshold for a tag: user override,
// then the tag's configured value, then the rule default.
func ResolveThreshold(tag models.Tag, rule Rule, overrides ThresholdOverrides) float64 {
	if overrides != nil {
		if v, ok := overrides[tag.Code]; ok {
			return v
		}
	}
	if tag.ThresholdValue != nil {
		f, _ := tag.ThresholdValue.Float64()
		return f
	}
	return rule.DefaultThreshold
}

// Evaluate runs every tag against the context. Tags are independent: one
// tag's outcome never feeds another. Custom tags are skipped.
func Evaluate(ctx *EvalContext, tagList []models.Tag, overrides ThresholdOverrides) []TagOutcome {
	outcomes := make([]TagOutcome, 0, len(tagList))
	for _, tag := range tagList {
		outcome := TagOutcome{Tag: tag}
		if tag.TagType == models.TagTypeSystem {
			if rule, ok := LookupRule(tag.Code); ok {
				ctx.Threshold = ResolveThreshold(tag, rule, overrides)
				outcome.Matched = rule.Fn(ctx)
				outcome.Evaluated = true
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// PassesFilters reports whether every enabled filter tag matched. Filter
// tags are hard preconditions: a stock failing any of them is excluded
// before scoring.
func PassesFilters(ctx *EvalContext, tagList []models.Tag, overrides ThresholdOverrides) bool {
	for _, tag := range tagList {
		if !tag.IsFilter || tag.TagType != models.TagTypeSystem {
			continue
		}
		rule, ok := LookupRule(tag.Code)
		if !ok {
			continue
		}
		ctx.Threshold = ResolveThreshold(tag, rule, overrides)
		if !rule.Fn(ctx) {
			return false
		}
	}
	return true
}
