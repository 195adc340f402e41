package tags

import "strings"

// BarData is one trading day flattened to float64 for rule evaluation
type BarData struct {
	TsCode      string
	StockName   string
	Industry    string
	TradeDate   string
	Open        float64
	High        float64
	Low         float64
	Close       float64
	PreClose    float64
	PctChange   float64
	Volume      float64
	Amount      float64
	VolumeRatio float64
	Swing       float64
	TotalMv     float64
}

// IndicatorSnapshot carries the indicator values for the evaluation date
type IndicatorSnapshot struct {
	K, D, J          float64
	DIF, DEA, MACD   float64
	PrevDIF, PrevDEA float64
	MA5, MA10, MA20  float64
	MA5Valid         bool
	MA10Valid        bool
	MA20Valid        bool
}

// EvalContext is everything a rule may look at: the current bar, the
// indicator snapshot, the trailing history (oldest to newest, current bar
// last) and the resolved threshold for the tag being evaluated.
type EvalContext struct {
	Bar        BarData
	Indicators IndicatorSnapshot
	History    []BarData
	Threshold  float64
}

// RuleFunc evaluates one tag against one stock's context
type RuleFunc func(ctx *EvalContext) bool

// Rule binds a tag code to its evaluation function and default threshold
type Rule struct {
	Code             string
	DefaultThreshold float64
	Fn               RuleFunc
}

// trailing returns the last n bars of history (fewer when short)
func trailing(ctx *EvalContext, n int) []BarData {
	h := ctx.History
	if len(h) > n {
		return h[len(h)-n:]
	}
	return h
}

// jLow: J at or below threshold, the B1 oversold precondition
func jLow(ctx *EvalContext) bool {
	return ctx.Indicators.J <= ctx.Threshold
}

// difAbove: MACD DIF strictly above threshold
func difAbove(ctx *EvalContext) bool {
	return ctx.Indicators.DIF > ctx.Threshold
}

// redFatGreenThin: over the last 10 bars, every up day must carry more
// volume than its nearest down day on each side. One violation fails the
// whole window.
func redFatGreenThin(ctx *EvalContext) bool {
	if len(ctx.History) < 2 {
		return false
	}
	window := trailing(ctx, 10)
	up := make([]bool, len(window))
	for i, b := range window {
		up[i] = b.PctChange > 0
	}

	for i := range window {
		if !up[i] {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if !up[j] {
				if window[i].Volume <= window[j].Volume {
					return false
				}
				break
			}
		}
		for j := i + 1; j < len(window); j++ {
			if !up[j] {
				if window[i].Volume <= window[j].Volume {
					return false
				}
				break
			}
		}
	}
	return true
}

// shrinkAfterDivergence: amount at or below threshold share of the
// previous day's amount
func shrinkAfterDivergence(ctx *EvalContext) bool {
	h := ctx.History
	if len(h) < 2 {
		return false
	}
	prev := h[len(h)-2]
	if prev.Amount <= 0 {
		return false
	}
	return ctx.Bar.Amount <= prev.Amount*ctx.Threshold
}

// smallCandle: modest daily move, -2% to +1.8%
func smallCandle(ctx *EvalContext) bool {
	return ctx.Bar.PctChange >= -2.0 && ctx.Bar.PctChange <= 1.8
}

// recentAbnormalMove: within 10 bars, a day with pct >= 6% on at least
// 1.5x the prior day's volume
func recentAbnormalMove(ctx *EvalContext) bool {
	window := trailing(ctx, 11)
	for i := 1; i < len(window); i++ {
		if window[i].PctChange >= 6.0 && window[i-1].Volume > 0 &&
			window[i].Volume >= window[i-1].Volume*1.5 {
			return true
		}
	}
	return false
}

// doubleVolumeRed: within 10 bars, an up day on at least threshold times
// the prior day's volume
func doubleVolumeRed(ctx *EvalContext) bool {
	window := trailing(ctx, 11)
	for i := 1; i < len(window); i++ {
		if window[i].PctChange > 0 && window[i-1].Volume > 0 &&
			window[i].Volume >= window[i-1].Volume*ctx.Threshold {
			return true
		}
	}
	return false
}

// swingAppropriate: amplitude cap depends on the board, 4% for Shanghai
// main board (600 prefix), 7% for 000/300/688. Other boards never match.
func swingAppropriate(ctx *EvalContext) bool {
	code := ctx.Bar.TsCode
	if strings.HasPrefix(code, "600") {
		return ctx.Bar.Swing <= 4.0
	}
	if strings.HasPrefix(code, "000") || strings.HasPrefix(code, "300") || strings.HasPrefix(code, "688") {
		return ctx.Bar.Swing <= 7.0
	}
	return false
}

// marketCapFloor: total market value at or above threshold (万元)
func marketCapFloor(ctx *EvalContext) bool {
	return ctx.Bar.TotalMv >= ctx.Threshold
}

// volumeStable: the 2-day average amount shrank to 80% or less of the
// preceding 3-day average
func volumeStable(ctx *EvalContext) bool {
	h := ctx.History
	if len(h) < 5 {
		return false
	}
	recent := (h[len(h)-1].Amount + h[len(h)-2].Amount) / 2
	prior := (h[len(h)-3].Amount + h[len(h)-4].Amount + h[len(h)-5].Amount) / 3
	if prior <= 0 {
		return false
	}
	return recent <= prior*0.8
}

func avgAmount(window []BarData) float64 {
	if len(window) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range window {
		sum += b.Amount
	}
	return sum / float64(len(window))
}

// volumeBottom: today's amount at least threshold times the 5-day average
func volumeBottom(ctx *EvalContext) bool {
	avg := avgAmount(trailing(ctx, 5))
	if avg <= 0 {
		return false
	}
	return ctx.Bar.Amount >= avg*ctx.Threshold
}

// volumeBreakout: up day with amount at least threshold times the 5-day average
func volumeBreakout(ctx *EvalContext) bool {
	if ctx.Bar.PctChange <= 0 {
		return false
	}
	avg := avgAmount(trailing(ctx, 5))
	if avg <= 0 {
		return false
	}
	return ctx.Bar.Amount >= avg*ctx.Threshold
}

// highVolume: today's amount reaches threshold share of the 10-day
// maximum. Needs the full 10 bars, a short history would let the current
// bar compare against itself.
func highVolume(ctx *EvalContext) bool {
	if len(ctx.History) < 10 {
		return false
	}
	window := trailing(ctx, 10)
	max := 0.0
	for _, b := range window {
		if b.Amount > max {
			max = b.Amount
		}
	}
	if max <= 0 {
		return false
	}
	return ctx.Bar.Amount >= max*ctx.Threshold
}

// belowMA20: close under the 20-day moving average
func belowMA20(ctx *EvalContext) bool {
	return ctx.Indicators.MA20Valid && ctx.Bar.Close < ctx.Indicators.MA20
}

// heavyVolumeDecline: within 10 bars, a down day whose volume reaches the
// maximum of the 5 bars before it
func heavyVolumeDecline(ctx *EvalContext) bool {
	h := ctx.History
	start := len(h) - 10
	if start < 5 {
		start = 5
	}
	for i := start; i < len(h); i++ {
		if h[i].PctChange >= 0 {
			continue
		}
		max := 0.0
		for j := i - 5; j < i; j++ {
			if h[j].Volume > max {
				max = h[j].Volume
			}
		}
		if max > 0 && h[i].Volume >= max {
			return true
		}
	}
	return false
}

// shrinkLimitUp: within 20 bars, a limit-up day (pct >= 9.8%) on no more
// than threshold share of the prior day's volume
func shrinkLimitUp(ctx *EvalContext) bool {
	window := trailing(ctx, 21)
	for i := 1; i < len(window); i++ {
		if window[i].PctChange >= 9.8 && window[i-1].Volume > 0 &&
			window[i].Volume <= window[i-1].Volume*ctx.Threshold {
			return true
		}
	}
	return false
}

// jHigh: J at or above threshold, the S1 overbought trigger
func jHigh(ctx *EvalContext) bool {
	return ctx.Indicators.J >= ctx.Threshold
}

// macdDeadCross: DIF crossed below DEA today
func macdDeadCross(ctx *EvalContext) bool {
	i := ctx.Indicators
	return i.PrevDIF >= i.PrevDEA && i.DIF < i.DEA
}

// maBullAligned: MA5 > MA10 > MA20
func maBullAligned(ctx *EvalContext) bool {
	i := ctx.Indicators
	return i.MA5Valid && i.MA10Valid && i.MA20Valid &&
		i.MA5 > i.MA10 && i.MA10 > i.MA20
}

// builtinRules lists every system rule keyed by tag code
var builtinRules = []Rule{
	{Code: "j_lt_13_qfq", DefaultThreshold: 13, Fn: jLow},
	{Code: "macd_dif_gt_0_qfq", DefaultThreshold: 0, Fn: difAbove},
	{Code: "up1", Fn: redFatGreenThin},
	{Code: "up2", DefaultThreshold: 0.5, Fn: shrinkAfterDivergence},
	{Code: "up3", Fn: smallCandle},
	{Code: "up4", Fn: recentAbnormalMove},
	{Code: "up5", DefaultThreshold: 1.8, Fn: doubleVolumeRed},
	{Code: "up6", Fn: swingAppropriate},
	{Code: "up7", DefaultThreshold: 800000, Fn: marketCapFloor},
	{Code: "vol_stable", Fn: volumeStable},
	{Code: "vol_bottom", DefaultThreshold: 1.5, Fn: volumeBottom},
	{Code: "vol_breakout", DefaultThreshold: 2.0, Fn: volumeBreakout},
	{Code: "high_vol", DefaultThreshold: 0.8, Fn: highVolume},
	{Code: "break_ma", Fn: belowMA20},
	{Code: "down1", Fn: heavyVolumeDecline},
	{Code: "down2", DefaultThreshold: 0.5, Fn: shrinkLimitUp},
	{Code: "j_gt_90_qfq", DefaultThreshold: 90, Fn: jHigh},
	{Code: "macd_dead_cross", Fn: macdDeadCross},
	{Code: "ma_bull", Fn: maBullAligned},
}

var ruleRegistry = func() map[string]Rule {
	m := make(map[string]Rule, len(builtinRules))
	for _, r := range builtinRules {
		m[r.Code] = r
	}
	return m
}()

// LookupRule returns the system rule for a tag code
func LookupRule(code string) (Rule, bool) {
	r, ok := ruleRegistry[code]
	return r, ok
}
