package indicators

// Bar is the minimal OHLC input for indicator calculation.
// Slices passed to the calculators must be ordered oldest to newest.
type Bar struct {
	High  float64
	Low   float64
	Close float64
}

// KDJPoint holds one day of KDJ values
type KDJPoint struct {
	K float64
	D float64
	J float64
}

// MACDPoint holds one day of MACD values
type MACDPoint struct {
	DIF  float64
	DEA  float64
	MACD float64 // histogram, (DIF-DEA)*2
}

// KDJ computes the KDJ(period) oscillator over the bar series.
// RSV uses the rolling high/low window; when the window is flat
// (high == low) RSV falls back to 50. K and D are seeded at 50,
// J = 3K - 2D and is intentionally unbounded.
func KDJ(bars []Bar, period int) []KDJPoint {
	if period <= 0 {
		period = 9
	}
	points := make([]KDJPoint, len(bars))
	k, d := 50.0, 50.0

	for i := range bars {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		high := bars[start].High
		low := bars[start].Low
		for j := start + 1; j <= i; j++ {
			if bars[j].High > high {
				high = bars[j].High
			}
			if bars[j].Low < low {
				low = bars[j].Low
			}
		}

		rsv := 50.0
		if high != low {
			rsv = (bars[i].Close - low) / (high - low) * 100
		}

		k = (2*k + rsv) / 3
		d = (2*d + k) / 3
		points[i] = KDJPoint{K: k, D: d, J: 3*k - 2*d}
	}

	return points
}

// ema computes a recursive EMA over closes. The first value is seeded with
// the simple average of the first `period` closes, or of the whole series
// when it is shorter than the period.
func ema(closes []float64, period int) []float64 {
	if len(closes) == 0 {
		return nil
	}

	seedLen := period
	if seedLen > len(closes) {
		seedLen = len(closes)
	}
	sum := 0.0
	for i := 0; i < seedLen; i++ {
		sum += closes[i]
	}
	seed := sum / float64(seedLen)

	multiplier := 2.0 / float64(period+1)
	out := make([]float64, len(closes))
	out[0] = seed
	for i := 1; i < len(closes); i++ {
		out[i] = (closes[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}

// MACD computes MACD(fast, slow, signal) over the close series.
// DIF = EMA(fast) - EMA(slow), DEA = EMA(signal) of DIF, histogram
// is (DIF-DEA)*2 following the A-share charting convention.
func MACD(closes []float64, fast, slow, signal int) []MACDPoint {
	if len(closes) == 0 {
		return nil
	}
	if fast <= 0 {
		fast = 12
	}
	if slow <= 0 {
		slow = 26
	}
	if signal <= 0 {
		signal = 9
	}

	emaFast := ema(closes, fast)
	emaSlow := ema(closes, slow)

	dif := make([]float64, len(closes))
	for i := range closes {
		dif[i] = emaFast[i] - emaSlow[i]
	}

	dea := ema(dif, signal)

	points := make([]MACDPoint, len(closes))
	for i := range closes {
		points[i] = MACDPoint{
			DIF:  dif[i],
			DEA:  dea[i],
			MACD: (dif[i] - dea[i]) * 2,
		}
	}
	return points
}

// MAPoint is one moving-average value; Valid is false until the window
// is full.
type MAPoint struct {
	Value float64
	Valid bool
}

// MA computes the simple moving average of closes with the given window
func MA(closes []float64, window int) []MAPoint {
	points := make([]MAPoint, len(closes))
	if window <= 0 {
		return points
	}

	sum := 0.0
	for i := range closes {
		sum += closes[i]
		if i >= window {
			sum -= closes[i-window]
		}
		if i >= window-1 {
			points[i] = MAPoint{Value: sum / float64(window), Valid: true}
		}
	}
	return points
}

// LastMA returns the final simple moving average of the series, and false
// when the series is shorter than the window
func LastMA(closes []float64, window int) (float64, bool) {
	pts := MA(closes, window)
	if len(pts) == 0 {
		return 0, false
	}
	last := pts[len(pts)-1]
	return last.Value, last.Valid
}
