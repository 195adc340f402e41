package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatBars(n int, price float64) []Bar {
	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{High: price, Low: price, Close: price}
	}
	return bars
}

func TestKDJFlatSeries(t *testing.T) {
	// flat window: RSV falls back to 50, so K and D stay at their seed
	points := KDJ(flatBars(30, 10.0), 9)
	require.Len(t, points, 30)

	for _, p := range points {
		assert.InDelta(t, 50.0, p.K, 1e-9)
		assert.InDelta(t, 50.0, p.D, 1e-9)
		assert.InDelta(t, 50.0, p.J, 1e-9)
	}
}

func TestKDJKnownValues(t *testing.T) {
	bars := []Bar{
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 13, Low: 11, Close: 12},
	}
	points := KDJ(bars, 9)
	require.Len(t, points, 3)

	// day 0: RSV = (10-9)/(11-9)*100 = 50; K = (2*50+50)/3 = 50
	assert.InDelta(t, 50.0, points[0].K, 1e-9)

	// day 1: window high=12 low=9, RSV = (11-9)/3*100 = 66.666...
	// K = (2*50 + 66.666)/3 = 55.555...
	assert.InDelta(t, 55.5555555556, points[1].K, 1e-6)
	// D = (2*50 + 55.555)/3 = 51.851...
	assert.InDelta(t, 51.8518518519, points[1].D, 1e-6)
	// J = 3K - 2D
	assert.InDelta(t, 3*points[1].K-2*points[1].D, points[1].J, 1e-9)
}

func TestKDJJUnbounded(t *testing.T) {
	// strong run-up pushes J above 100
	bars := make([]Bar, 20)
	price := 10.0
	for i := range bars {
		bars[i] = Bar{High: price + 0.5, Low: price - 0.5, Close: price + 0.4}
		price *= 1.05
	}
	points := KDJ(bars, 9)
	assert.Greater(t, points[len(points)-1].J, 100.0)
}

func TestEMAShortSeriesSeed(t *testing.T) {
	// series shorter than the period seeds with the average of all closes
	closes := []float64{10, 12, 14}
	out := ema(closes, 12)
	require.Len(t, out, 3)
	assert.InDelta(t, 12.0, out[0], 1e-9)

	m := 2.0 / 13.0
	expected1 := (closes[1]-out[0])*m + out[0]
	assert.InDelta(t, expected1, out[1], 1e-9)
}

func TestMACDFlatSeries(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 25.0
	}
	points := MACD(closes, 12, 26, 9)
	require.Len(t, points, 40)
	for _, p := range points {
		assert.InDelta(t, 0.0, p.DIF, 1e-9)
		assert.InDelta(t, 0.0, p.DEA, 1e-9)
		assert.InDelta(t, 0.0, p.MACD, 1e-9)
	}
}

func TestMACDHistogramDoubled(t *testing.T) {
	closes := []float64{10, 10.5, 11, 10.8, 11.2, 11.5, 11.3, 11.8, 12, 12.4}
	points := MACD(closes, 12, 26, 9)
	for _, p := range points {
		assert.InDelta(t, (p.DIF-p.DEA)*2, p.MACD, 1e-9)
	}
}

func TestMACDEmpty(t *testing.T) {
	assert.Nil(t, MACD(nil, 12, 26, 9))
}

func TestMAWindow(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	points := MA(closes, 3)
	require.Len(t, points, 5)

	assert.False(t, points[0].Valid)
	assert.False(t, points[1].Valid)
	assert.True(t, points[2].Valid)
	assert.InDelta(t, 2.0, points[2].Value, 1e-9)
	assert.InDelta(t, 3.0, points[3].Value, 1e-9)
	assert.InDelta(t, 4.0, points[4].Value, 1e-9)
}

func TestLastMATooShort(t *testing.T) {
	_, ok := LastMA([]float64{1, 2}, 20)
	assert.False(t, ok)
}

func TestDeterminism(t *testing.T) {
	bars := make([]Bar, 60)
	price := 20.0
	for i := range bars {
		delta := float64(i%7) * 0.3
		bars[i] = Bar{High: price + delta + 0.2, Low: price - 0.3, Close: price + delta*0.5}
		price += delta*0.1 - 0.05
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	kdj1 := KDJ(bars, 9)
	kdj2 := KDJ(bars, 9)
	assert.Equal(t, kdj1, kdj2)

	macd1 := MACD(closes, 12, 26, 9)
	macd2 := MACD(closes, 12, 26, 9)
	assert.Equal(t, macd1, macd2)
}
