package indicator

import "math"

// CalculateADX computes Wilder's Average Directional Index over OHLC series.
// The returned slice is aligned with the input; entries before the first
// valid ADX value (index 2*period-1) are NaN. Inputs shorter than that, or a
// non-positive period, return nil.
func CalculateADX(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 || n != len(highs) || n != len(lows) || n < 2*period {
		return nil
	}
	adx := make([]float64, n)
	for i := range adx {
		adx[i] = math.NaN()
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		tr[i] = math.Max(highs[i]-lows[i], math.Max(
			math.Abs(highs[i]-closes[i-1]),
			math.Abs(lows[i]-closes[i-1]),
		))
	}

	// Wilder smoothing: seed with the sum of the first period, then
	// smoothed = prev - prev/period + current.
	var trSum, plusSum, minusSum float64
	for i := 1; i <= period; i++ {
		trSum += tr[i]
		plusSum += plusDM[i]
		minusSum += minusDM[i]
	}
	dx := make([]float64, n)
	dx[period] = directionalIndex(plusSum, minusSum, trSum)
	for i := period + 1; i < n; i++ {
		trSum = trSum - trSum/float64(period) + tr[i]
		plusSum = plusSum - plusSum/float64(period) + plusDM[i]
		minusSum = minusSum - minusSum/float64(period) + minusDM[i]
		dx[i] = directionalIndex(plusSum, minusSum, trSum)
	}

	var dxSum float64
	for i := period; i < 2*period; i++ {
		dxSum += dx[i]
	}
	adx[2*period-1] = dxSum / float64(period)
	for i := 2 * period; i < n; i++ {
		adx[i] = (adx[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return adx
}

func directionalIndex(plusSum, minusSum, trSum float64) float64 {
	if trSum == 0 {
		return 0
	}
	plusDI := 100 * plusSum / trSum
	minusDI := 100 * minusSum / trSum
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}

// LatestADX returns the most recent ADX value of the series, if any.
func LatestADX(highs, lows, closes []float64, period int) (float64, bool) {
	adx := CalculateADX(highs, lows, closes, period)
	if adx == nil {
		return 0, false
	}
	last := adx[len(adx)-1]
	if math.IsNaN(last) {
		return 0, false
	}
	return last, true
}
