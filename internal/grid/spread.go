package grid

// maxSpreadRatio caps the dynamic spread at 1% of the reference price, the
// same band the ladders are bounded to.
const maxSpreadRatio = 0.01

// DynamicSpread widens the quoted spread as the trend signal strengthens.
// With no signal available, or a signal at or below the activation threshold,
// the default spread is returned unchanged. Above the threshold the spread is
// interpolated linearly from the default toward 1% of the reference price as
// the signal moves from threshold to cap, and is always clamped to that band
// edge. A default spread already wider than the band is therefore pulled
// back to the edge once the signal activates.
func DynamicSpread(signal float64, haveSignal bool, refPrice, defaultSpread, threshold, cap float64) float64 {
	if !haveSignal || signal <= threshold {
		return defaultSpread
	}
	maxSpread := refPrice * maxSpreadRatio
	if cap <= threshold {
		return maxSpread
	}
	effective := signal
	if effective > cap {
		effective = cap
	}
	ratio := (effective - threshold) / (cap - threshold)
	spread := defaultSpread + ratio*(maxSpread-defaultSpread)
	if spread > maxSpread {
		spread = maxSpread
	}
	return spread
}
