package grid

import (
	"errors"
	"math"
)

// Ladders stay inside a band of +/-1% around the reference price. Levels the
// step walk would put outside the band are dropped, not clamped.
const bandRatio = 0.01

var (
	ErrPriceStep = errors.New("price_step must be > 0")
	ErrGridCount = errors.New("grid_count must be >= 0")
	ErrSpread    = errors.New("price_spread must be >= 0")
	ErrRefPrice  = errors.New("reference price must be > 0")
)

// Generate maps a reference price to the target bid and ask ladders, in
// integer tick units. The long ladder walks down from the floored bid base,
// the short ladder walks up from the ceiled ask base; both are returned
// ascending with no duplicates. Pure function of its inputs.
func Generate(refPrice float64, priceStep int64, gridCount int, spread float64) (long, short []int64, err error) {
	if priceStep <= 0 {
		return nil, nil, ErrPriceStep
	}
	if gridCount < 0 {
		return nil, nil, ErrGridCount
	}
	if spread < 0 {
		return nil, nil, ErrSpread
	}
	if refPrice <= 0 {
		return nil, nil, ErrRefPrice
	}

	lowerLimit := refPrice * (1 - bandRatio)
	upperLimit := refPrice * (1 + bandRatio)

	step := float64(priceStep)
	bidBase := int64(math.Floor((refPrice-spread)/step)) * priceStep
	askBase := int64(math.Ceil((refPrice+spread)/step)) * priceStep

	long = make([]int64, 0, gridCount)
	for i := gridCount - 1; i >= 0; i-- {
		price := bidBase - int64(i)*priceStep
		if float64(price) >= lowerLimit {
			long = append(long, price)
		}
	}
	short = make([]int64, 0, gridCount)
	for i := 0; i < gridCount; i++ {
		price := askBase + int64(i)*priceStep
		if float64(price) <= upperLimit {
			short = append(short, price)
		}
	}
	return long, short, nil
}
