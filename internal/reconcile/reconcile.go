package reconcile

import (
	"sort"

	"standx-grid-bot/internal/exchange"
)

// Levels maps a price level to the order ids resting at it. A level may carry
// several orders, e.g. after partial fills left remnants at one price.
type Levels map[int64][]string

// Prices returns the level prices in ascending order.
func (l Levels) Prices() []int64 {
	out := make([]int64, 0, len(l))
	for price := range l {
		out = append(out, price)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BySide buckets working orders into long and short levels. Non-working
// orders and orders without an id are ignored.
func BySide(orders []exchange.OrderRecord) (long, short Levels) {
	long = make(Levels)
	short = make(Levels)
	for _, rec := range orders {
		if rec.ID == "" || !rec.Status.IsWorking() {
			continue
		}
		switch rec.Side {
		case exchange.SideBuy:
			long[rec.Price] = append(long[rec.Price], rec.ID)
		case exchange.SideSell:
			short[rec.Price] = append(short[rec.Price], rec.ID)
		}
	}
	return long, short
}

// Plan is the corrective action set for one cycle: prices to cancel and
// prices to place, per side, each sorted ascending for deterministic
// execution. CancelIDs carries every order id resting at a cancelled price.
type Plan struct {
	CancelLong  []int64
	CancelShort []int64
	CancelIDs   []string
	PlaceLong   []int64
	PlaceShort  []int64
}

func (p Plan) Empty() bool {
	return len(p.CancelLong) == 0 && len(p.CancelShort) == 0 &&
		len(p.PlaceLong) == 0 && len(p.PlaceShort) == 0
}

// Diff computes the set differences between the target ladders and the
// observed levels. Observed prices outside the target are cancelled (all ids
// at that level); target prices with no resting order are placed.
func Diff(targetLong, targetShort []int64, curLong, curShort Levels) Plan {
	plan := Plan{
		CancelLong:  missing(curLong.Prices(), targetLong),
		CancelShort: missing(curShort.Prices(), targetShort),
		PlaceLong:   missing(targetLong, curLong.Prices()),
		PlaceShort:  missing(targetShort, curShort.Prices()),
	}
	for _, price := range plan.CancelLong {
		plan.CancelIDs = append(plan.CancelIDs, curLong[price]...)
	}
	for _, price := range plan.CancelShort {
		plan.CancelIDs = append(plan.CancelIDs, curShort[price]...)
	}
	return plan
}

// missing returns the members of from absent in exclude, sorted ascending.
func missing(from, exclude []int64) []int64 {
	set := make(map[int64]struct{}, len(exclude))
	for _, price := range exclude {
		set[price] = struct{}{}
	}
	var out []int64
	for _, price := range from {
		if _, ok := set[price]; !ok {
			out = append(out, price)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
