package reconcile

import (
	"testing"

	"standx-grid-bot/internal/exchange"
)

func TestDiffIdempotent(t *testing.T) {
	target := []int64{100, 101, 102}
	cur := Levels{100: {"a"}, 101: {"b"}, 102: {"c"}}
	plan := Diff(target, nil, cur, Levels{})
	if !plan.Empty() {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
}

func TestDiffCancelsAllIDsAtLevel(t *testing.T) {
	cur := Levels{100: {"id1", "id2"}}
	plan := Diff([]int64{101}, nil, cur, Levels{})
	if len(plan.CancelLong) != 1 || plan.CancelLong[0] != 100 {
		t.Fatalf("expected cancel at 100, got %v", plan.CancelLong)
	}
	if len(plan.CancelIDs) != 2 {
		t.Fatalf("expected both ids at the cancelled level, got %v", plan.CancelIDs)
	}
	if len(plan.PlaceLong) != 1 || plan.PlaceLong[0] != 101 {
		t.Fatalf("expected place at 101, got %v", plan.PlaceLong)
	}
}

func TestDiffBothSides(t *testing.T) {
	targetLong := []int64{98, 99}
	targetShort := []int64{101, 102}
	curLong := Levels{97: {"l1"}, 99: {"l2"}}
	curShort := Levels{102: {"s1"}, 103: {"s2"}}
	plan := Diff(targetLong, targetShort, curLong, curShort)
	assertPrices(t, "cancel long", plan.CancelLong, []int64{97})
	assertPrices(t, "cancel short", plan.CancelShort, []int64{103})
	assertPrices(t, "place long", plan.PlaceLong, []int64{98})
	assertPrices(t, "place short", plan.PlaceShort, []int64{101})
	if len(plan.CancelIDs) != 2 {
		t.Fatalf("expected 2 cancel ids, got %v", plan.CancelIDs)
	}
}

func TestDiffSortedOutput(t *testing.T) {
	cur := Levels{105: {"a"}, 101: {"b"}, 103: {"c"}}
	plan := Diff([]int64{110, 104, 102}, nil, cur, Levels{})
	assertPrices(t, "cancel long", plan.CancelLong, []int64{101, 103, 105})
	assertPrices(t, "place long", plan.PlaceLong, []int64{102, 104, 110})
}

func TestDiffConvergence(t *testing.T) {
	targetLong := []int64{98, 99, 100}
	cur := Levels{96: {"a"}, 98: {"b"}}
	plan := Diff(targetLong, nil, cur, Levels{})

	// Apply the plan to the observed state.
	next := Levels{}
	for price, ids := range cur {
		next[price] = ids
	}
	for _, price := range plan.CancelLong {
		delete(next, price)
	}
	for _, price := range plan.PlaceLong {
		next[price] = []string{"new"}
	}
	assertPrices(t, "converged", next.Prices(), targetLong)
}

func TestBySideFiltersAndBuckets(t *testing.T) {
	orders := []exchange.OrderRecord{
		{ID: "1", Side: exchange.SideBuy, Price: 100, Status: exchange.StatusOpen},
		{ID: "2", Side: exchange.SideBuy, Price: 100, Status: exchange.StatusPartiallyFilled},
		{ID: "3", Side: exchange.SideSell, Price: 102, Status: exchange.StatusPending},
		{ID: "4", Side: exchange.SideSell, Price: 103, Status: exchange.StatusFilled},
		{ID: "", Side: exchange.SideBuy, Price: 99, Status: exchange.StatusOpen},
	}
	long, short := BySide(orders)
	if len(long[100]) != 2 {
		t.Fatalf("expected 2 long orders at 100, got %v", long[100])
	}
	if len(short) != 1 || len(short[102]) != 1 {
		t.Fatalf("expected only the pending short at 102, got %v", short)
	}
	if _, ok := long[99]; ok {
		t.Fatalf("order without id should be ignored")
	}
}

func assertPrices(t *testing.T, name string, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %v, got %v", name, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: expected %v, got %v", name, want, got)
		}
	}
}
