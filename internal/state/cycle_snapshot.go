package state

import (
	"context"
	"encoding/json"
	"strings"
)

const CycleSnapshotKey = "engine:last_cycle"

// CycleSnapshot records the outcome of the most recent reconciliation
// cycle. It is persisted after every cycle so an operator can inspect the
// last known grid after a restart or a crash.
type CycleSnapshot struct {
	Symbol      string  `json:"symbol"`
	RefPrice    float64 `json:"ref_price"`
	Spread      float64 `json:"spread"`
	LongLevels  []int64 `json:"long_levels"`
	ShortLevels []int64 `json:"short_levels"`
	Cancelled   int     `json:"cancelled"`
	Placed      int     `json:"placed"`
	UpdatedAtMS int64   `json:"updated_at_ms"`
}

func LoadCycleSnapshot(ctx context.Context, store Store) (CycleSnapshot, bool, error) {
	if store == nil {
		return CycleSnapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, CycleSnapshotKey)
	if err != nil {
		return CycleSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return CycleSnapshot{}, false, nil
	}
	var snapshot CycleSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return CycleSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveCycleSnapshot(ctx context.Context, store Store, snapshot CycleSnapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, CycleSnapshotKey, string(payload))
}
