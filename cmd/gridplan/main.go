package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"standx-grid-bot/internal/config"
	"standx-grid-bot/internal/grid"
	"standx-grid-bot/internal/reconcile"
)

// gridplan prints the ladders the bot would quote at a given reference
// price, without touching any venue. Useful for sanity-checking grid
// parameters before deploying them.
func main() {
	configPath := flag.String("config", "", "optional config path for grid parameters")
	price := flag.Float64("price", 0, "reference price to plan around")
	priceStep := flag.Int64("step", 1, "price step in ticks")
	gridCount := flag.Int("count", 3, "levels per side")
	spread := flag.Float64("spread", 0, "distance from reference to the nearest level")
	adx := flag.Float64("adx", -1, "optional trend signal value for dynamic spread")
	flag.Parse()

	step, count, baseSpread := *priceStep, *gridCount, *spread
	threshold, maxSignal := 25.0, 60.0
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		step = cfg.Grid.PriceStep
		count = cfg.Grid.GridCount
		baseSpread = cfg.Grid.PriceSpread
		threshold = cfg.Risk.ADXThreshold
		maxSignal = cfg.Risk.ADXMax
	}
	if *price <= 0 {
		fatal(errors.New("-price is required and must be > 0"))
	}

	effective := baseSpread
	if *adx >= 0 {
		effective = grid.DynamicSpread(*adx, true, *price, baseSpread, threshold, maxSignal)
	}

	long, short, err := grid.Generate(*price, step, count, effective)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("reference price: %v\n", *price)
	fmt.Printf("spread: %v (base %v)\n", effective, baseSpread)
	fmt.Printf("long levels (%d): %v\n", len(long), long)
	fmt.Printf("short levels (%d): %v\n", len(short), short)
	if len(long) == 0 && len(short) == 0 {
		fmt.Println("note: every level fell outside the 1% price band; nothing would be quoted")
	}

	plan := reconcile.Diff(long, short, reconcile.Levels{}, reconcile.Levels{})
	fmt.Printf("dry run against an empty book: cancel %d, place %d buy / %d sell\n",
		len(plan.CancelIDs), len(plan.PlaceLong), len(plan.PlaceShort))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
