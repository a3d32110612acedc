package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mExOms/sor/internal/oracle"
	"github.com/mExOms/sor/internal/router"
	"github.com/mExOms/sor/internal/venue"
	"github.com/mExOms/sor/pkg/clock"
	"github.com/mExOms/sor/pkg/types"
)

var simSymbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"}

func main() {
	var (
		orders      = flag.Int("orders", 50, "orders to route")
		concurrency = flag.Int("concurrency", 4, "concurrent submitters")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
		verbose     = flag.Bool("v", false, "print every routing result")
	)
	flag.Parse()

	// Keep the console readable; the simulation reports its own lines.
	logrus.SetLevel(logrus.WarnLevel)

	fmt.Println("=== Smart Order Router Simulation ===")

	registry, err := venue.FromViper(clock.RealClock{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "venue board: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Venue board ready: %v\n", registry.List())

	scorer := oracle.NewHeuristicScorer()
	cfg := router.DefaultConfig()
	cfg.Feedback = scorer
	core := router.New(registry, scorer, cfg)
	defer core.Close()

	rng := rand.New(rand.NewSource(*seed))
	batch := make([]*types.Order, *orders)
	for i := range batch {
		side := types.OrderSideBuy
		if rng.Intn(2) == 1 {
			side = types.OrderSideSell
		}
		batch[i] = &types.Order{
			ID:        fmt.Sprintf("SIM-%04d", i+1),
			Symbol:    simSymbols[rng.Intn(len(simSymbols))],
			Side:      side,
			Type:      types.OrderTypeMarket,
			Quantity:  decimal.NewFromInt(int64(10 + rng.Intn(490))),
			CreatedAt: time.Now(),
		}
	}

	fmt.Printf("✓ Routing %d orders with %d submitters\n\n", *orders, *concurrency)

	jobs := make(chan *types.Order)
	results := make(chan *types.RoutingResult, *orders)

	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for order := range jobs {
				res, err := core.Route(context.Background(), order)
				if err != nil {
					fmt.Fprintf(os.Stderr, "route %s: %v\n", order.ID, err)
					continue
				}
				results <- res
			}
		}()
	}

	start := time.Now()
	go func() {
		for _, order := range batch {
			jobs <- order
		}
		close(jobs)
	}()

	var filled int
	requested, executed := decimal.Zero, decimal.Zero
	for i := 0; i < *orders; i++ {
		res := <-results
		requested = requested.Add(res.RequestedQty)
		executed = executed.Add(res.ExecutedQty)
		if res.Success {
			filled++
		}
		if *verbose {
			printResult(res)
		}
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("\n=== Summary ===")
	fmt.Printf("  orders:     %d routed, %d filled (%.1f%%)\n",
		*orders, filled, 100*float64(filled)/float64(*orders))
	fmt.Printf("  quantity:   %s requested, %s executed\n", requested, executed)
	fmt.Printf("  duration:   %v (%.1f orders/sec)\n",
		elapsed.Round(time.Millisecond), float64(*orders)/elapsed.Seconds())

	snap := core.Statistics()
	fmt.Printf("  avg cycle:  %.2fms\n", snap.AvgExecutionMS)
	fmt.Printf("  volume:     %s\n", snap.TotalVolume)

	fmt.Println("\n=== Venue Flow ===")
	venueIDs := make([]string, 0, len(snap.VenueStats))
	for id := range snap.VenueStats {
		venueIDs = append(venueIDs, id)
	}
	sort.Strings(venueIDs)
	for _, id := range venueIDs {
		share := snap.VenueStats[id]
		fmt.Printf("  %-8s %6d orders  %5.1f%%\n", id, share.TotalRouted, share.Percentage)
	}
}

func printResult(res *types.RoutingResult) {
	if !res.Success {
		fmt.Printf("  [FAIL] %-9s %-6s %-4s %6s  %s\n",
			res.OrderID, res.Symbol, res.Side, res.RequestedQty, res.Reason)
		return
	}
	fmt.Printf("  [OK]   %-9s %-6s %-4s %6s  filled %s @ %s in %.2fms (%d venues)\n",
		res.OrderID, res.Symbol, res.Side, res.RequestedQty,
		res.ExecutedQty, res.AvgPrice.StringFixed(2), res.ExecutionMS, len(res.Decisions))
}
