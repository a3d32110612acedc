package venue

import (
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/mExOms/sor/pkg/clock"
)

// Default venue board: US equity venues with their one-way latencies in
// milliseconds, used when no venues are configured.
var defaultLatencies = map[string]float64{
	"NYSE":   3.0,
	"NASDAQ": 2.5,
	"BATS":   4.0,
	"IEX":    10.0,
	"ARCA":   3.5,
}

var defaultSymbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"}

// SymbolsFromViper returns the configured symbol universe, falling back to
// the default board. The venues built by FromViper quote exactly this set.
func SymbolsFromViper() []string {
	if symbols := viper.GetStringSlice("symbols"); len(symbols) > 0 {
		return symbols
	}
	return append([]string(nil), defaultSymbols...)
}

// FromViper builds the registry from the "venues" and "symbols" config
// sections. Per-venue keys: venues.<id>.latency_ms, .liquidity, .fee_pct,
// .supports_limit, .seed. Unset sections fall back to the default board.
func FromViper(clk clock.Clock) (*Registry, error) {
	symbols := SymbolsFromViper()

	names := make([]string, 0)
	for name := range viper.GetStringMap("venues") {
		names = append(names, name)
	}
	if len(names) == 0 {
		for name := range defaultLatencies {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	registry := NewRegistry()
	for _, name := range names {
		// viper lowercases map keys; venue IDs stay upper-case.
		id := strings.ToUpper(name)
		key := "venues." + name

		latency := viper.GetFloat64(key + ".latency_ms")
		if latency == 0 {
			latency = defaultLatencies[id]
		}
		if latency == 0 {
			latency = 5.0
		}

		sim := NewSimulator(Config{
			ID:            id,
			LatencyMS:     latency,
			Liquidity:     viper.GetFloat64(key + ".liquidity"),
			FeePct:        viper.GetFloat64(key + ".fee_pct"),
			Symbols:       symbols,
			SupportsLimit: viper.GetBool(key + ".supports_limit"),
			Seed:          viper.GetInt64(key + ".seed"),
			Clock:         clk,
		})
		if err := registry.Add(sim); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
