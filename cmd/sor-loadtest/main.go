package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"}

type orderRequest struct {
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	OrderType string  `json:"order_type"`
	Quantity  float64 `json:"quantity"`
}

type routingResponse struct {
	OrderID     string  `json:"order_id"`
	Success     bool    `json:"success"`
	FillRate    float64 `json:"fill_rate"`
	ExecutionMS float64 `json:"execution_time_ms"`
}

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "server base URL")
		orders      = flag.Int("orders", 200, "orders to send")
		concurrency = flag.Int("concurrency", 10, "concurrent senders")
	)
	flag.Parse()

	fmt.Printf("=== Load Test: %d orders, %d concurrent -> %s ===\n",
		*orders, *concurrency, *baseURL)

	client := &http.Client{Timeout: 10 * time.Second}
	endpoint := *baseURL + "/api/v1/orders"

	latencies := make([]time.Duration, *orders)
	routed := make([]bool, *orders)
	fillRates := make([]float64, *orders)
	var transportErrs int64

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))

			for i := range jobs {
				side := "BUY"
				if rng.Intn(2) == 1 {
					side = "SELL"
				}
				req := orderRequest{
					Symbol:    symbols[rng.Intn(len(symbols))],
					Side:      side,
					OrderType: "MARKET",
					Quantity:  float64(10 + rng.Intn(490)),
				}

				body, _ := json.Marshal(req)
				sent := time.Now()
				resp, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
				latencies[i] = time.Since(sent)
				if err != nil {
					atomic.AddInt64(&transportErrs, 1)
					continue
				}

				var result routingResponse
				if resp.StatusCode == http.StatusOK {
					if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
						routed[i] = result.Success
						fillRates[i] = result.FillRate
					}
				}
				resp.Body.Close()
			}
		}(w)
	}

	start := time.Now()
	for i := 0; i < *orders; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	if transportErrs == int64(*orders) {
		fmt.Fprintf(os.Stderr, "all %d requests failed; is the server running at %s?\n",
			*orders, *baseURL)
		os.Exit(1)
	}

	var success int
	var fillSum float64
	for i := range routed {
		if routed[i] {
			success++
		}
		fillSum += fillRates[i]
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("  duration:      %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  throughput:    %.1f orders/sec\n", float64(*orders)/elapsed.Seconds())
	fmt.Printf("  routed:        %d/%d (%.1f%%)\n",
		success, *orders, 100*float64(success)/float64(*orders))
	fmt.Printf("  avg fill rate: %.1f%%\n", 100*fillSum/float64(*orders))
	fmt.Printf("  latency:       p50=%v  p95=%v  p99=%v\n",
		percentile(latencies, 50), percentile(latencies, 95), percentile(latencies, 99))
	if transportErrs > 0 {
		fmt.Printf("  transport errors: %d\n", transportErrs)
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx].Round(time.Microsecond)
}
