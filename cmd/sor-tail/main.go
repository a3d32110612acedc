package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/mExOms/sor/pkg/nats"
)

func main() {
	var (
		natsURL = flag.String("nats", "nats://localhost:4222", "NATS server URL")
		symbol  = flag.String("symbol", "", "only tail results for this symbol")
		verbose = flag.Bool("v", false, "verbose client logging")
	)
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	client, err := nats.NewClient(&nats.Config{
		URL:      *natsURL,
		ClientID: "sor-tail",
		Streams:  nats.DefaultStreams(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *natsURL, err)
		os.Exit(1)
	}
	defer client.Close()

	var sub *nats.Subscription
	if *symbol == "" {
		sub, err = client.SubscribeAllRouting(printEvent)
	} else {
		sub, err = client.SubscribeRoutingResults(strings.ToUpper(*symbol), printEvent)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "subscribe: %v\n", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	fmt.Printf("=== Tailing routing events on %s (Ctrl-C to stop) ===\n", *natsURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println()
}

func printEvent(subject string, data []byte) error {
	action, _, symbol := nats.ParseSubject(subject)

	switch action {
	case nats.ActionRoutingResult:
		var msg nats.RoutingResultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		res := msg.Result
		fmt.Printf("[RESULT] %-6s %-12s %-4s filled %s/%s @ %s in %.2fms (%d venues)\n",
			symbol, res.OrderID, res.Side, res.ExecutedQty, res.RequestedQty,
			res.AvgPrice.StringFixed(2), res.ExecutionMS, len(res.Decisions))
	case nats.ActionRoutingReject:
		var msg nats.RejectionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		fmt.Printf("[REJECT] %-6s %-12s %s\n", symbol, msg.OrderID, msg.Reason)
	default:
		fmt.Printf("[EVENT]  %s %s\n", subject, data)
	}
	return nil
}
