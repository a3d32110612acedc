package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/mExOms/sor/internal/api"
	"github.com/mExOms/sor/internal/marketdata"
	"github.com/mExOms/sor/internal/oracle"
	"github.com/mExOms/sor/internal/router"
	"github.com/mExOms/sor/internal/venue"
	"github.com/mExOms/sor/pkg/clock"
	"github.com/mExOms/sor/pkg/nats"
)

func main() {
	loadConfig()
	setupLogging()

	log := logrus.WithField("component", "sor-server")
	log.Info("Starting smart order router...")

	registry, err := venue.FromViper(clock.RealClock{})
	if err != nil {
		log.Fatalf("Failed to build venue board: %v", err)
	}
	log.Infof("Venue board ready: %d venues", len(registry.List()))

	// The heuristic scorer doubles as the feedback sink so routing
	// outcomes sharpen future success estimates.
	scorer := oracle.NewHeuristicScorer()

	routerCfg := router.ConfigFromViper()
	routerCfg.Feedback = scorer
	core := router.New(registry, scorer, routerCfg)
	defer core.Close()

	books := marketdata.NewAggregator(registry, viper.GetDuration("marketdata.ttl"))
	defer books.Close()

	var events *nats.Client
	if url := viper.GetString("nats.url"); url != "" {
		events, err = nats.NewClient(&nats.Config{
			URL:      url,
			ClientID: "sor-server",
			Streams:  nats.DefaultStreams(),
		})
		if err != nil {
			log.Warnf("NATS unavailable, event publishing disabled: %v", err)
		} else {
			defer events.Close()
			announce(events, "started")
			defer announce(events, "stopping")

			publisher := marketdata.NewPublisher(books, events,
				venue.SymbolsFromViper(), viper.GetDuration("marketdata.publish_interval"))
			publisher.Start()
			defer publisher.Stop()
		}
	}

	server := api.NewServer(api.ConfigFromViper(), core, books, events)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("Shutdown signal received: %v", sig)
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown error: %v", err)
	}
	log.Info("Server stopped")
}

// announce pushes a lifecycle event onto the system stream.
func announce(events *nats.Client, event string) {
	msg := &nats.SystemMessage{
		Type:      "info",
		Component: "sor-server",
		Message:   "server " + event,
		Timestamp: time.Now(),
	}
	if err := events.PublishSystem("server", event, msg); err != nil {
		logrus.WithField("component", "sor-server").Warnf("announce %s: %v", event, err)
	}
}

func loadConfig() {
	viper.SetConfigName("sor")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/sor")

	viper.SetEnvPrefix("SOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.Fatalf("Failed to read config: %v", err)
		}
	}
}

func setupLogging() {
	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if viper.GetString("log.format") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
