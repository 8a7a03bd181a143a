package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/example/hotel-distribution/internal/config"
	"github.com/example/hotel-distribution/internal/distribution"
	"github.com/example/hotel-distribution/internal/infrastructure/kafka"
	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	log.Println("[Distributor] ========================================")
	log.Println("[Distributor] ARI Distribution Fan-Out")
	log.Println("[Distributor] ========================================")
	log.Printf("[Distributor] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[Distributor] Topic: %s", cfg.KafkaTopic)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Distributor] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[Distributor] Connected to PostgreSQL")

	pusher := distribution.NewPusher(store.NewPostgresStore(db))

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "ari-distributor")
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("[Distributor] Consuming distribution topic...")
		if err := consumer.Consume(ctx, pusher.HandleMessage); err != nil {
			if ctx.Err() == nil {
				log.Printf("[Distributor] Consumer error: %v", err)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Distributor] Shutting down...")
	cancel()
	wg.Wait()
}
