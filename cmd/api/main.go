package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/example/hotel-distribution/internal/api"
	"github.com/example/hotel-distribution/internal/auth"
	"github.com/example/hotel-distribution/internal/config"
	"github.com/example/hotel-distribution/internal/domain/ari"
	"github.com/example/hotel-distribution/internal/domain/bulk"
	"github.com/example/hotel-distribution/internal/domain/channel"
	"github.com/example/hotel-distribution/internal/domain/restriction"
	"github.com/example/hotel-distribution/internal/infrastructure/kafka"
	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	log.Println("[API] ========================================")
	log.Println("[API] Hotel Distribution - ARI Platform")
	log.Println("[API] ========================================")
	log.Printf("[API] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[API] Topic: %s", cfg.KafkaTopic)
	log.Printf("[API] Event log backend: %s", cfg.EventLogBackend)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[API] Connected to PostgreSQL")

	ariStore := store.NewPostgresStore(db)
	eventLog := buildEventLog(ctx, cfg, db)

	saga := ari.NewSaga(eventLog, ariStore, ariStore, producer)
	bulkProcessor := bulk.NewProcessor(ariStore)
	quoteService := restriction.NewService(ariStore)
	validator := channel.NewValidator(ariStore, ariStore)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)

	router := api.NewRouter(api.RouterConfig{
		Handlers:        api.NewHandlers(saga, bulkProcessor, quoteService, eventLog),
		ChannelHandlers: api.NewChannelHandlers(validator, ariStore),
		AuthHandlers:    api.NewAuthHandlers(ariStore, jwtService),
		JWTService:      jwtService,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("[API] Server started on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}

func buildEventLog(ctx context.Context, cfg *config.Config, db *sql.DB) store.EventLog {
	switch cfg.EventLogBackend {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("[API] Failed to load AWS config: %v", err)
		}
		log.Printf("[API] Event log: DynamoDB table %s", cfg.DynamoTable)
		return store.NewDynamoEventLog(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable)
	case "memory":
		log.Println("[API] Event log: in-memory (single node, development only)")
		return store.NewMemoryEventLog()
	default:
		log.Println("[API] Event log: PostgreSQL (ari_events table)")
		return store.NewPostgresEventLog(db)
	}
}
