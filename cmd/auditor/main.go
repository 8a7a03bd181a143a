package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/hotel-distribution/internal/config"
	"github.com/example/hotel-distribution/internal/domain/channel"
	"github.com/example/hotel-distribution/internal/email"
	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	log.Println("[Auditor] ========================================")
	log.Println("[Auditor] Channel Exclusivity Auditor")
	log.Println("[Auditor] ========================================")
	log.Printf("[Auditor] Interval: %s", cfg.AuditInterval)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Auditor] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[Auditor] Connected to PostgreSQL")

	ariStore := store.NewPostgresStore(db)
	eventLog := store.NewPostgresEventLog(db)
	validator := channel.NewValidator(ariStore, ariStore)

	var emailSvc *email.Service
	if cfg.SMTPHost != "" && cfg.AlertEmail != "" {
		emailSvc = email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.AlertFrom, cfg.SMTPUser, cfg.SMTPPass)
		log.Printf("[Auditor] Alerts go to %s", cfg.AlertEmail)
	} else {
		log.Println("[Auditor] Email alerts disabled (SMTP_HOST or ALERT_EMAIL not set)")
	}

	go func() {
		runAudit(ctx, cfg, ariStore, eventLog, validator, emailSvc)
		ticker := time.NewTicker(cfg.AuditInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runAudit(ctx, cfg, ariStore, eventLog, validator, emailSvc)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Auditor] Shutting down...")
	cancel()
}

// runAudit sweeps every hotel: exclusivity check over its channels, then a
// dead-letter inventory. Findings are logged and, when configured, emailed.
func runAudit(ctx context.Context, cfg *config.Config, ariStore *store.PostgresStore, eventLog store.EventLog, validator *channel.Validator, emailSvc *email.Service) {
	hotels, err := ariStore.ListHotelIDs(ctx)
	if err != nil {
		log.Printf("[Auditor] Failed to list hotels: %v", err)
		return
	}

	for _, hotelID := range hotels {
		report, err := validator.AuditAllChannels(ctx, hotelID)
		if err != nil {
			log.Printf("[Auditor] Audit failed for hotel %s: %v", hotelID, err)
			continue
		}
		if len(report.Violations) > 0 && emailSvc != nil {
			if err := emailSvc.SendExclusivityAlert(cfg.AlertEmail, report); err != nil {
				log.Printf("[Auditor] Failed to send violation alert for hotel %s: %v", hotelID, err)
			}
		}

		deadLetters, err := eventLog.ListDeadLetters(ctx, hotelID, 50)
		if err != nil {
			log.Printf("[Auditor] Failed to list dead letters for hotel %s: %v", hotelID, err)
			continue
		}
		if len(deadLetters) > 0 {
			log.Printf("[Auditor] Hotel %s has %d dead-lettered event(s)", hotelID, len(deadLetters))
			if emailSvc != nil {
				if err := emailSvc.SendDeadLetterAlert(cfg.AlertEmail, hotelID, deadLetters); err != nil {
					log.Printf("[Auditor] Failed to send dead-letter alert for hotel %s: %v", hotelID, err)
				}
			}
		}
	}
}
