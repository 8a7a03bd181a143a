package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

const (
	// MaxBatchSize is the hard cap on operations per batch.
	MaxBatchSize = 500
	// abortFailureRatio is the runaway-batch circuit breaker: when failures
	// exceed this share of the batch, the whole transaction rolls back.
	abortFailureRatio = 0.10

	batchRatePlan = "BAR"
	batchCurrency = "USD"
)

// ErrBatchTooLarge is a structural rejection issued before any work begins.
var ErrBatchTooLarge = fmt.Errorf("batch exceeds %d operations", MaxBatchSize)

// errBatchAborted trips the transaction rollback from inside the fold.
var errBatchAborted = errors.New("failure threshold exceeded")

// OperationError reports one failed operation, keyed by its batch index.
type OperationError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// BatchResult is the outcome of one batch. After an abort, Processed reflects
// work attempted before the threshold was hit; none of it is visible in the
// store because of the rollback.
type BatchResult struct {
	Success    bool             `json:"success"`
	Processed  int              `json:"processed"`
	Failed     int              `json:"failed"`
	Errors     []OperationError `json:"errors,omitempty"`
	Aborted    bool             `json:"aborted,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// TxStore is the store surface the processor needs.
type TxStore interface {
	store.TxRunner
	store.AuditLog
}

// Processor applies a batch of flat per-date operations inside one atomic
// transaction.
type Processor struct {
	store TxStore
	now   func() time.Time
}

func NewProcessor(s TxStore) *Processor {
	return &Processor{store: s, now: time.Now}
}

// ProcessBatch validates the batch structurally, then applies every operation
// inside one transaction. Per-operation failures accumulate; once they
// exceed 10% of the batch the transaction aborts and rolls back. Sub-threshold
// failures commit but still yield Success=false.
//
// The returned error is reserved for structural rejections (ErrBatchTooLarge)
// and infrastructure failures.
func (p *Processor) ProcessBatch(ctx context.Context, hotelID string, ops []Operation) (*BatchResult, error) {
	start := p.now()

	if len(ops) == 0 {
		return &BatchResult{Success: true}, nil
	}
	if len(ops) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	// Structural pass: nothing touches the store while the request itself is
	// malformed.
	today := store.Day(p.now())
	var structural []OperationError
	for i, op := range ops {
		if err := validateOperation(op, today); err != nil {
			structural = append(structural, OperationError{Index: i, Message: err.Error()})
		}
	}
	if len(structural) > 0 {
		return &BatchResult{
			Success:    false,
			Failed:     len(structural),
			Errors:     structural,
			DurationMS: time.Since(start).Milliseconds(),
		}, nil
	}

	// The fold result lives outside the closure so the wrapper can inspect it
	// after a rollback; the closure only appends, never re-reads.
	var (
		processed int
		opErrors  []OperationError
	)
	total := len(ops)

	txErr := p.store.WithinTx(ctx, func(tx store.ARIWriter) error {
		for i, op := range ops {
			if err := p.applyOperation(ctx, tx, hotelID, op); err != nil {
				opErrors = append(opErrors, OperationError{Index: i, Message: err.Error()})
			} else {
				processed++
			}

			// Re-evaluated after every operation, so the abort point depends
			// on where in the batch the failures sit.
			if float64(len(opErrors))/float64(total) > abortFailureRatio {
				return errBatchAborted
			}
		}
		return nil
	})

	result := &BatchResult{
		Processed:  processed,
		Failed:     len(opErrors),
		Errors:     opErrors,
		DurationMS: time.Since(start).Milliseconds(),
	}

	switch {
	case txErr == nil:
		result.Success = result.Failed == 0
	case errors.Is(txErr, errBatchAborted):
		result.Success = false
		result.Aborted = true
		log.Printf("[Bulk] Batch for hotel %s aborted: %d/%d operations failed", hotelID, result.Failed, total)
	default:
		return nil, txErr
	}

	p.appendAudit(ctx, hotelID, result)
	return result, nil
}

// applyOperation performs one operation inside the transaction. Returned
// errors count as that operation's failure only.
func (p *Processor) applyOperation(ctx context.Context, tx store.ARIWriter, hotelID string, op Operation) error {
	rt, err := tx.FindRoomType(ctx, hotelID, op.RoomTypeCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("room type %q not found", op.RoomTypeCode)
		}
		return err
	}

	date, _ := store.ParseDate(op.Date) // format already validated

	if op.Available != nil {
		// The store clamps to the physically installed, in-service count:
		// requesting more than exists is silently corrected, not failed.
		if err := tx.SetAvailability(ctx, *rt, date, *op.Available); err != nil {
			return fmt.Errorf("availability: %w", err)
		}
	}

	if op.Price != nil {
		if err := tx.UpsertRate(ctx, *rt, batchRatePlan, date, *op.Price, batchCurrency); err != nil {
			return fmt.Errorf("rate: %w", err)
		}
	}

	if patch := op.restrictionPatch(); !patch.IsZero() {
		if err := tx.UpsertRestriction(ctx, *rt, date, patch); err != nil {
			return fmt.Errorf("restriction: %w", err)
		}
	}

	return nil
}

func (p *Processor) appendAudit(ctx context.Context, hotelID string, result *BatchResult) {
	eventType := "BulkBatchProcessed"
	if result.Aborted {
		eventType = "BulkBatchAborted"
	}
	payload, _ := json.Marshal(result)
	entry := store.AuditEntry{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateID:   hotelID,
		AggregateType: "BulkBatch",
		Payload:       payload,
		HotelID:       hotelID,
		Timestamp:     p.now(),
	}
	if err := p.store.Append(ctx, entry); err != nil {
		log.Printf("[Bulk] Audit append failed for hotel %s: %v", hotelID, err)
	}
}
