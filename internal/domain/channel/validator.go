package channel

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

// Distribution modes. A channel runs in exactly one of these: SHOP_BOOK
// channels query availability and originate reservations; ARI_PUSH channels
// passively receive pushed inventory and never book directly.
const (
	ModeShopBook = "SHOP_BOOK"
	ModeARIPush  = "ARI_PUSH"
)

// Channel types and the modes each supports.
const (
	TypeGDS    = "gds"
	TypeOTA    = "ota"
	TypeDirect = "direct"
)

var supportedModes = map[string][]string{
	TypeGDS:    {ModeShopBook},
	TypeOTA:    {ModeARIPush},
	TypeDirect: {ModeShopBook, ModeARIPush},
}

const (
	// coolingWindow is how long a mode stays locked after a change.
	coolingWindow = 30 * 24 * time.Hour
	// activityWindow is how far back the exclusivity audit looks.
	activityWindow = 7 * 24 * time.Hour
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	// ErrExclusivityViolation marks a detected (not prevented) mode breach.
	ErrExclusivityViolation = errors.New("distribution mode exclusivity violation")
)

// ValidationResult is the outcome of a mode-change check. Warnings are
// non-blocking findings that still land in the audit trail.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Violation is one detected exclusivity breach.
type Violation struct {
	ChannelID   string `json:"channel_id"`
	ChannelCode string `json:"channel_code"`
	Mode        string `json:"mode"`
	Detail      string `json:"detail"`
}

// AuditReport summarizes one run over a hotel's channels.
type AuditReport struct {
	HotelID    string      `json:"hotel_id"`
	Checked    int         `json:"checked"`
	Violations []Violation `json:"violations"`
	RanAt      time.Time   `json:"ran_at"`
}

// Validator enforces that a channel is configured for exactly one
// distribution mode, preventively on mode changes and detectively over
// recent activity.
type Validator struct {
	store store.ChannelStore
	audit store.AuditLog
	now   func() time.Time
}

func NewValidator(s store.ChannelStore, audit store.AuditLog) *Validator {
	return &Validator{store: s, audit: audit, now: time.Now}
}

// ValidateMode checks whether a channel may move to the requested mode.
// Unsupported modes for the channel type are hard errors. A change inside
// the 30-day cooling window is an error unless forced; forcing keeps it as a
// warning.
func (v *Validator) ValidateMode(ctx context.Context, channelID, mode string, force bool) (*ValidationResult, error) {
	ch, err := v.getChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return v.validate(ch, mode, force), nil
}

func (v *Validator) validate(ch *store.Channel, mode string, force bool) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if mode != ModeShopBook && mode != ModeARIPush {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("unknown distribution mode %q", mode))
		return result
	}

	if !typeSupports(ch.Type, mode) {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("channel type %q does not support mode %s", ch.Type, mode))
	}

	if !ch.ModeLockedAt.IsZero() && ch.DistributionMode != mode {
		lockedUntil := ch.ModeLockedAt.Add(coolingWindow)
		if v.now().Before(lockedUntil) {
			msg := fmt.Sprintf("mode locked until %s (changed %s)",
				lockedUntil.Format(time.RFC3339), ch.ModeLockedAt.Format(time.RFC3339))
			if force {
				result.Warnings = append(result.Warnings, "cooling period override: "+msg)
			} else {
				result.Valid = false
				result.Errors = append(result.Errors, msg)
			}
		}
	}

	return result
}

// SetMode validates and persists a mode change, re-locks the cooling window
// and writes the change to the audit trail, including whether it was forced.
func (v *Validator) SetMode(ctx context.Context, channelID, mode string, force bool) (*ValidationResult, error) {
	ch, err := v.getChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	result := v.validate(ch, mode, force)
	if !result.Valid {
		return result, nil
	}

	lockedAt := v.now()
	if err := v.store.SaveChannelMode(ctx, channelID, mode, lockedAt); err != nil {
		return nil, fmt.Errorf("save channel mode: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"previous_mode": ch.DistributionMode,
		"new_mode":      mode,
		"forced":        force,
		"warnings":      result.Warnings,
	})
	entry := store.AuditEntry{
		EventID:       uuid.New().String(),
		EventType:     "ChannelModeChanged",
		AggregateID:   ch.ID,
		AggregateType: "Channel",
		Payload:       payload,
		HotelID:       ch.HotelID,
		Timestamp:     lockedAt,
	}
	if err := v.audit.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("audit append: %w", err)
	}

	log.Printf("[Channel] Mode of %s changed %s -> %s (forced=%t)", ch.Code, ch.DistributionMode, mode, force)
	return result, nil
}

// EnforceExclusivity inspects the last 7 days of activity for one channel.
// An ARI_PUSH channel that originated reservations, or a SHOP_BOOK channel
// that received pushed updates, is a violation. This is a detective control
// run by the periodic audit, not an inline gate on every write.
func (v *Validator) EnforceExclusivity(ctx context.Context, channelID string) error {
	ch, err := v.getChannel(ctx, channelID)
	if err != nil {
		return err
	}

	since := v.now().Add(-activityWindow)

	switch ch.DistributionMode {
	case ModeARIPush:
		n, err := v.store.CountReservations(ctx, channelID, since)
		if err != nil {
			return fmt.Errorf("count reservations: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: channel %s is locked to ARI_PUSH but originated %d reservation(s) in the last 7 days",
				ErrExclusivityViolation, ch.Code, n)
		}
	case ModeShopBook:
		n, err := v.store.CountPushDeliveries(ctx, channelID, since)
		if err != nil {
			return fmt.Errorf("count push deliveries: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: channel %s is locked to SHOP_BOOK but received %d pushed update(s) in the last 7 days",
				ErrExclusivityViolation, ch.Code, n)
		}
	}

	return nil
}

// AuditAllChannels runs the exclusivity check over every channel of a hotel.
func (v *Validator) AuditAllChannels(ctx context.Context, hotelID string) (*AuditReport, error) {
	channels, err := v.store.ListChannels(ctx, hotelID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	report := &AuditReport{HotelID: hotelID, RanAt: v.now(), Violations: []Violation{}}
	for _, ch := range channels {
		report.Checked++
		err := v.EnforceExclusivity(ctx, ch.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrExclusivityViolation) {
			return nil, err
		}
		report.Violations = append(report.Violations, Violation{
			ChannelID:   ch.ID,
			ChannelCode: ch.Code,
			Mode:        ch.DistributionMode,
			Detail:      err.Error(),
		})
	}

	if len(report.Violations) > 0 {
		log.Printf("[Channel] Audit for hotel %s found %d violation(s)", hotelID, len(report.Violations))
	}
	return report, nil
}

// ModeHistory returns the channel's mode changes from the audit trail,
// newest first.
func (v *Validator) ModeHistory(ctx context.Context, channelID string) ([]store.AuditEntry, error) {
	ch, err := v.getChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return v.audit.ByAggregate(ctx, "Channel", ch.ID)
}

func (v *Validator) getChannel(ctx context.Context, channelID string) (*store.Channel, error) {
	ch, err := v.store.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
		}
		return nil, err
	}
	return ch, nil
}

func typeSupports(channelType, mode string) bool {
	modes, ok := supportedModes[channelType]
	if !ok {
		// Unknown channel types keep both modes open rather than bricking
		// the channel.
		return true
	}
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}
