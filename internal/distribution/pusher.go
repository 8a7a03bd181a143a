package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/example/hotel-distribution/internal/domain/channel"
	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

// Pusher fans applied ARI events out to the hotel's push-mode channels. Only
// ARI_PUSH channels receive updates; SHOP_BOOK channels pull availability
// themselves and pushing to them would breach mode exclusivity. Every
// delivery is recorded so the exclusivity audit can see it.
type Pusher struct {
	store store.ChannelStore
	now   func() time.Time
}

func NewPusher(s store.ChannelStore) *Pusher {
	return &Pusher{store: s, now: time.Now}
}

// HandleMessage is the Kafka handler for the distribution topic. The message
// value is one applied ARIEvent, keyed by hotel ID.
func (p *Pusher) HandleMessage(ctx context.Context, key, value []byte) error {
	var ev store.ARIEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.Status != store.StatusApplied {
		log.Printf("[Pusher] Skipping event %s in status %s", ev.ID, ev.Status)
		return nil
	}
	return p.Push(ctx, &ev)
}

// Push delivers one applied event to every ARI_PUSH channel of its hotel.
func (p *Pusher) Push(ctx context.Context, ev *store.ARIEvent) error {
	channels, err := p.store.ListChannels(ctx, ev.HotelID)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	delivered := 0
	for _, ch := range channels {
		if ch.DistributionMode != channel.ModeARIPush {
			continue
		}
		if err := p.store.RecordPushDelivery(ctx, ch.ID, ev.ID, p.now()); err != nil {
			return fmt.Errorf("record push delivery to %s: %w", ch.Code, err)
		}
		delivered++
	}

	log.Printf("[Pusher] Event %s (%s) delivered to %d channel(s) of hotel %s", ev.ID, ev.Type, delivered, ev.HotelID)
	return nil
}
