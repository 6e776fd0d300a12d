package ui

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/poku-e/ecopack/internal/logger"
)

// TopicPage carries every page model mutation.
const TopicPage = "ui.page"

// Event types published by Page.
const (
	EventToast     = "toast"
	EventSection   = "section"
	EventBusy      = "busy"
	EventQuota     = "quota"
	EventResults   = "results"
	EventMaterials = "materials"
	EventDashboard = "dashboard"
	EventReset     = "reset"
)

type Event struct {
	Type   string                 `json:"type"`
	Detail map[string]interface{} `json:"detail,omitempty"`
	At     time.Time              `json:"at"`
}

// Bus fans page events out to in-process subscribers.
type Bus struct {
	pubSub *gochannel.GoChannel
	log    logger.Logger
}

func NewBus(log logger.Logger) *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false)),
		log:    log,
	}
}

// Publish never blocks on slow subscribers; failures are logged.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		b.log.Error("UI", "Failed to encode page event", map[string]interface{}{"type": e.Type, "error": err.Error()})
		return
	}
	if err := b.pubSub.Publish(TopicPage, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		b.log.Error("UI", "Failed to publish page event", map[string]interface{}{"type": e.Type, "error": err.Error()})
	}
}

// Subscribe delivers decoded events until ctx ends or the bus closes.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	messages, err := b.pubSub.Subscribe(ctx, TopicPage)
	if err != nil {
		return nil, err
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range messages {
			var e Event
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				b.log.Warn("UI", "Dropping malformed page event", map[string]interface{}{"error": err.Error()})
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
