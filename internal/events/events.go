package events

import (
	"context"
	"encoding/json"
	"time"
)

// Channel names for dream lifecycle events.
const (
	ChannelDreamCreated = "dream.created"
	ChannelDreamDeleted = "dream.deleted"
)

// DreamEvent is the payload published when a dream is created or deleted.
type DreamEvent struct {
	DreamID    int       `json:"dream_id"`
	UserID     int       `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Publisher emits dream lifecycle events to a backend.
type Publisher struct {
	backend Backend
}

// NewPublisher constructs a Publisher for the provided backend.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// DreamCreated publishes a dream.created event.
func (p *Publisher) DreamCreated(ctx context.Context, dreamID, userID int) error {
	return p.publish(ctx, ChannelDreamCreated, dreamID, userID)
}

// DreamDeleted publishes a dream.deleted event.
func (p *Publisher) DreamDeleted(ctx context.Context, dreamID, userID int) error {
	return p.publish(ctx, ChannelDreamDeleted, dreamID, userID)
}

func (p *Publisher) publish(ctx context.Context, channel string, dreamID, userID int) error {
	event := DreamEvent{
		DreamID:    dreamID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.backend.Publish(ctx, channel, data, map[string]string{
		"content-type": "application/json",
	})
	return err
}

// Subscribe consumes dream events from the named channel.
func (p *Publisher) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return p.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	return p.backend.Close()
}
