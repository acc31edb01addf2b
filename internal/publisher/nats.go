// Package publisher forwards bot events to NATS.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/blockedby/groupinviter/internal/events"
	"github.com/blockedby/groupinviter/internal/nats"
)

// Sender is the part of the NATS client the publisher uses.
type Sender interface {
	PublishMsg(ctx context.Context, subject string, payload []byte, msgID string) error
}

// NATSPublisher implements events.Publisher on subjects "inviter.<type>".
type NATSPublisher struct {
	sender Sender
	newID  func() string
}

// NewNATSPublisher creates a publisher over sender.
func NewNATSPublisher(sender Sender) *NATSPublisher {
	return &NATSPublisher{sender: sender, newID: uuid.NewString}
}

// Subject returns the subject an event type is published on.
func Subject(t events.Type) string {
	return nats.SubjectPrefix + string(t)
}

// Publish sends the event as JSON under a fresh message id.
func (p *NATSPublisher) Publish(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Type, err)
	}
	if err := p.sender.PublishMsg(ctx, Subject(e.Type), payload, p.newID()); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}
