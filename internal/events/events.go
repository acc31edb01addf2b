// Package events defines the notifications the bot emits while it searches,
// scrapes and invites, and fans them out to the configured sinks.
package events

import (
	"context"
	"errors"
	"time"
)

// Type names an event. It doubles as the NATS subject suffix.
type Type string

// Event types.
const (
	CampaignStarted  Type = "campaign.started"
	CampaignProgress Type = "campaign.progress"
	CampaignFinished Type = "campaign.finished"
	InviteRecorded   Type = "invite.recorded"
	ScrapeStarted    Type = "scrape.started"
	ScrapeProgress   Type = "scrape.progress"
	ScrapeFinished   Type = "scrape.finished"
	GroupAdded       Type = "group.added"
	AuthStatus       Type = "auth.status"
	AuthQRCode       Type = "auth.qr"
)

// Event is one notification.
type Event struct {
	Type    Type      `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

// New stamps an event with the current time.
func New(t Type, payload any) Event {
	return Event{Type: t, Time: time.Now().UTC(), Payload: payload}
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Nop drops every event.
var Nop Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

// Multi publishes to every sink and joins their errors. Nil sinks are skipped.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
