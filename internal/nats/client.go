// Package nats connects to the JetStream stream that carries bot events.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Stream and subjects bot events are published on.
const (
	StreamName    = "INVITER"
	SubjectPrefix = "inviter."
	AllSubjects   = SubjectPrefix + ">"
)

// Options configure the connection and the events stream.
type Options struct {
	URL  string
	Name string
	// MaxAge drops events older than this from the stream.
	MaxAge time.Duration
	// Duplicates is the window in which a repeated message id is ignored.
	Duplicates time.Duration
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "groupinviter"
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 7 * 24 * time.Hour
	}
	if o.Duplicates <= 0 {
		o.Duplicates = 2 * time.Minute
	}
	return o
}

// Client is a JetStream connection bound to the events stream.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials NATS and creates or updates the events stream.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	conn, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{AllSubjects},
		MaxAge:     opts.MaxAge,
		Duplicates: opts.Duplicates,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
	}

	return &Client{conn: conn, js: js}, nil
}

// PublishMsg publishes payload; msgID lets the stream drop a retried publish.
func (c *Client) PublishMsg(ctx context.Context, subject string, payload []byte, msgID string) error {
	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}
	if _, err := c.js.Publish(ctx, subject, payload, opts...); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// SubscribeOptions select what a consumer receives.
type SubscribeOptions struct {
	// Durable keeps the consumer's position across runs when set.
	Durable string
	Subject string
	// Replay starts from the oldest event kept instead of new ones only.
	Replay bool
}

// Subscribe consumes events until the returned stop func is called. A
// handler error naks the message for redelivery.
func (c *Client) Subscribe(ctx context.Context, opts SubscribeOptions, handler func(subject string, data []byte) error) (stop func(), err error) {
	deliver := jetstream.DeliverNewPolicy
	if opts.Replay {
		deliver = jetstream.DeliverAllPolicy
	}
	if opts.Subject == "" {
		opts.Subject = AllSubjects
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       opts.Durable,
		FilterSubject: opts.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: deliver,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		if err := handler(msg.Subject(), msg.Data()); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", opts.Subject, err)
	}
	return cc.Stop, nil
}

// Close flushes pending publishes and closes the connection.
func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

// IsConnected reports the connection state.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}
