package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/blockedby/groupinviter/internal/config"
	"github.com/blockedby/groupinviter/internal/events"
	"github.com/blockedby/groupinviter/internal/nats"
)

func newEventsCmd(_ *rootOptions) *cobra.Command {
	var (
		consumer string
		filter   string
		replay   bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail bot events from NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.NatsURL == "" {
				return fmt.Errorf("NATS_URL is not set")
			}

			nc, err := nats.Connect(ctx, nats.Options{URL: cfg.NatsURL, Name: "inviter-cli"})
			if err != nil {
				return err
			}
			defer nc.Close()

			subject := nats.AllSubjects
			if filter != "" {
				subject = nats.SubjectPrefix + strings.TrimPrefix(filter, nats.SubjectPrefix)
			}

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			sub := nats.SubscribeOptions{Durable: consumer, Subject: subject, Replay: replay}
			stop, err := nc.Subscribe(ctx, sub, func(subject string, data []byte) error {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintln(out, formatEvent(subject, data))
				return nil
			})
			if err != nil {
				return err
			}
			defer stop()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&consumer, "consumer", "", "Durable consumer name; empty for a throwaway consumer")
	cmd.Flags().BoolVar(&replay, "replay", false, "Start from the oldest stored event")
	cmd.Flags().StringVar(&filter, "type", "", "Only this event type, e.g. campaign.progress or campaign.*")
	return cmd
}

// formatEvent prints one event per line: time, type, payload.
func formatEvent(subject string, data []byte) string {
	var e struct {
		events.Event
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &e); err != nil || e.Type == "" {
		return fmt.Sprintf("%s %s", subject, data)
	}
	return fmt.Sprintf("%s %-18s %s", e.Time.Format("15:04:05"), e.Type, e.Payload)
}
