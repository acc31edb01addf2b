// Package inviter runs invite campaigns: it picks pending contacts of a group,
// invites them one by one through the automation account and records every
// outcome, keeping within daily quotas and Telegram's rate limits.
package inviter

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/blockedby/groupinviter/internal/config"
)

// Policy holds the campaign throttling and retry settings.
type Policy struct {
	// DailyLimit caps invite attempts into one group per UTC day.
	DailyLimit int
	// Delay is the pause between two invitations.
	Delay time.Duration
	// BatchSize caps how many contacts one campaign processes.
	BatchSize int
	// DeclineWait is how long a declined contact rests before it is retried.
	DeclineWait time.Duration
	// MaxAttempts is how many campaigns may try a failed contact.
	MaxAttempts int
	// MaxFloodWait is the longest FLOOD_WAIT the campaign sits out; longer
	// waits abort it.
	MaxFloodWait time.Duration
	// ProgressEvery reports progress after this many contacts.
	ProgressEvery int

	// RetryAttempts and RetryDelay drive the exponential backoff on
	// transient errors for a single contact.
	RetryAttempts int
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration

	Tiers config.Tiers
}

// DefaultPolicy mirrors the config defaults.
func DefaultPolicy() Policy {
	return Policy{
		DailyLimit:    50,
		Delay:         3 * time.Second,
		BatchSize:     50,
		DeclineWait:   30 * 24 * time.Hour,
		MaxAttempts:   3,
		MaxFloodWait:  5 * time.Minute,
		ProgressEvery: 5,
		RetryAttempts: 2,
		RetryDelay:    2 * time.Second,
		RetryMaxDelay: 30 * time.Second,
		Tiers:         config.DefaultTiers(),
	}
}

// PolicyFromConfig builds a Policy from cfg.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := DefaultPolicy()
	p.DailyLimit = cfg.DailyInviteLimit
	p.Delay = cfg.InviteDelay
	p.BatchSize = cfg.InviteBatchSize
	p.DeclineWait = cfg.DeclineWait()
	p.MaxAttempts = cfg.InviteMaxAttempts
	p.MaxFloodWait = cfg.MaxFloodWait
	p.ProgressEvery = cfg.ProgressEvery
	p.RetryAttempts = cfg.InviteRetries
	p.RetryDelay = cfg.InviteRetryDelay
	p.Tiers = cfg.Tiers
	return p.withDefaults()
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.DailyLimit <= 0 {
		p.DailyLimit = d.DailyLimit
	}
	if p.BatchSize <= 0 {
		p.BatchSize = d.BatchSize
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.ProgressEvery <= 0 {
		p.ProgressEvery = d.ProgressEvery
	}
	if p.RetryAttempts < 0 {
		p.RetryAttempts = 0
	}
	if p.RetryMaxDelay <= 0 {
		p.RetryMaxDelay = d.RetryMaxDelay
	}
	if p.Tiers == (config.Tiers{}) {
		p.Tiers = d.Tiers
	}
	return p
}

// backOff returns the retry schedule for one contact.
func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.RetryDelay
	b.MaxInterval = p.RetryMaxDelay
	b.MaxElapsedTime = 0
	if p.RetryDelay <= 0 {
		return backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(p.RetryAttempts)), ctx)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.RetryAttempts)), ctx)
}
