// Package telegram wraps the MTProto automation account: session lifecycle,
// rate limiting and the few API calls the bot needs.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/celestix/gotgproto"
	"github.com/gotd/td/tg"

	"github.com/blockedby/groupinviter/internal/logger"
)

// Client provides high-level telegram operations on top of the Manager's
// current protocol client. Every call waits on the shared rate limiter and
// feeds FLOOD_WAIT errors back into it.
type Client struct {
	manager     *Manager
	rateLimiter *RateLimiter
	log         *logger.Logger
}

// NewClient creates a telegram client wrapper using the Manager. A nil
// limiter means DefaultRateLimiter.
func NewClient(manager *Manager, limiter *RateLimiter) *Client {
	if limiter == nil {
		limiter = DefaultRateLimiter()
	}
	return &Client{
		manager:     manager,
		rateLimiter: limiter,
		log:         logger.Get().Named("telegram"),
	}
}

// Close stops the client via the manager.
func (c *Client) Close() {
	if c.manager != nil {
		c.manager.Stop()
	}
}

// GetStatus returns the current status of the telegram client.
func (c *Client) GetStatus() Status {
	return c.manager.GetStatus()
}

// StartQR starts the QR login flow by proxying to the manager.
func (c *Client) StartQR(ctx context.Context, onQRCode func(url string)) error {
	return c.manager.StartQR(ctx, onQRCode)
}

// IsQRInProgress returns true if a QR login flow is currently in progress.
func (c *Client) IsQRInProgress() bool {
	return c.manager.IsQRInProgress()
}

// CancelQR cancels any ongoing QR login flow.
func (c *Client) CancelQR() {
	c.manager.CancelQR()
}

// RateLimiter exposes the shared limiter.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

func (c *Client) getProto() (*gotgproto.Client, error) {
	proto := c.manager.GetClient()
	if proto == nil {
		return nil, ErrNotAuthorized
	}
	return proto, nil
}

// API returns the raw tg.Client for direct API calls.
func (c *Client) API() (*tg.Client, error) {
	proto, err := c.getProto()
	if err != nil {
		return nil, err
	}
	return proto.API(), nil
}

// invoke waits for the limiter, runs fn and records flood waits.
func (c *Client) invoke(ctx context.Context, op string, fn func(api *tg.Client) error) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	api, err := c.API()
	if err != nil {
		return err
	}

	err = fn(api)
	if err == nil {
		return nil
	}
	if kind, wait := ClassifyError(err); kind == KindFloodWait {
		c.log.Warn().Str("op", op).Dur("wait", wait).Msg("telegram: FLOOD_WAIT detected, pausing requests")
		c.rateLimiter.SetFloodWait(wait)
	}
	return err
}

// SearchChats runs a global search and returns public channels and
// supergroups matching the query.
func (c *Client) SearchChats(ctx context.Context, query string, limit int) ([]Channel, error) {
	var found *tg.ContactsFound
	err := c.invoke(ctx, "contacts.search", func(api *tg.Client) error {
		var err error
		found, err = api.ContactsSearch(ctx, &tg.ContactsSearchRequest{Q: query, Limit: limit})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	chats := publicChannels(found.Chats)
	c.log.Debug().Str("query", query).Int("found", len(chats)).Msg("telegram: search done")
	return chats, nil
}

// ResolveChannel resolves a channel username (with or without @) and fills
// the participants count from the full channel info.
func (c *Client) ResolveChannel(ctx context.Context, username string) (*Channel, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")

	var resolved *tg.ContactsResolvedPeer
	err := c.invoke(ctx, "contacts.resolveUsername", func(api *tg.Client) error {
		var err error
		resolved, err = api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
		return err
	})
	if err != nil {
		if kind, _ := ClassifyError(err); kind == KindUserInvalid {
			return nil, fmt.Errorf("resolve %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("resolve %s: %w", username, err)
	}

	ch, err := channelFromResolved(resolved)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", username, err)
	}

	err = c.invoke(ctx, "channels.getFullChannel", func(api *tg.Client) error {
		full, err := api.ChannelsGetFullChannel(ctx, &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash})
		if err != nil {
			return err
		}
		if cf, ok := full.FullChat.(*tg.ChannelFull); ok {
			if count, ok := cf.GetParticipantsCount(); ok {
				ch.ParticipantsCount = count
			}
		}
		return nil
	})
	if err != nil {
		// the channel itself resolved, a missing count is not fatal
		c.log.Warn().Err(err).Str("username", username).Msg("telegram: get full channel failed")
	}

	c.log.Info().Str("username", username).Int64("channel_id", ch.ID).Int("participants", ch.ParticipantsCount).Msg("telegram: channel resolved")
	return ch, nil
}

// GetParticipants fetches one page of channel members.
func (c *Client) GetParticipants(ctx context.Context, ch *Channel, filter ParticipantFilter, offset, limit int) (ParticipantsPage, error) {
	var resp tg.ChannelsChannelParticipantsClass
	err := c.invoke(ctx, "channels.getParticipants", func(api *tg.Client) error {
		var err error
		resp, err = api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
			Filter:  participantsFilter(filter),
			Offset:  offset,
			Limit:   limit,
		})
		return err
	})
	if err != nil {
		return ParticipantsPage{}, fmt.Errorf("get participants of %s (%s, offset %d): %w", ch.Username, filter, offset, err)
	}
	return participantsFromResponse(resp), nil
}

// ResolveUser resolves a username to a user peer.
func (c *Client) ResolveUser(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(username, "@")

	var resolved *tg.ContactsResolvedPeer
	err := c.invoke(ctx, "contacts.resolveUsername", func(api *tg.Client) error {
		var err error
		resolved, err = api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve user %s: %w", username, err)
	}

	u, err := userFromResolved(resolved)
	if err != nil {
		return nil, fmt.Errorf("resolve user %s: %w", username, err)
	}
	return u, nil
}

// InviteToChannel adds a user to a channel.
func (c *Client) InviteToChannel(ctx context.Context, ch *Channel, user *User) (InviteResult, error) {
	var invited *tg.MessagesInvitedUsers
	err := c.invoke(ctx, "channels.inviteToChannel", func(api *tg.Client) error {
		var err error
		invited, err = api.ChannelsInviteToChannel(ctx, &tg.ChannelsInviteToChannelRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
			Users:   []tg.InputUserClass{&tg.InputUser{UserID: user.ID, AccessHash: user.AccessHash}},
		})
		return err
	})
	if err != nil {
		return InviteResult{}, fmt.Errorf("invite %s to %s: %w", user.Username, ch.Username, err)
	}

	return InviteResult{MissingInvitee: len(invited.MissingInvitees) > 0}, nil
}
