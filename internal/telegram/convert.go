package telegram

import (
	"github.com/gotd/td/tg"
)

// channelFromChat converts a chat returned by the API to a Channel. Only
// channels and supergroups qualify; basic groups can not be resolved by
// username anyway.
func channelFromChat(chat tg.ChatClass) (*Channel, bool) {
	ch, ok := chat.(*tg.Channel)
	if !ok {
		return nil, false
	}
	count, _ := ch.GetParticipantsCount()
	return &Channel{
		ID:                ch.ID,
		AccessHash:        ch.AccessHash,
		Username:          ch.Username,
		Title:             ch.Title,
		ParticipantsCount: count,
		Megagroup:         ch.Megagroup,
	}, true
}

// publicChannels returns the channels with a username from a search result,
// deduplicated by id and in server order.
func publicChannels(chats []tg.ChatClass) []Channel {
	seen := make(map[int64]struct{}, len(chats))
	var out []Channel
	for _, chat := range chats {
		ch, ok := channelFromChat(chat)
		if !ok || ch.Username == "" {
			continue
		}
		if _, dup := seen[ch.ID]; dup {
			continue
		}
		seen[ch.ID] = struct{}{}
		out = append(out, *ch)
	}
	return out
}

// channelFromResolved picks the channel a resolved username points at.
func channelFromResolved(res *tg.ContactsResolvedPeer) (*Channel, error) {
	peer, ok := res.Peer.(*tg.PeerChannel)
	if !ok {
		if _, isUser := res.Peer.(*tg.PeerUser); isUser {
			return nil, ErrNotChannel
		}
		return nil, ErrNotFound
	}
	for _, chat := range res.Chats {
		if ch, ok := channelFromChat(chat); ok && ch.ID == peer.ChannelID {
			return ch, nil
		}
	}
	return nil, ErrNotFound
}

// userFromResolved picks the user a resolved username points at.
func userFromResolved(res *tg.ContactsResolvedPeer) (*User, error) {
	peer, ok := res.Peer.(*tg.PeerUser)
	if !ok {
		return nil, ErrNotUser
	}
	for _, u := range res.Users {
		user, ok := u.(*tg.User)
		if ok && user.ID == peer.UserID {
			return &User{ID: user.ID, AccessHash: user.AccessHash, Username: user.Username, Bot: user.Bot}, nil
		}
	}
	return nil, ErrNotFound
}

// participantsFromResponse flattens a participants page, marking admins and
// creators using the participant records.
func participantsFromResponse(resp tg.ChannelsChannelParticipantsClass) ParticipantsPage {
	page, ok := resp.(*tg.ChannelsChannelParticipants)
	if !ok {
		return ParticipantsPage{}
	}

	admins := make(map[int64]bool)
	for _, p := range page.Participants {
		switch v := p.(type) {
		case *tg.ChannelParticipantAdmin:
			admins[v.UserID] = true
		case *tg.ChannelParticipantCreator:
			admins[v.UserID] = true
		}
	}

	out := ParticipantsPage{Total: page.Count}
	for _, u := range page.Users {
		user, ok := u.(*tg.User)
		if !ok {
			continue
		}
		out.Participants = append(out.Participants, Participant{
			UserID:     user.ID,
			AccessHash: user.AccessHash,
			Username:   user.Username,
			FirstName:  user.FirstName,
			LastName:   user.LastName,
			Bot:        user.Bot,
			Deleted:    user.Deleted,
			Admin:      admins[user.ID],
		})
	}
	return out
}

func participantsFilter(f ParticipantFilter) tg.ChannelParticipantsFilterClass {
	if f == FilterRecent {
		return &tg.ChannelParticipantsRecent{}
	}
	return &tg.ChannelParticipantsSearch{Q: ""}
}
