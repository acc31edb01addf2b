package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicChannels(t *testing.T) {
	chats := []tg.ChatClass{
		&tg.Channel{ID: 1, AccessHash: 11, Username: "golang", Title: "Go"},
		&tg.Channel{ID: 2, Title: "private, no username"},
		&tg.Chat{ID: 3, Title: "basic group"},
		&tg.Channel{ID: 1, Username: "golang", Title: "Go duplicate"},
		&tg.Channel{ID: 4, Username: "rustlang", Title: "Rust", Megagroup: true},
	}

	got := publicChannels(chats)
	require.Len(t, got, 2)
	assert.Equal(t, Channel{ID: 1, AccessHash: 11, Username: "golang", Title: "Go"}, got[0])
	assert.Equal(t, "rustlang", got[1].Username)
	assert.True(t, got[1].Megagroup)
}

func TestChannelFromResolved(t *testing.T) {
	res := &tg.ContactsResolvedPeer{
		Peer: &tg.PeerChannel{ChannelID: 7},
		Chats: []tg.ChatClass{
			&tg.Channel{ID: 6, Username: "other"},
			&tg.Channel{ID: 7, AccessHash: 77, Username: "target", Title: "Target"},
		},
	}
	ch, err := channelFromResolved(res)
	require.NoError(t, err)
	assert.Equal(t, int64(77), ch.AccessHash)
	assert.Equal(t, "Target", ch.Title)

	_, err = channelFromResolved(&tg.ContactsResolvedPeer{Peer: &tg.PeerUser{UserID: 1}})
	assert.ErrorIs(t, err, ErrNotChannel)

	_, err = channelFromResolved(&tg.ContactsResolvedPeer{Peer: &tg.PeerChannel{ChannelID: 9}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserFromResolved(t *testing.T) {
	res := &tg.ContactsResolvedPeer{
		Peer:  &tg.PeerUser{UserID: 5},
		Users: []tg.UserClass{&tg.User{ID: 5, AccessHash: 55, Username: "alice"}},
	}
	u, err := userFromResolved(res)
	require.NoError(t, err)
	assert.Equal(t, &User{ID: 5, AccessHash: 55, Username: "alice"}, u)

	_, err = userFromResolved(&tg.ContactsResolvedPeer{Peer: &tg.PeerChannel{ChannelID: 1}})
	assert.ErrorIs(t, err, ErrNotUser)
}

func TestParticipantsFromResponse(t *testing.T) {
	resp := &tg.ChannelsChannelParticipants{
		Count: 120,
		Participants: []tg.ChannelParticipantClass{
			&tg.ChannelParticipant{UserID: 1},
			&tg.ChannelParticipantAdmin{UserID: 2},
			&tg.ChannelParticipantCreator{UserID: 3},
			&tg.ChannelParticipant{UserID: 4},
		},
		Users: []tg.UserClass{
			&tg.User{ID: 1, Username: "member"},
			&tg.User{ID: 2, Username: "admin"},
			&tg.User{ID: 3, Username: "owner"},
			&tg.User{ID: 4, Username: "helper_bot", Bot: true},
			&tg.UserEmpty{ID: 5},
		},
	}

	page := participantsFromResponse(resp)
	assert.Equal(t, 120, page.Total)
	require.Len(t, page.Participants, 4)
	assert.False(t, page.Participants[0].Admin)
	assert.True(t, page.Participants[1].Admin)
	assert.True(t, page.Participants[2].Admin)
	assert.True(t, page.Participants[3].Bot)

	empty := participantsFromResponse(&tg.ChannelsChannelParticipantsNotModified{})
	assert.Empty(t, empty.Participants)
}

func TestParticipantsFilter(t *testing.T) {
	assert.IsType(t, &tg.ChannelParticipantsRecent{}, participantsFilter(FilterRecent))
	assert.IsType(t, &tg.ChannelParticipantsSearch{}, participantsFilter(FilterSearch))
}
