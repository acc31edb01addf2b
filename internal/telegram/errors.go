package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/gotd/td/tgerr"
)

var (
	// ErrNotAuthorized is returned while the automation account has no session.
	ErrNotAuthorized = errors.New("telegram client not authorized")
	// ErrNotFound is returned when a username does not resolve.
	ErrNotFound = errors.New("telegram: peer not found")
	// ErrNotChannel is returned when a username resolves to something other
	// than a channel or supergroup.
	ErrNotChannel = errors.New("telegram: not a channel")
	// ErrNotUser is returned when a username resolves to a chat instead of a user.
	ErrNotUser = errors.New("telegram: not a user")
)

// ErrorKind groups provider errors by how callers must react to them.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindFloodWait: wait the returned duration before the next call.
	KindFloodWait
	// KindPeerFlood: the account is restricted for spam, stop sending.
	KindPeerFlood
	// KindPrivacy: the user's privacy settings refuse invites.
	KindPrivacy
	// KindNotMutual: the user only accepts invites from mutual contacts.
	KindNotMutual
	// KindAlreadyParticipant: the user is already in the group.
	KindAlreadyParticipant
	// KindUserInvalid: the username does not resolve to an invitable user.
	KindUserInvalid
	// KindUserRestricted: the user cannot join (banned, kicked, too many channels, bot).
	KindUserRestricted
	// KindChatForbidden: the account may not invite into this group at all.
	KindChatForbidden
	// KindTransient: network or server side failure, safe to retry.
	KindTransient
	// KindCanceled: the caller's context ended.
	KindCanceled
	// KindUnknown: any other RPC error.
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindFloodWait:
		return "flood_wait"
	case KindPeerFlood:
		return "peer_flood"
	case KindPrivacy:
		return "privacy"
	case KindNotMutual:
		return "not_mutual"
	case KindAlreadyParticipant:
		return "already_participant"
	case KindUserInvalid:
		return "user_invalid"
	case KindUserRestricted:
		return "user_restricted"
	case KindChatForbidden:
		return "chat_forbidden"
	case KindTransient:
		return "transient"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

var rpcKinds = []struct {
	kind  ErrorKind
	types []string
}{
	{KindPeerFlood, []string{"PEER_FLOOD"}},
	{KindPrivacy, []string{"USER_PRIVACY_RESTRICTED"}},
	{KindNotMutual, []string{"USER_NOT_MUTUAL_CONTACT"}},
	{KindAlreadyParticipant, []string{"USER_ALREADY_PARTICIPANT"}},
	{KindUserInvalid, []string{"USERNAME_NOT_OCCUPIED", "USERNAME_INVALID", "USER_ID_INVALID", "INPUT_USER_DEACTIVATED", "USER_DELETED"}},
	{KindUserRestricted, []string{"USER_BANNED_IN_CHANNEL", "USER_KICKED", "USER_CHANNELS_TOO_MUCH", "USER_BOT", "BOT_GROUPS_BLOCKED", "USER_BLOCKED"}},
	{KindChatForbidden, []string{"CHAT_ADMIN_REQUIRED", "CHAT_WRITE_FORBIDDEN", "CHANNEL_PRIVATE", "CHANNEL_INVALID", "CHAT_INVALID", "USERS_TOO_MUCH", "CHAT_MEMBER_ADD_FAILED"}},
}

// ClassifyError maps an error from the MTProto client to an ErrorKind. For
// KindFloodWait the wait duration is returned as well.
func ClassifyError(err error) (ErrorKind, time.Duration) {
	if err == nil {
		return KindNone, 0
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled, 0
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return KindFloodWait, d
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotUser) {
		return KindUserInvalid, 0
	}
	if errors.Is(err, ErrNotChannel) {
		return KindChatForbidden, 0
	}

	rpcErr, ok := tgerr.As(err)
	if !ok {
		// not an RPC error: connection reset, timeout, engine shutdown
		return KindTransient, 0
	}
	for _, k := range rpcKinds {
		if tgerr.Is(err, k.types...) {
			return k.kind, 0
		}
	}
	if rpcErr.Code >= 500 || rpcErr.Type == "RPC_CALL_FAIL" || rpcErr.Type == "TIMEOUT" {
		return KindTransient, 0
	}
	return KindUnknown, 0
}
