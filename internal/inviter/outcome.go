package inviter

import (
	"errors"
	"fmt"
	"time"

	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/telegram"
)

// Outcome is what the campaign does after one invitation attempt.
type Outcome struct {
	// Status is recorded for the contact. Empty when nothing is recorded.
	Status models.InviteStatus
	// Retry asks to invite the same contact again after FloodWait.
	Retry     bool
	FloodWait time.Duration
	// Abort stops the whole campaign; the contact stays pending.
	Abort  bool
	Reason string
	Kind   telegram.ErrorKind
}

// Classify turns the result of InviteToChannel (or of resolving the user
// before it) into an Outcome.
func (p Policy) Classify(err error, res telegram.InviteResult) Outcome {
	if err == nil {
		if res.MissingInvitee {
			return Outcome{Status: models.InviteStatusDeclined, Reason: "privacy settings", Kind: telegram.KindPrivacy}
		}
		return Outcome{Status: models.InviteStatusSuccess}
	}

	if errors.Is(err, telegram.ErrNotAuthorized) {
		return Outcome{Abort: true, Reason: err.Error(), Kind: telegram.KindChatForbidden}
	}

	kind, wait := telegram.ClassifyError(err)
	out := Outcome{Kind: kind, Reason: err.Error()}

	switch kind {
	case telegram.KindFloodWait:
		out.FloodWait = wait
		if wait <= p.MaxFloodWait {
			out.Retry = true
		} else {
			out.Abort = true
			out.Reason = fmt.Sprintf("flood wait %s exceeds %s", wait, p.MaxFloodWait)
		}
	case telegram.KindCanceled:
		out.Abort = true
	case telegram.KindPeerFlood, telegram.KindChatForbidden:
		out.Abort = true
	case telegram.KindPrivacy, telegram.KindNotMutual:
		out.Status = models.InviteStatusDeclined
	case telegram.KindAlreadyParticipant:
		out.Status = models.InviteStatusAlreadyMember
	case telegram.KindUserInvalid:
		out.Status = models.InviteStatusSkipped
	default:
		// restricted users, exhausted transient retries, unknown RPC errors
		out.Status = models.InviteStatusFailed
	}
	return out
}
