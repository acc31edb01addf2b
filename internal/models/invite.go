package models

import "time"

// InviteStatus is the outcome of the last invitation attempt.
type InviteStatus string

// InviteStatus constants define the recorded invitation outcomes.
const (
	// InviteStatusSuccess means the user was added to the group.
	InviteStatusSuccess InviteStatus = "success"
	// InviteStatusAlreadyMember means the user was already a participant.
	InviteStatusAlreadyMember InviteStatus = "already_member"
	// InviteStatusDeclined means privacy settings refused the invite. Retried
	// after the decline wait.
	InviteStatusDeclined InviteStatus = "declined"
	// InviteStatusFailed is retried by later campaigns up to the attempt limit.
	InviteStatusFailed InviteStatus = "failed"
	// InviteStatusSkipped is terminal: the username does not resolve to a user.
	InviteStatusSkipped InviteStatus = "skipped"
)

// IsTerminal reports whether a contact with this status is never retried.
func (s InviteStatus) IsTerminal() bool {
	switch s {
	case InviteStatusSuccess, InviteStatusAlreadyMember, InviteStatusSkipped:
		return true
	}
	return false
}

// Invite records the latest invitation attempt of a username into a group.
// (username, group_id) is unique, so each contact is tracked once per group.
type Invite struct {
	Username  string       `json:"username" gorm:"column:username;primaryKey"`
	GroupID   int64        `json:"group_id" gorm:"column:group_id;primaryKey;autoIncrement:false"`
	Status    InviteStatus `json:"status" gorm:"column:status"`
	Error     string       `json:"error,omitempty" gorm:"column:error"`
	Attempts  int          `json:"attempts" gorm:"column:attempts"`
	InvitedBy int64        `json:"invited_by" gorm:"column:invited_by"`
	CreatedAt time.Time    `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"column:updated_at"`
}

func (Invite) TableName() string { return "invites" }

// InviteSummary aggregates invites of one group for the status screen.
type InviteSummary struct {
	GroupID        int64 `json:"group_id"`
	Contacts       int64 `json:"contacts"`
	Invited        int64 `json:"invited"`
	AlreadyMember  int64 `json:"already_member"`
	Declined       int64 `json:"declined"`
	RecentDeclined int64 `json:"recent_declined"`
	Failed         int64 `json:"failed"`
	Skipped        int64 `json:"skipped"`
	NotInvited     int64 `json:"not_invited"`
	Today          int64 `json:"today"`
}
