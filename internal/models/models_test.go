package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInviteStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status InviteStatus
		want   bool
	}{
		{InviteStatusSuccess, true},
		{InviteStatusAlreadyMember, true},
		{InviteStatusSkipped, true},
		{InviteStatusDeclined, false},
		{InviteStatusFailed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsTerminal(), string(tt.status))
	}
}

func TestGroup_Link(t *testing.T) {
	assert.Equal(t, "https://t.me/golang_ru", Group{Username: "golang_ru"}.Link())
}
