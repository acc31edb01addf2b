package inviter

import (
	"context"

	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/repository"
)

// GroupStatus backs the invite status screen of a group.
type GroupStatus struct {
	Group   *models.Group         `json:"group"`
	Summary *models.InviteSummary `json:"summary"`
	Quota   Quota                 `json:"quota"`
	// Pending counts contacts a campaign would pick now, ignoring quotas.
	Pending int64 `json:"pending"`
}

// Status reports today's usage, the remaining quota and the invite totals of
// a group. userID selects whose tier quota is shown; 0 shows the group's.
func (s *Service) Status(ctx context.Context, groupID, userID int64) (*GroupStatus, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	now := s.now()
	summary, err := s.invites.Summary(ctx, groupID, now.Add(-s.policy.DeclineWait), repository.StartOfDay(now))
	if err != nil {
		return nil, err
	}
	quota, err := s.Quota(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	pending, err := s.invites.CountPending(ctx, groupID, s.pendingFilter(0))
	if err != nil {
		return nil, err
	}

	return &GroupStatus{
		Group:   group,
		Summary: summary,
		Quota:   quota,
		Pending: pending,
	}, nil
}

// PendingCount returns how many contacts of a group are due for an invite.
func (s *Service) PendingCount(ctx context.Context, groupID int64) (int64, error) {
	return s.invites.CountPending(ctx, groupID, s.pendingFilter(0))
}
