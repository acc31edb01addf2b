package inviter

import (
	"context"
	"fmt"

	"github.com/blockedby/groupinviter/internal/repository"
)

// Quota is how many invites are still allowed today for a group and user.
type Quota struct {
	GroupToday int `json:"group_today"`
	GroupLimit int `json:"group_limit"`
	// UserLimit is 0 for campaigns started by operator tooling.
	UserToday int `json:"user_today"`
	UserLimit int `json:"user_limit"`
	Remaining int `json:"remaining"`
}

// Quota computes the remaining invites for groupID started by userID. It is
// the smaller of the group's daily limit and the user's tier limit, minus
// what was already used today, and never negative.
func (s *Service) Quota(ctx context.Context, groupID, userID int64) (Quota, error) {
	dayStart := repository.StartOfDay(s.now())

	groupToday, err := s.invites.CountForGroupSince(ctx, groupID, dayStart)
	if err != nil {
		return Quota{}, err
	}
	q := Quota{
		GroupToday: int(groupToday),
		GroupLimit: s.policy.DailyLimit,
	}
	q.Remaining = q.GroupLimit - q.GroupToday

	if userID != 0 {
		limits := s.policy.Tiers.Free
		if s.users != nil {
			u, err := s.users.Get(ctx, userID)
			if err != nil {
				return Quota{}, fmt.Errorf("get user: %w", err)
			}
			if u != nil {
				limits = s.policy.Tiers.For(u.IsPremium).Effective(u.ParseLimit, u.InviteLimit)
			}
		}
		userToday, err := s.invites.CountByUserSince(ctx, userID, dayStart)
		if err != nil {
			return Quota{}, err
		}
		q.UserToday = int(userToday)
		q.UserLimit = limits.InvitesPerDay
		q.Remaining = min(q.Remaining, q.UserLimit-q.UserToday)
	}

	q.Remaining = max(q.Remaining, 0)
	return q, nil
}
