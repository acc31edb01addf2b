package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blockedby/groupinviter/internal/models"
)

// PendingFilter selects the contacts a campaign may invite.
type PendingFilter struct {
	Limit int
	// failed invites are retried while attempts stay below this
	MaxAttempts int
	// declined invites are retried once they are older than this
	DeclinedBefore time.Time
}

// InvitesRepository handles invites table operations.
type InvitesRepository struct {
	db *gorm.DB
}

// NewInvitesRepository creates a new invites repository.
func NewInvitesRepository(db *gorm.DB) *InvitesRepository {
	return &InvitesRepository{db: db}
}

// Pending returns usernames of a group that are due for an invitation: never
// invited, failed with attempts left, or declined long enough ago.
func (r *InvitesRepository) Pending(ctx context.Context, groupID int64, f PendingFilter) ([]string, error) {
	var usernames []string
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.username
		FROM contacts c
		LEFT JOIN invites i ON i.group_id = c.group_id AND i.username = c.username
		WHERE c.group_id = ?
			AND (i.username IS NULL
				OR (i.status = ? AND i.attempts < ?)
				OR (i.status = ? AND i.updated_at < ?))
		ORDER BY c.id
		LIMIT ?
	`, groupID,
		models.InviteStatusFailed, f.MaxAttempts,
		models.InviteStatusDeclined, f.DeclinedBefore.UTC(),
		f.Limit,
	).Scan(&usernames).Error
	if err != nil {
		return nil, fmt.Errorf("pending invites for group %d: %w", groupID, err)
	}
	return usernames, nil
}

// Get returns the invite of a username into a group.
func (r *InvitesRepository) Get(ctx context.Context, username string, groupID int64) (*models.Invite, error) {
	var inv models.Invite
	err := r.db.WithContext(ctx).First(&inv, "username = ? AND group_id = ?", username, groupID).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invite %s/%d: %w", username, groupID, err)
	}
	return &inv, nil
}

// Record upserts the outcome of an attempt and bumps the attempt counter.
func (r *InvitesRepository) Record(ctx context.Context, inv *models.Invite) error {
	inv.Attempts = 1
	set := clause.AssignmentColumns([]string{"status", "error", "invited_by", "updated_at"})
	set = append(set, clause.Assignment{
		Column: clause.Column{Name: "attempts"},
		Value:  gorm.Expr("invites.attempts + 1"),
	})

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}, {Name: "group_id"}},
			DoUpdates: set,
		}).
		Create(inv).Error
	if err != nil {
		return fmt.Errorf("record invite %s/%d: %w", inv.Username, inv.GroupID, err)
	}
	return nil
}

// CountForGroupSince counts invite attempts into a group since the given time.
func (r *InvitesRepository) CountForGroupSince(ctx context.Context, groupID int64, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Invite{}).
		Where("group_id = ? AND updated_at >= ?", groupID, since.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count invites of group %d: %w", groupID, err)
	}
	return n, nil
}

// CountByUserSince counts invite attempts a bot user triggered since the given time.
func (r *InvitesRepository) CountByUserSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Invite{}).
		Where("invited_by = ? AND updated_at >= ?", userID, since.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count invites by user %d: %w", userID, err)
	}
	return n, nil
}

// Summary aggregates the invites of one group. RecentDeclined counts declines
// newer than declinedSince; Today counts attempts since dayStart.
func (r *InvitesRepository) Summary(ctx context.Context, groupID int64, declinedSince, dayStart time.Time) (*models.InviteSummary, error) {
	s := &models.InviteSummary{GroupID: groupID}

	var rows []struct {
		Status models.InviteStatus
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&models.Invite{}).
		Select("status, COUNT(*) AS n").
		Where("group_id = ?", groupID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summarise invites of group %d: %w", groupID, err)
	}

	var recorded int64
	for _, row := range rows {
		recorded += row.N
		switch row.Status {
		case models.InviteStatusSuccess:
			s.Invited = row.N
		case models.InviteStatusAlreadyMember:
			s.AlreadyMember = row.N
		case models.InviteStatusDeclined:
			s.Declined = row.N
		case models.InviteStatusFailed:
			s.Failed = row.N
		case models.InviteStatusSkipped:
			s.Skipped = row.N
		}
	}

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Contact{}).Where("group_id = ?", groupID).Count(&s.Contacts).Error; err != nil {
		return nil, fmt.Errorf("count contacts of group %d: %w", groupID, err)
	}
	if err := db.Model(&models.Invite{}).
		Where("group_id = ? AND status = ? AND updated_at >= ?", groupID, models.InviteStatusDeclined, declinedSince.UTC()).
		Count(&s.RecentDeclined).Error; err != nil {
		return nil, fmt.Errorf("count recent declines of group %d: %w", groupID, err)
	}
	if err := db.Model(&models.Invite{}).
		Where("group_id = ? AND updated_at >= ?", groupID, dayStart.UTC()).
		Count(&s.Today).Error; err != nil {
		return nil, fmt.Errorf("count today's invites of group %d: %w", groupID, err)
	}

	if s.NotInvited = s.Contacts - recorded; s.NotInvited < 0 {
		s.NotInvited = 0
	}
	return s, nil
}

// CountPending counts the contacts Pending would return without a limit.
func (r *InvitesRepository) CountPending(ctx context.Context, groupID int64, f PendingFilter) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM contacts c
		LEFT JOIN invites i ON i.group_id = c.group_id AND i.username = c.username
		WHERE c.group_id = ?
			AND (i.username IS NULL
				OR (i.status = ? AND i.attempts < ?)
				OR (i.status = ? AND i.updated_at < ?))
	`, groupID,
		models.InviteStatusFailed, f.MaxAttempts,
		models.InviteStatusDeclined, f.DeclinedBefore.UTC(),
	).Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count pending invites for group %d: %w", groupID, err)
	}
	return n, nil
}
