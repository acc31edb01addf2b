package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/blockedby/groupinviter/internal/database"
	"github.com/blockedby/groupinviter/internal/models"
)

// GroupsRepository handles groups table operations.
type GroupsRepository struct {
	db *gorm.DB
}

// NewGroupsRepository creates a new groups repository.
func NewGroupsRepository(db *gorm.DB) *GroupsRepository {
	return &GroupsRepository{db: db}
}

// Create stores a group. When the username is already tracked, g is replaced
// with the stored row and created is false.
func (r *GroupsRepository) Create(ctx context.Context, g *models.Group) (created bool, err error) {
	err = r.db.WithContext(ctx).Create(g).Error
	if err == nil {
		return true, nil
	}
	if !database.IsUniqueViolation(err) {
		return false, fmt.Errorf("create group: %w", err)
	}

	existing, err := r.GetByUsername(ctx, g.Username)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, fmt.Errorf("create group %s: conflict but no row", g.Username)
	}
	*g = *existing
	return false, nil
}

// GetByID returns a group by ID.
func (r *GroupsRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	var g models.Group
	err := r.db.WithContext(ctx).First(&g, "id = ?", id).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group %d: %w", id, err)
	}
	return &g, nil
}

// GetByUsername looks a group up ignoring case, as telegram usernames are.
func (r *GroupsRepository) GetByUsername(ctx context.Context, username string) (*models.Group, error) {
	var g models.Group
	err := r.db.WithContext(ctx).First(&g, "LOWER(username) = LOWER(?)", username).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group %s: %w", username, err)
	}
	return &g, nil
}

// List returns all groups ordered by name.
func (r *GroupsRepository) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).Order("name, id").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// ListWithStats returns every group with its contact and invite counters.
// InvitedToday counts invite rows touched since dayStart.
func (r *GroupsRepository) ListWithStats(ctx context.Context, dayStart time.Time) ([]models.GroupStats, error) {
	var out []models.GroupStats
	err := r.db.WithContext(ctx).Raw(`
		SELECT g.id, g.name, g.username, g.tg_channel_id, g.tg_access_hash, g.added_by, g.created_at,
			(SELECT COUNT(*) FROM contacts c WHERE c.group_id = g.id) AS contacts,
			(SELECT COUNT(*) FROM invites i WHERE i.group_id = g.id AND i.status IN ('success', 'already_member')) AS invited,
			(SELECT COUNT(*) FROM invites i WHERE i.group_id = g.id AND i.status = 'declined') AS declined,
			(SELECT COUNT(*) FROM contacts c
				LEFT JOIN invites i ON i.group_id = c.group_id AND i.username = c.username
				WHERE c.group_id = g.id AND i.username IS NULL) AS pending,
			(SELECT COUNT(*) FROM invites i WHERE i.group_id = g.id AND i.updated_at >= ?) AS invited_today
		FROM groups g
		ORDER BY g.name, g.id
	`, dayStart.UTC()).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list group stats: %w", err)
	}
	return out, nil
}

// Delete removes groups with their contacts and invites and returns the
// number of groups deleted.
func (r *GroupsRepository) Delete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id IN ?", ids).Delete(&models.Invite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id IN ?", ids).Delete(&models.Contact{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Group{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete groups: %w", err)
	}
	return deleted, nil
}

// UpdateTelegramInfo caches the resolved channel identity and title.
func (r *GroupsRepository) UpdateTelegramInfo(ctx context.Context, id, channelID, accessHash int64, title string) error {
	updates := map[string]any{
		"tg_channel_id":  channelID,
		"tg_access_hash": accessHash,
	}
	if title != "" {
		updates["name"] = title
	}
	err := r.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("update group %d telegram info: %w", id, err)
	}
	return nil
}

// CountAddedSince counts groups a user added since the given time.
func (r *GroupsRepository) CountAddedSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Group{}).
		Where("added_by = ? AND created_at >= ?", userID, since.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count groups added by %d: %w", userID, err)
	}
	return n, nil
}
