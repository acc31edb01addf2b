package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blockedby/groupinviter/internal/models"
)

// UsersRepository handles users table operations.
type UsersRepository struct {
	db *gorm.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *gorm.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Touch registers a user on first contact and refreshes username and
// last_seen_at afterwards.
func (r *UsersRepository) Touch(ctx context.Context, userID int64, username string) error {
	now := time.Now().UTC()
	u := models.User{UserID: userID, Username: username, CreatedAt: now, LastSeenAt: now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "last_seen_at"}),
		}).
		Create(&u).Error
	if err != nil {
		return fmt.Errorf("touch user %d: %w", userID, err)
	}
	return nil
}

// Get returns a user by ID.
func (r *UsersRepository) Get(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, "user_id = ?", userID).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return &u, nil
}

// SetPremium grants or revokes premium, creating the user if needed so an
// admin can grant before the user ever talked to the bot.
func (r *UsersRepository) SetPremium(ctx context.Context, userID int64, premium bool) error {
	now := time.Now().UTC()
	u := models.User{UserID: userID, IsPremium: premium, CreatedAt: now, LastSeenAt: now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_premium"}),
		}).
		Create(&u).Error
	if err != nil {
		return fmt.Errorf("set premium for user %d: %w", userID, err)
	}
	return nil
}

// UpdateLimits stores a user's own parse and invite limits.
func (r *UsersRepository) UpdateLimits(ctx context.Context, userID int64, parseLimit, inviteLimit int) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"parse_limit": parseLimit, "invite_limit": inviteLimit})
	if res.Error != nil {
		return fmt.Errorf("update limits for user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update limits for user %d: %w", userID, gorm.ErrRecordNotFound)
	}
	return nil
}

// AdminStats counts users, premium users and users seen since dayStart.
func (r *UsersRepository) AdminStats(ctx context.Context, dayStart time.Time) (*models.AdminStats, error) {
	s := &models.AdminStats{}
	db := r.db.WithContext(ctx).Model(&models.User{})
	if err := db.Count(&s.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("is_premium = ?", true).Count(&s.PremiumUsers).Error; err != nil {
		return nil, fmt.Errorf("count premium users: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("last_seen_at >= ?", dayStart.UTC()).Count(&s.ActiveToday).Error; err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}
	return s, nil
}
