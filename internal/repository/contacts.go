package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blockedby/groupinviter/internal/models"
)

const contactsBatchSize = 200

// ContactsRepository handles contacts table operations.
type ContactsRepository struct {
	db *gorm.DB
}

// NewContactsRepository creates a new contacts repository.
func NewContactsRepository(db *gorm.DB) *ContactsRepository {
	return &ContactsRepository{db: db}
}

// AddBatch inserts usernames for a group, ignoring ones already stored, and
// returns how many rows were new.
func (r *ContactsRepository) AddBatch(ctx context.Context, groupID int64, usernames []string) (int64, error) {
	seen := make(map[string]struct{}, len(usernames))
	rows := make([]models.Contact, 0, len(usernames))
	for _, u := range usernames {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		rows = append(rows, models.Contact{GroupID: groupID, Username: u})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "username"}},
			DoNothing: true,
		}).
		CreateInBatches(&rows, contactsBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("add contacts to group %d: %w", groupID, res.Error)
	}
	return res.RowsAffected, nil
}

// CountByGroup returns the number of contacts scraped for a group.
func (r *ContactsRepository) CountByGroup(ctx context.Context, groupID int64) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Contact{}).Where("group_id = ?", groupID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count contacts of group %d: %w", groupID, err)
	}
	return n, nil
}

// ListByGroup returns up to limit contacts of a group in scrape order.
func (r *ContactsRepository) ListByGroup(ctx context.Context, groupID int64, limit int) ([]models.Contact, error) {
	var out []models.Contact
	q := r.db.WithContext(ctx).Where("group_id = ?", groupID).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list contacts of group %d: %w", groupID, err)
	}
	return out, nil
}
