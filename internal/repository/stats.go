package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DashboardStats contains aggregated statistics for the ops API and CLI.
type DashboardStats struct {
	Groups          int64 `json:"groups"`
	Contacts        int64 `json:"contacts"`
	Users           int64 `json:"users"`
	InvitesTotal    int64 `json:"invites_total"`
	InvitesSuccess  int64 `json:"invites_success"`
	InvitesDeclined int64 `json:"invites_declined"`
	InvitesFailed   int64 `json:"invites_failed"`
	InvitesToday    int64 `json:"invites_today"`
}

// StatsRepository provides access to statistics data in the database.
type StatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats retrieves aggregated statistics.
func (r *StatsRepository) GetStats(ctx context.Context, dayStart time.Time) (*DashboardStats, error) {
	stats := &DashboardStats{}
	db := r.db.WithContext(ctx)

	err := db.Raw(`
		SELECT
			(SELECT COUNT(*) FROM groups),
			(SELECT COUNT(*) FROM contacts),
			(SELECT COUNT(*) FROM users)
	`).Row().Scan(&stats.Groups, &stats.Contacts, &stats.Users)
	if err != nil {
		return nil, fmt.Errorf("get table counts: %w", err)
	}

	err = db.Raw(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status IN ('success', 'already_member') THEN 1 END),
			COUNT(CASE WHEN status = 'declined' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END),
			COUNT(CASE WHEN updated_at >= ? THEN 1 END)
		FROM invites
	`, dayStart.UTC()).Row().Scan(
		&stats.InvitesTotal, &stats.InvitesSuccess, &stats.InvitesDeclined, &stats.InvitesFailed, &stats.InvitesToday,
	)
	if err != nil {
		return nil, fmt.Errorf("get invite stats: %w", err)
	}

	return stats, nil
}
