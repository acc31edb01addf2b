package handlers

import (
	"context"
	"time"

	"github.com/blockedby/groupinviter/internal/inviter"
	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/telegram"
)

// TelegramClient is the login side of the automation account.
type TelegramClient interface {
	StartQR(ctx context.Context, onQRCode func(url string)) error
	CancelQR()
	GetStatus() telegram.Status
	IsQRInProgress() bool
}

// StatsRepository aggregates dashboard numbers.
type StatsRepository interface {
	GetStats(ctx context.Context, dayStart time.Time) (*repository.DashboardStats, error)
}

// CampaignController starts and stops invite campaigns.
type CampaignController interface {
	Start(ctx context.Context, opts inviter.StartOptions) (*inviter.Campaign, error)
	Stop() bool
	Current() *inviter.Campaign
}

// CampaignStatus reports per-group invite progress.
type CampaignStatus interface {
	Status(ctx context.Context, groupID, userID int64) (*inviter.GroupStatus, error)
}
