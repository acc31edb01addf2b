package handlers

import (
	"net/http"
	"time"

	"github.com/blockedby/groupinviter/internal/inviter"
	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/telegram"
)

type floodWaiter interface {
	RateLimiter() *telegram.RateLimiter
}

// StatsHandler serves the dashboard numbers together with what the bot is
// doing right now.
type StatsHandler struct {
	repo      StatsRepository
	account   TelegramClient
	campaigns CampaignController
	now       func() time.Time
}

// NewStatsHandler creates a StatsHandler. account and campaigns may be nil.
func NewStatsHandler(repo StatsRepository, account TelegramClient, campaigns CampaignController) *StatsHandler {
	return &StatsHandler{repo: repo, account: account, campaigns: campaigns, now: time.Now}
}

type statsResponse struct {
	*repository.DashboardStats
	Account          telegram.Status   `json:"account,omitempty"`
	FloodWaitSeconds int               `json:"flood_wait_seconds"`
	Campaign         *inviter.Campaign `json:"campaign"`
}

// GetStats returns today's totals, counted from UTC midnight.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats(r.Context(), repository.StartOfDay(h.now()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := statsResponse{DashboardStats: stats}
	if h.account != nil {
		resp.Account = h.account.GetStatus()
		if fw, ok := h.account.(floodWaiter); ok && fw.RateLimiter() != nil {
			resp.FloodWaitSeconds = int(fw.RateLimiter().FloodWaitRemaining().Seconds())
		}
	}
	if h.campaigns != nil {
		resp.Campaign = h.campaigns.Current()
	}
	respondJSON(w, http.StatusOK, resp)
}
