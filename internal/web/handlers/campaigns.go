package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blockedby/groupinviter/internal/inviter"
)

// CampaignsHandler exposes invite campaigns to operators.
type CampaignsHandler struct {
	campaigns CampaignController
	status    CampaignStatus
}

func NewCampaignsHandler(campaigns CampaignController, status CampaignStatus) *CampaignsHandler {
	return &CampaignsHandler{campaigns: campaigns, status: status}
}

// StartCampaignRequest is the body of POST /api/v1/campaigns.
type StartCampaignRequest struct {
	GroupID int64 `json:"group_id"`
	Limit   int   `json:"limit,omitempty"`
}

// Start handles POST /api/v1/campaigns
func (h *CampaignsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.GroupID <= 0 {
		respondError(w, http.StatusBadRequest, "group_id is required")
		return
	}
	if req.Limit < 0 {
		respondError(w, http.StatusBadRequest, "limit must be non-negative")
		return
	}

	c, err := h.campaigns.Start(r.Context(), inviter.StartOptions{GroupID: req.GroupID, Limit: req.Limit})
	if err != nil {
		if errors.Is(err, inviter.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, c)
}

// Current handles GET /api/v1/campaigns/current
func (h *CampaignsHandler) Current(w http.ResponseWriter, r *http.Request) {
	c := h.campaigns.Current()
	if c == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "idle"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "running",
		"campaign": c,
		"eta":      c.Progress.ETA().String(),
	})
}

// Stop handles DELETE /api/v1/campaigns/current
func (h *CampaignsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if !h.campaigns.Stop() {
		respondError(w, http.StatusNotFound, "no campaign is running")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "campaign stopped"})
}

// GroupStatus handles GET /api/v1/groups/{id}/invites
func (h *CampaignsHandler) GroupStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid group id")
		return
	}

	st, err := h.status.Status(r.Context(), id, 0)
	if err != nil {
		if errors.Is(err, inviter.ErrGroupNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}
