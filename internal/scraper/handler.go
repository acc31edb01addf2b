package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/telegram"
)

// GroupService is the part of Service the HTTP handler calls.
type GroupService interface {
	Search(ctx context.Context, keywords []string) ([]telegram.Channel, error)
	AddGroup(ctx context.Context, input string, addedBy int64) (*models.Group, bool, error)
}

// GroupLister lists tracked groups with their counters.
type GroupLister interface {
	ListWithStats(ctx context.Context, dayStart time.Time) ([]models.GroupStats, error)
}

// Handler serves the scrape and group endpoints of the ops API.
type Handler struct {
	manager *ScrapeManager
	service GroupService
	groups  GroupLister
}

func NewHandler(manager *ScrapeManager, service GroupService, groups GroupLister) *Handler {
	return &Handler{
		manager: manager,
		service: service,
		groups:  groups,
	}
}

// StartScrapeRequest is the body of POST /api/v1/scrape.
type StartScrapeRequest struct {
	GroupID int64 `json:"group_id"`
}

// StartScrape handles POST /api/v1/scrape
func (h *Handler) StartScrape(w http.ResponseWriter, r *http.Request) {
	var req StartScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.GroupID <= 0 {
		respondError(w, http.StatusBadRequest, "group_id is required")
		return
	}

	job, err := h.manager.Start(r.Context(), ScrapeOptions{GroupID: req.GroupID})
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"status": "running",
		"job":    job,
	})
}

// StopScrape handles DELETE /api/v1/scrape/current
func (h *Handler) StopScrape(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Stop() {
		respondJSON(w, http.StatusOK, map[string]string{"message": "nothing to stop"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "scrape job stopping",
	})
}

// Status handles GET /api/v1/scrape/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	current := h.manager.Current()
	if current == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "idle"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "running",
		"job":    current,
	})
}

// SearchRequest is the body of POST /api/v1/search. Query is split like chat
// input when Keywords is empty.
type SearchRequest struct {
	Keywords []string `json:"keywords"`
	Query    string   `json:"query"`
}

// Search handles POST /api/v1/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = ParseKeywords(req.Query)
	}
	if len(keywords) == 0 {
		respondError(w, http.StatusBadRequest, "keywords are required")
		return
	}

	chats, err := h.service.Search(r.Context(), keywords)
	if err != nil {
		respondTelegramError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, chats)
}

// ListGroups handles GET /api/v1/groups
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.ListWithStats(r.Context(), repository.StartOfDay(time.Now()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// AddGroupRequest is the body of POST /api/v1/groups.
type AddGroupRequest struct {
	Link string `json:"link"`
}

// AddGroup handles POST /api/v1/groups
func (h *Handler) AddGroup(w http.ResponseWriter, r *http.Request) {
	var req AddGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Link) == "" {
		respondError(w, http.StatusBadRequest, "link is required")
		return
	}

	g, created, err := h.service.AddGroup(r.Context(), req.Link, 0)
	if err != nil {
		respondTelegramError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, g)
}

func respondTelegramError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, telegram.ErrInviteLink), errors.Is(err, telegram.ErrInvalidGroupLink):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, telegram.ErrNotFound), errors.Is(err, telegram.ErrNotChannel):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, telegram.ErrNotAuthorized):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrGroupDailyLimit):
		respondError(w, http.StatusTooManyRequests, err.Error())
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
