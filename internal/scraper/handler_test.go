package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/telegram"
)

type stubGroupService struct {
	keywords []string
	chats    []telegram.Channel
	err      error
	added    *models.Group
	created  bool
}

func (s *stubGroupService) Search(_ context.Context, keywords []string) ([]telegram.Channel, error) {
	s.keywords = keywords
	return s.chats, s.err
}

func (s *stubGroupService) AddGroup(_ context.Context, input string, _ int64) (*models.Group, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return s.added, s.created, nil
}

type stubLister struct{ groups []models.GroupStats }

func (l stubLister) ListWithStats(context.Context, time.Time) ([]models.GroupStats, error) {
	return l.groups, nil
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) { Routes(r, h) })
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_StartScrape(t *testing.T) {
	s := &blockingScraper{started: make(chan ScrapeRequest, 1)}
	m := NewScrapeManager(s)
	defer m.Stop()
	router := newTestRouter(NewHandler(m, &stubGroupService{}, stubLister{}))

	rec := do(t, router, http.MethodPost, "/api/v1/scrape", `{"group_id": 3}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	<-s.started

	rec = do(t, router, http.MethodPost, "/api/v1/scrape", `{"group_id": 4}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/scrape/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"running"`)

	rec = do(t, router, http.MethodDelete, "/api/v1/scrape/current", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stopping")
	require.NoError(t, m.Wait(context.Background()))

	rec = do(t, router, http.MethodGet, "/api/v1/scrape/status", "")
	assert.Contains(t, rec.Body.String(), `"status":"idle"`)
}

func TestHandler_StartScrape_BadRequest(t *testing.T) {
	router := newTestRouter(NewHandler(NewScrapeManager(nil), &stubGroupService{}, stubLister{}))

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/v1/scrape", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/v1/scrape", `{}`).Code)
}

func TestHandler_Search(t *testing.T) {
	svc := &stubGroupService{chats: []telegram.Channel{{ID: 1, Username: "gophers"}}}
	router := newTestRouter(NewHandler(NewScrapeManager(nil), svc, stubLister{}))

	rec := do(t, router, http.MethodPost, "/api/v1/search", `{"query": "go, rust"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"go", "rust"}, svc.keywords)

	var chats []telegram.Channel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chats))
	assert.Equal(t, "gophers", chats[0].Username)

	rec = do(t, router, http.MethodPost, "/api/v1/search", `{"query": " , "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.err = telegram.ErrNotAuthorized
	rec = do(t, router, http.MethodPost, "/api/v1/search", `{"keywords": ["go"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_AddGroup(t *testing.T) {
	svc := &stubGroupService{added: &models.Group{ID: 1, Username: "gophers"}, created: true}
	router := newTestRouter(NewHandler(NewScrapeManager(nil), svc, stubLister{}))

	rec := do(t, router, http.MethodPost, "/api/v1/groups", `{"link": "t.me/gophers"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	svc.created = false
	rec = do(t, router, http.MethodPost, "/api/v1/groups", `{"link": "t.me/gophers"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/groups", `{"link": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.err = telegram.ErrInviteLink
	rec = do(t, router, http.MethodPost, "/api/v1/groups", `{"link": "t.me/+abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.err = ErrGroupDailyLimit
	rec = do(t, router, http.MethodPost, "/api/v1/groups", `{"link": "t.me/other_group"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHandler_ListGroups(t *testing.T) {
	lister := stubLister{groups: []models.GroupStats{
		{Group: models.Group{ID: 1, Username: "gophers"}, Contacts: 10},
	}}
	router := newTestRouter(NewHandler(NewScrapeManager(nil), &stubGroupService{}, lister))

	rec := do(t, router, http.MethodGet, "/api/v1/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"gophers"`)
}
