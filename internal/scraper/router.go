package scraper

import (
	"github.com/go-chi/chi/v5"
)

// Routes registers the scrape and group endpoints under an /api/v1 router.
func Routes(r chi.Router, h *Handler) {
	r.Post("/search", h.Search)

	r.Get("/groups", h.ListGroups)
	r.Post("/groups", h.AddGroup)

	r.Post("/scrape", h.StartScrape)
	r.Delete("/scrape/current", h.StopScrape)
	r.Get("/scrape/status", h.Status)
}
