package scraper

import (
	"context"
	"fmt"

	"github.com/blockedby/groupinviter/internal/events"
	"github.com/blockedby/groupinviter/internal/telegram"
)

// participant filters walked in order; search("") returns most members,
// recent catches some the search index misses.
var memberFilters = []telegram.ParticipantFilter{
	telegram.FilterSearch,
	telegram.FilterRecent,
}

// ScrapeRequest selects the group to scrape and whose limits apply.
type ScrapeRequest struct {
	GroupID int64
	UserID  int64
	// OnProgress is called after every page.
	OnProgress func(ScrapeProgress)
}

// ScrapeProgress is reported while paging.
type ScrapeProgress struct {
	GroupID int64  `json:"group_id"`
	Filter  string `json:"filter"`
	Found   int    `json:"found"`
	Saved   int64  `json:"saved"`
	Limit   int    `json:"limit"`
	Total   int    `json:"total"`
}

// ScrapeResult summarises one scrape.
type ScrapeResult struct {
	GroupID           int64 `json:"group_id"`
	Found             int   `json:"found"`
	Saved             int64 `json:"saved"`
	SkippedNoUsername int   `json:"skipped_no_username"`
	SkippedService    int   `json:"skipped_service"`
	AlreadyKnown      int64 `json:"already_known"`
	TotalInDB         int64 `json:"total_in_db"`
	Errors            int   `json:"errors"`
	Canceled          bool  `json:"canceled"`
}

// ScrapeMembers pages through the group's participants and stores the
// usernames of real members, up to the user's per-group limit. A canceled
// ctx stops paging and returns what was stored so far.
func (s *Service) ScrapeMembers(ctx context.Context, req ScrapeRequest) (*ScrapeResult, error) {
	group, err := s.groups.GetByID(ctx, req.GroupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	limits, err := s.limitsFor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	limit := limits.UsersPerGroup

	ch, err := s.tg.ResolveChannel(ctx, group.Username)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", group.Username, err)
	}
	if err := s.groups.UpdateTelegramInfo(ctx, group.ID, ch.ID, ch.AccessHash, ch.Title); err != nil {
		s.log.Warn().Err(err).Int64("group_id", group.ID).Msg("failed to update telegram info")
	}

	log := s.log.With().Int64("group_id", group.ID).Str("username", group.Username).Logger()
	log.Info().Int("limit", limit).Int("participants", ch.ParticipantsCount).Msg("starting member scrape")
	s.publish(ctx, events.ScrapeStarted, ScrapeProgress{GroupID: group.ID, Limit: limit, Total: ch.ParticipantsCount})

	result := &ScrapeResult{GroupID: group.ID}
	seen := make(map[int64]bool)
	collected := 0

filters:
	for _, filter := range memberFilters {
		offset := 0
		for {
			if ctx.Err() != nil {
				result.Canceled = true
				break filters
			}

			page, err := s.tg.GetParticipants(ctx, ch, filter, offset, s.opts.PageSize)
			if err != nil {
				if ctx.Err() != nil {
					result.Canceled = true
					break filters
				}
				log.Error().Err(err).Str("filter", string(filter)).Int("offset", offset).Msg("failed to get participants")
				result.Errors++
				break
			}
			if len(page.Participants) == 0 {
				break
			}

			var batch []string
			for _, p := range page.Participants {
				if seen[p.UserID] {
					continue
				}
				seen[p.UserID] = true
				result.Found++

				switch {
				case p.Bot || p.Deleted || p.Admin:
					result.SkippedService++
				case p.Username == "":
					result.SkippedNoUsername++
				case collected < limit:
					batch = append(batch, p.Username)
					collected++
				}
			}

			if len(batch) > 0 {
				saved, err := s.contacts.AddBatch(ctx, group.ID, batch)
				if err != nil {
					return result, fmt.Errorf("store contacts: %w", err)
				}
				result.Saved += saved
				result.AlreadyKnown += int64(len(batch)) - saved
			}

			offset += len(page.Participants)
			if req.OnProgress != nil {
				req.OnProgress(ScrapeProgress{
					GroupID: group.ID,
					Filter:  string(filter),
					Found:   result.Found,
					Saved:   result.Saved,
					Limit:   limit,
					Total:   page.Total,
				})
			}

			if collected >= limit {
				break filters
			}
			if page.Total > 0 && offset >= page.Total {
				break
			}
			if err := sleep(ctx, s.opts.ScrapeDelay); err != nil {
				result.Canceled = true
				break filters
			}
		}
	}

	// a canceled ctx must not block the final count
	total, err := s.contacts.CountByGroup(context.WithoutCancel(ctx), group.ID)
	if err != nil {
		return result, fmt.Errorf("count contacts: %w", err)
	}
	result.TotalInDB = total

	s.metrics.MembersScraped(result.Saved)
	log.Info().
		Int("found", result.Found).
		Int64("saved", result.Saved).
		Int64("already_known", result.AlreadyKnown).
		Int("skipped_service", result.SkippedService).
		Int("skipped_no_username", result.SkippedNoUsername).
		Bool("canceled", result.Canceled).
		Msg("member scrape finished")
	s.publish(context.WithoutCancel(ctx), events.ScrapeFinished, result)

	return result, nil
}

func (s *Service) publish(ctx context.Context, t events.Type, payload any) {
	if err := s.publisher.Publish(ctx, events.New(t, payload)); err != nil {
		s.log.Warn().Err(err).Str("event", string(t)).Msg("publish failed")
	}
}
