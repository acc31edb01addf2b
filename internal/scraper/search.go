package scraper

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/blockedby/groupinviter/internal/telegram"
)

// ParseKeywords splits user input on commas and newlines, trims and drops
// empties and duplicates (case-insensitive).
func ParseKeywords(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})

	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		kw := strings.TrimFunc(f, unicode.IsSpace)
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}

// Search queries every keyword and merges the public chats found, in first
// seen order. A failing keyword is logged and skipped; an error is returned
// only when every keyword failed or ctx ended.
func (s *Service) Search(ctx context.Context, keywords []string) ([]telegram.Channel, error) {
	var (
		found   []telegram.Channel
		seen    = make(map[int64]bool)
		queried int
		failed  int
		lastErr error
	)

	for _, raw := range keywords {
		kw := strings.TrimSpace(raw)
		if kw == "" {
			continue
		}
		if queried > 0 {
			if err := sleep(ctx, s.opts.SearchDelay); err != nil {
				return found, err
			}
		}
		queried++

		chats, err := s.tg.SearchChats(ctx, kw, s.opts.SearchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return found, ctx.Err()
			}
			s.log.Warn().Err(err).Str("keyword", kw).Msg("search failed")
			failed++
			lastErr = err
			continue
		}

		for _, ch := range chats {
			if ch.Username == "" || seen[ch.ID] {
				continue
			}
			seen[ch.ID] = true
			found = append(found, ch)
		}

		s.log.Debug().Str("keyword", kw).Int("chats", len(chats)).Msg("keyword searched")
	}

	if queried > 0 && failed == queried {
		return nil, fmt.Errorf("search: all %d keywords failed: %w", failed, lastErr)
	}
	return found, nil
}
