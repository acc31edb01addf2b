package telegram

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInviteLink is returned for private invite links, which can not be
	// resolved to a public group.
	ErrInviteLink = errors.New("private invite links are not supported")
	// ErrInvalidGroupLink is returned when the input is not a public username or link.
	ErrInvalidGroupLink = errors.New("invalid group link or username")
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{3,30}[a-zA-Z0-9]$`)
	linkPrefix = regexp.MustCompile(`^(?i)(?:https?://)?(?:www\.)?(?:t|telegram)\.(?:me|dog)/`)
)

// ValidUsername reports whether s is a syntactically valid public username
// (5 to 32 characters, starting with a letter, no trailing underscore).
func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// ParseGroupLink extracts a username from "https://t.me/name", "t.me/name",
// "@name" or a bare "name".
func ParseGroupLink(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrInvalidGroupLink
	}

	if loc := linkPrefix.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
		if strings.HasPrefix(s, "+") || strings.HasPrefix(strings.ToLower(s), "joinchat/") {
			return "", ErrInviteLink
		}
		// drop message ids, query strings and trailing slashes
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
	} else if strings.HasPrefix(s, "+") {
		return "", ErrInviteLink
	}

	s = strings.TrimPrefix(s, "@")
	if !ValidUsername(s) {
		return "", ErrInvalidGroupLink
	}
	return s, nil
}
