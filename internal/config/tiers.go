package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TierLimits caps what a single bot user may do per day.
type TierLimits struct {
	GroupsPerDay  int `yaml:"groups_per_day" json:"groups_per_day"`
	UsersPerGroup int `yaml:"users_per_group" json:"users_per_group"`
	InvitesPerDay int `yaml:"invites_per_day" json:"invites_per_day"`
}

// Tiers holds the limits for free and premium users.
type Tiers struct {
	Free    TierLimits `yaml:"free" json:"free"`
	Premium TierLimits `yaml:"premium" json:"premium"`
}

// DefaultTiers returns the built-in limits.
func DefaultTiers() Tiers {
	return Tiers{
		Free:    TierLimits{GroupsPerDay: 5, UsersPerGroup: 1000, InvitesPerDay: 50},
		Premium: TierLimits{GroupsPerDay: 20, UsersPerGroup: 5000, InvitesPerDay: 200},
	}
}

// For picks the limits for a user.
func (t Tiers) For(premium bool) TierLimits {
	if premium {
		return t.Premium
	}
	return t.Free
}

// Validate checks every limit is positive and premium is not below free.
func (t Tiers) Validate() error {
	for name, l := range map[string]TierLimits{"free": t.Free, "premium": t.Premium} {
		if l.GroupsPerDay <= 0 || l.UsersPerGroup <= 0 || l.InvitesPerDay <= 0 {
			return fmt.Errorf("tier %s: all limits must be positive", name)
		}
	}
	if t.Premium.InvitesPerDay < t.Free.InvitesPerDay {
		return fmt.Errorf("premium invites_per_day (%d) is below free (%d)", t.Premium.InvitesPerDay, t.Free.InvitesPerDay)
	}
	return nil
}

// ParseTiers decodes a limits document. Tiers missing from the document keep
// their defaults.
func ParseTiers(data []byte) (Tiers, error) {
	tiers := DefaultTiers()
	if err := yaml.Unmarshal(data, &tiers); err != nil {
		return Tiers{}, fmt.Errorf("decode yaml: %w", err)
	}
	if err := tiers.Validate(); err != nil {
		return Tiers{}, err
	}
	return tiers, nil
}

// LoadTiers reads and validates a limits file.
func LoadTiers(path string) (Tiers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tiers{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseTiers(data)
}

// Effective lowers the limits to a user's own settings. Zero or values above
// the tier keep the tier limit.
func (l TierLimits) Effective(parseLimit, inviteLimit int) TierLimits {
	if parseLimit > 0 && parseLimit < l.UsersPerGroup {
		l.UsersPerGroup = parseLimit
	}
	if inviteLimit > 0 && inviteLimit < l.InvitesPerDay {
		l.InvitesPerDay = inviteLimit
	}
	return l
}
