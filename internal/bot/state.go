package bot

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/telegram"
)

// State is where a user is in a multi-step conversation.
type State string

const (
	StateIdle             State = ""
	StateWaitingKeywords  State = "waiting_for_keywords"
	StateSelectingGroups  State = "selecting_groups"
	StateDeletingGroups   State = "deleting_groups"
	StateWaitingGroupName State = "waiting_for_group_name"
	StateWaitingSettings  State = "waiting_for_settings"
)

// Session is the conversation data of one user.
type Session struct {
	State State
	// search results offered for saving
	Found []telegram.Channel
	// stored groups offered for deletion
	Groups []models.Group
	// indexes into Found or Groups
	Selected map[int]bool

	touchedAt time.Time
}

// Toggle flips the selection of item i.
func (s *Session) Toggle(i int) {
	if s.Selected == nil {
		s.Selected = make(map[int]bool)
	}
	if s.Selected[i] {
		delete(s.Selected, i)
		return
	}
	s.Selected[i] = true
}

// SelectAll selects the first n items.
func (s *Session) SelectAll(n int) {
	s.Selected = make(map[int]bool, n)
	for i := 0; i < n; i++ {
		s.Selected[i] = true
	}
}

// SelectNone clears the selection.
func (s *Session) SelectNone() {
	s.Selected = make(map[int]bool)
}

// SelectedIndexes returns the selected indexes in ascending order.
func (s *Session) SelectedIndexes() []int {
	out := make([]int, 0, len(s.Selected))
	for i := range s.Selected {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

// StateStore keeps sessions in memory. Sessions untouched for longer than
// the TTL are treated as idle and dropped by Sweep.
type StateStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]*Session
}

func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]*Session),
	}
}

// Get returns a copy of the user's session, or an idle one.
func (s *StateStore) Get(userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok || s.expired(sess) {
		delete(s.sessions, userID)
		return Session{}
	}
	return sess.clone()
}

// Set replaces the user's session.
func (s *StateStore) Set(userID int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess = sess.clone()
	sess.touchedAt = s.now()
	s.sessions[userID] = &sess
}

// Update applies fn to the user's live session and returns a copy of the
// result. An expired or missing session starts idle.
func (s *StateStore) Update(userID int64, fn func(*Session)) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok || s.expired(sess) {
		sess = &Session{}
		s.sessions[userID] = sess
	}
	fn(sess)
	sess.touchedAt = s.now()
	return sess.clone()
}

// Clear resets the user to idle.
func (s *StateStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Sweep drops expired sessions and returns how many were dropped.
func (s *StateStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (s *StateStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *StateStore) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.touchedAt) > s.ttl
}

func (s Session) clone() Session {
	s.Found = slices.Clone(s.Found)
	s.Groups = slices.Clone(s.Groups)
	s.Selected = maps.Clone(s.Selected)
	return s
}
