package inviter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrAlreadyRunning = errors.New("an invite campaign is already running")

// Runner is what the manager runs.
type Runner interface {
	Run(ctx context.Context, req CampaignRequest) (*Report, error)
}

// StartOptions describe a campaign for the manager.
type StartOptions struct {
	GroupID    int64
	UserID     int64
	Limit      int
	OnProgress func(Progress)
	// OnDone runs once the campaign ends, with its report or error.
	OnDone func(*Report, error)
}

// Campaign is the running campaign as seen from outside.
type Campaign struct {
	ID        uuid.UUID `json:"id"`
	GroupID   int64     `json:"group_id"`
	UserID    int64     `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
	Progress  Progress  `json:"progress"`
	// Stopping is set once Stop was called and the run has not returned yet.
	Stopping bool `json:"stopping,omitempty"`
}

// CampaignManager runs at most one campaign at a time, since every campaign
// shares the single automation account. The slot stays taken until the run
// goroutine has returned, including after Stop.
type CampaignManager struct {
	runner Runner

	mu      sync.Mutex
	current *Campaign
	cancel  context.CancelFunc
	done    chan struct{} // closed when the latest run, OnDone included, returns
}

func NewCampaignManager(runner Runner) *CampaignManager {
	return &CampaignManager{runner: runner}
}

// Start launches a campaign in the background.
func (m *CampaignManager) Start(_ context.Context, opts StartOptions) (*Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrAlreadyRunning
	}

	// not derived from the caller's context: campaigns outlive the bot
	// update or HTTP request that started them
	ctx, cancel := context.WithCancel(context.Background())
	c := &Campaign{
		ID:        uuid.New(),
		GroupID:   opts.GroupID,
		UserID:    opts.UserID,
		StartedAt: time.Now().UTC(),
		Progress:  Progress{GroupID: opts.GroupID},
	}
	done := make(chan struct{})
	m.current, m.cancel, m.done = c, cancel, done

	go m.run(ctx, c, opts, done)

	cp := *c
	return &cp, nil
}

// Stop cancels the running campaign and reports whether there was one to
// stop. It does not wait; see Wait.
func (m *CampaignManager) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.Stopping {
		return false
	}
	m.current.Stopping = true
	m.cancel()
	return true
}

// Wait blocks until the latest campaign has finished or ctx ends.
func (m *CampaignManager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns a snapshot of the running campaign, or nil.
func (m *CampaignManager) Current() *Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}

func (m *CampaignManager) run(ctx context.Context, c *Campaign, opts StartOptions, done chan struct{}) {
	defer close(done)

	report, err := m.runner.Run(ctx, CampaignRequest{
		GroupID: opts.GroupID,
		UserID:  opts.UserID,
		Limit:   opts.Limit,
		OnProgress: func(p Progress) {
			m.mu.Lock()
			if m.current == c {
				c.Progress = p
			}
			m.mu.Unlock()
			if opts.OnProgress != nil {
				opts.OnProgress(p)
			}
		},
	})

	m.mu.Lock()
	if m.current == c {
		m.cancel()
		m.current, m.cancel = nil, nil
	}
	m.mu.Unlock()

	if opts.OnDone != nil {
		opts.OnDone(report, err)
	}
}
