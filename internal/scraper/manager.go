package scraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrAlreadyRunning = errors.New("a scrape job is already running")

// Scraper is what the manager runs.
type Scraper interface {
	ScrapeMembers(ctx context.Context, req ScrapeRequest) (*ScrapeResult, error)
}

// ScrapeOptions describe a scrape job.
type ScrapeOptions struct {
	GroupID    int64
	UserID     int64
	OnProgress func(ScrapeProgress)
	// OnDone runs after the job finishes, with its result or error.
	OnDone func(*ScrapeResult, error)
}

// ScrapeJob is a snapshot of the running job.
type ScrapeJob struct {
	ID        uuid.UUID       `json:"id"`
	GroupID   int64           `json:"group_id"`
	UserID    int64           `json:"user_id"`
	StartedAt time.Time       `json:"started_at"`
	Progress  *ScrapeProgress `json:"progress,omitempty"`
	Stopping  bool            `json:"stopping,omitempty"`
}

type runningScrape struct {
	job    ScrapeJob
	cancel context.CancelFunc
}

// ScrapeManager runs at most one scrape at a time. A stopped job keeps the
// slot until its goroutine returns.
type ScrapeManager struct {
	scraper Scraper

	mu      sync.Mutex
	running *runningScrape
	done    chan struct{} // closed when the latest job, OnDone included, returns
}

func NewScrapeManager(scraper Scraper) *ScrapeManager {
	return &ScrapeManager{scraper: scraper}
}

// Start launches a job in the background and returns immediately. The job
// is detached from ctx and ends on Stop or when the scrape completes.
func (m *ScrapeManager) Start(_ context.Context, opts ScrapeOptions) (*ScrapeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running != nil {
		return nil, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &runningScrape{
		job: ScrapeJob{
			ID:        uuid.New(),
			GroupID:   opts.GroupID,
			UserID:    opts.UserID,
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}
	done := make(chan struct{})
	m.running, m.done = r, done

	go m.run(ctx, r, opts, done)

	job := r.job
	return &job, nil
}

// Stop cancels the current job and reports whether there was one to stop.
func (m *ScrapeManager) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.running
	if r == nil || r.job.Stopping {
		return false
	}
	r.job.Stopping = true
	r.cancel()
	return true
}

// Wait blocks until the latest job has finished or ctx ends.
func (m *ScrapeManager) Wait(ctx context.Context) error {
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

// Current returns the running job or nil.
func (m *ScrapeManager) Current() *ScrapeJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running == nil {
		return nil
	}
	job := m.running.job
	return &job
}

func (m *ScrapeManager) progress(r *runningScrape, p ScrapeProgress) {
	m.mu.Lock()
	if m.running == r {
		r.job.Progress = &p
	}
	m.mu.Unlock()
}

func (m *ScrapeManager) run(ctx context.Context, r *runningScrape, opts ScrapeOptions, done chan struct{}) {
	defer close(done)

	res, err := m.scraper.ScrapeMembers(ctx, ScrapeRequest{
		GroupID: opts.GroupID,
		UserID:  opts.UserID,
		OnProgress: func(p ScrapeProgress) {
			m.progress(r, p)
			if opts.OnProgress != nil {
				opts.OnProgress(p)
			}
		},
	})

	m.mu.Lock()
	if m.running == r {
		m.running = nil
	}
	m.mu.Unlock()
	r.cancel()

	if opts.OnDone != nil {
		opts.OnDone(res, err)
	}
}
