package inviter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/blockedby/groupinviter/internal/events"
	"github.com/blockedby/groupinviter/internal/logger"
	"github.com/blockedby/groupinviter/internal/metrics"
	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/telegram"
)

var (
	ErrGroupNotFound     = errors.New("group not found")
	ErrDailyLimitReached = errors.New("daily invite limit reached")
	ErrNothingToInvite   = errors.New("no contacts left to invite")
)

// TelegramClient is the part of the MTProto client campaigns use.
type TelegramClient interface {
	ResolveChannel(ctx context.Context, username string) (*telegram.Channel, error)
	ResolveUser(ctx context.Context, username string) (*telegram.User, error)
	InviteToChannel(ctx context.Context, ch *telegram.Channel, user *telegram.User) (telegram.InviteResult, error)
}

// GroupStore looks up campaign targets.
type GroupStore interface {
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	UpdateTelegramInfo(ctx context.Context, id, channelID, accessHash int64, title string) error
}

// InviteStore persists invite outcomes.
type InviteStore interface {
	Pending(ctx context.Context, groupID int64, f repository.PendingFilter) ([]string, error)
	CountPending(ctx context.Context, groupID int64, f repository.PendingFilter) (int64, error)
	Record(ctx context.Context, inv *models.Invite) error
	CountForGroupSince(ctx context.Context, groupID int64, since time.Time) (int64, error)
	CountByUserSince(ctx context.Context, userID int64, since time.Time) (int64, error)
	Summary(ctx context.Context, groupID int64, declinedSince, dayStart time.Time) (*models.InviteSummary, error)
}

// UserStore looks up the tier of the user running a campaign.
type UserStore interface {
	Get(ctx context.Context, userID int64) (*models.User, error)
}

// CampaignRequest starts a campaign.
type CampaignRequest struct {
	GroupID int64
	// UserID is the bot user who started it; 0 for operator tooling.
	UserID int64
	// Limit further caps the batch when positive.
	Limit      int
	OnProgress func(Progress)
}

// Progress is reported every Policy.ProgressEvery contacts and at the end.
type Progress struct {
	GroupID       int64         `json:"group_id"`
	Total         int           `json:"total"`
	Processed     int           `json:"processed"`
	Success       int           `json:"success"`
	AlreadyMember int           `json:"already_member"`
	Declined      int           `json:"declined"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	Current       string        `json:"current,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	FloodWait     time.Duration `json:"flood_wait,omitempty"`
}

// ETA estimates the time left from the average pace so far.
func (p Progress) ETA() time.Duration {
	if p.Processed == 0 || p.Processed >= p.Total {
		return 0
	}
	per := p.Elapsed / time.Duration(p.Processed)
	return per * time.Duration(p.Total-p.Processed)
}

// Report is the result of a finished campaign.
type Report struct {
	Progress
	Group       *models.Group `json:"group"`
	Aborted     bool          `json:"aborted"`
	AbortReason string        `json:"abort_reason,omitempty"`
	Canceled    bool          `json:"canceled"`
	// Remaining is today's quota left after the campaign.
	Remaining  int       `json:"remaining"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Result names how the campaign ended.
func (r *Report) Result() string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.Canceled:
		return "canceled"
	default:
		return "completed"
	}
}

// Service runs invite campaigns.
type Service struct {
	tg        TelegramClient
	groups    GroupStore
	invites   InviteStore
	users     UserStore
	publisher events.Publisher
	metrics   *metrics.Metrics
	policy    Policy
	log       *logger.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewService creates a campaign service. users, publisher and m may be nil.
func NewService(
	tg TelegramClient,
	groups GroupStore,
	invites InviteStore,
	users UserStore,
	publisher events.Publisher,
	m *metrics.Metrics,
	policy Policy,
	log *logger.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Nop
	}
	return &Service{
		tg:        tg,
		groups:    groups,
		invites:   invites,
		users:     users,
		publisher: publisher,
		metrics:   m,
		policy:    policy.withDefaults(),
		log:       log,
		now:       time.Now,
		sleep:     sleep,
	}
}

// Policy returns the effective settings.
func (s *Service) Policy() Policy {
	return s.policy
}

func (s *Service) pendingFilter(limit int) repository.PendingFilter {
	return repository.PendingFilter{
		Limit:          limit,
		MaxAttempts:    s.policy.MaxAttempts,
		DeclinedBefore: s.now().Add(-s.policy.DeclineWait),
	}
}

// Run invites the pending contacts of a group, one at a time, until the batch
// is done, the quota is used up, ctx is canceled or Telegram forces an abort.
// Errors are returned only when the campaign could not start or the store
// failed; per-contact failures are recorded and counted in the report.
func (s *Service) Run(ctx context.Context, req CampaignRequest) (*Report, error) {
	group, err := s.groups.GetByID(ctx, req.GroupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	quota, err := s.Quota(ctx, group.ID, req.UserID)
	if err != nil {
		return nil, err
	}
	if quota.Remaining == 0 {
		return nil, ErrDailyLimitReached
	}

	limit := min(quota.Remaining, s.policy.BatchSize)
	if req.Limit > 0 {
		limit = min(limit, req.Limit)
	}

	pending, err := s.invites.Pending(ctx, group.ID, s.pendingFilter(limit))
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrNothingToInvite
	}

	ch, err := s.channel(ctx, group)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Progress:  Progress{GroupID: group.ID, Total: len(pending)},
		Group:     group,
		StartedAt: s.now().UTC(),
	}
	log := s.log.With().Int64("group_id", group.ID).Str("group", group.Username).Int64("user_id", req.UserID).Logger()
	log.Info().Int("contacts", len(pending)).Int("quota", quota.Remaining).Msg("campaign started")

	finish := s.metrics.CampaignStarted()
	s.publish(ctx, events.CampaignStarted, report)

	for i, username := range pending {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}
		if i > 0 {
			if err := s.sleep(ctx, s.policy.Delay); err != nil {
				report.Canceled = true
				break
			}
		}

		report.Current = username
		out := s.inviteOne(ctx, ch, username, report)
		if out.Abort {
			if ctx.Err() != nil {
				report.Canceled = true
			} else {
				report.Aborted = true
				report.AbortReason = out.Reason
				report.FloodWait = out.FloodWait
				log.Warn().Str("username", username).Str("kind", out.Kind.String()).Str("reason", out.Reason).Msg("campaign aborted")
			}
			break
		}

		inv := &models.Invite{
			Username:  username,
			GroupID:   group.ID,
			Status:    out.Status,
			InvitedBy: req.UserID,
		}
		if out.Status != models.InviteStatusSuccess && out.Status != models.InviteStatusAlreadyMember {
			inv.Error = truncate(out.Reason, 255)
		}
		// the invite already happened; record it even if ctx was just canceled
		if err := s.invites.Record(context.WithoutCancel(ctx), inv); err != nil {
			finish("error")
			return report, err
		}

		report.Processed++
		switch out.Status {
		case models.InviteStatusSuccess:
			report.Success++
		case models.InviteStatusAlreadyMember:
			report.AlreadyMember++
		case models.InviteStatusDeclined:
			report.Declined++
		case models.InviteStatusSkipped:
			report.Skipped++
		default:
			report.Failed++
		}

		s.metrics.InviteRecorded(string(out.Status))
		s.publish(ctx, events.InviteRecorded, inv)
		log.Debug().Str("username", username).Str("status", string(out.Status)).Str("reason", out.Reason).Msg("invite recorded")

		if report.Processed%s.policy.ProgressEvery == 0 && report.Processed < report.Total {
			s.progress(req, report)
		}
	}

	report.Current = ""
	s.progress(req, report)

	if q, err := s.Quota(context.WithoutCancel(ctx), group.ID, req.UserID); err == nil {
		report.Remaining = q.Remaining
	} else {
		log.Warn().Err(err).Msg("failed to compute remaining quota")
	}
	report.FinishedAt = s.now().UTC()

	finish(report.Result())
	s.publish(context.WithoutCancel(ctx), events.CampaignFinished, report)
	log.Info().
		Int("processed", report.Processed).
		Int("success", report.Success).
		Int("already_member", report.AlreadyMember).
		Int("declined", report.Declined).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Str("result", report.Result()).
		Msg("campaign finished")

	return report, nil
}

// inviteOne resolves and invites one contact. Transient errors are retried
// with backoff; FLOOD_WAITs within the policy are slept out and retried.
func (s *Service) inviteOne(ctx context.Context, ch *telegram.Channel, username string, report *Report) Outcome {
	for {
		var res telegram.InviteResult
		op := func() error {
			user, err := s.tg.ResolveUser(ctx, username)
			if err != nil {
				return retryable(err)
			}
			res, err = s.tg.InviteToChannel(ctx, ch, user)
			return retryable(err)
		}
		notify := func(err error, next time.Duration) {
			s.log.Debug().Err(err).Str("username", username).Dur("retry_in", next).Msg("transient invite error")
		}

		err := backoff.RetryNotify(op, s.policy.backOff(ctx), notify)
		out := s.policy.Classify(err, res)
		if out.FloodWait > 0 {
			s.metrics.FloodWait(out.FloodWait)
		}
		if !out.Retry {
			return out
		}

		s.log.Warn().Dur("wait", out.FloodWait).Str("username", username).Msg("flood wait, pausing campaign")
		report.FloodWait = out.FloodWait
		s.publish(ctx, events.CampaignProgress, report)
		if err := s.sleep(ctx, out.FloodWait); err != nil {
			return Outcome{Abort: true, Reason: err.Error(), Kind: telegram.KindCanceled}
		}
		report.FloodWait = 0
	}
}

// retryable marks everything but transient errors as permanent for backoff.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, telegram.ErrNotAuthorized) {
		return backoff.Permanent(err)
	}
	if kind, _ := telegram.ClassifyError(err); kind != telegram.KindTransient {
		return backoff.Permanent(err)
	}
	return err
}

// channel returns the cached channel peer of a group, resolving and caching
// it when missing.
func (s *Service) channel(ctx context.Context, g *models.Group) (*telegram.Channel, error) {
	if g.TGChannelID != 0 && g.TGAccessHash != 0 {
		return &telegram.Channel{ID: g.TGChannelID, AccessHash: g.TGAccessHash, Username: g.Username, Title: g.Name}, nil
	}
	ch, err := s.tg.ResolveChannel(ctx, g.Username)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", g.Username, err)
	}
	if err := s.groups.UpdateTelegramInfo(ctx, g.ID, ch.ID, ch.AccessHash, ch.Title); err != nil {
		s.log.Warn().Err(err).Int64("group_id", g.ID).Msg("failed to update telegram info")
	}
	return ch, nil
}

func (s *Service) progress(req CampaignRequest, report *Report) {
	report.Elapsed = s.now().Sub(report.StartedAt)
	if req.OnProgress != nil {
		req.OnProgress(report.Progress)
	}
	s.publish(context.Background(), events.CampaignProgress, report.Progress)
}

func (s *Service) publish(ctx context.Context, t events.Type, payload any) {
	if err := s.publisher.Publish(ctx, events.New(t, payload)); err != nil {
		s.log.Warn().Err(err).Str("event", string(t)).Msg("publish failed")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// sleep waits d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
