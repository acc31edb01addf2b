package inviter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	started chan CampaignRequest
}

func (b *blockingRunner) Run(ctx context.Context, req CampaignRequest) (*Report, error) {
	req.OnProgress(Progress{GroupID: req.GroupID, Total: 10, Processed: 3})
	b.started <- req
	<-ctx.Done()
	return &Report{Progress: Progress{GroupID: req.GroupID}, Canceled: true}, nil
}

func TestCampaignManager_OneAtATime(t *testing.T) {
	r := &blockingRunner{started: make(chan CampaignRequest, 1)}
	m := NewCampaignManager(r)

	var seen []Progress
	done := make(chan *Report, 1)
	c, err := m.Start(context.Background(), StartOptions{
		GroupID:    3,
		UserID:     11,
		OnProgress: func(p Progress) { seen = append(seen, p) },
		OnDone:     func(rep *Report, _ error) { done <- rep },
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.GroupID)

	req := <-r.started
	assert.Equal(t, int64(11), req.UserID)

	cur := m.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 3, cur.Progress.Processed)
	assert.Len(t, seen, 1)

	_, err = m.Start(context.Background(), StartOptions{GroupID: 4})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	assert.True(t, m.Stop())
	assert.False(t, m.Stop())

	select {
	case rep := <-done:
		assert.True(t, rep.Canceled)
	case <-time.After(time.Second):
		t.Fatal("campaign did not stop")
	}
	assert.Nil(t, m.Current())
}

type stubbornRunner struct {
	canceled chan struct{}
	release  chan struct{}
}

func (s *stubbornRunner) Run(ctx context.Context, req CampaignRequest) (*Report, error) {
	<-ctx.Done()
	close(s.canceled)
	// an invite call already in flight still has to come back
	<-s.release
	return &Report{Progress: Progress{GroupID: req.GroupID}, Canceled: true}, nil
}

func TestCampaignManager_StoppedCampaignHoldsSlotUntilItReturns(t *testing.T) {
	r := &stubbornRunner{canceled: make(chan struct{}), release: make(chan struct{})}
	m := NewCampaignManager(r)
	ctx := context.Background()

	_, err := m.Start(ctx, StartOptions{GroupID: 1})
	require.NoError(t, err)
	require.True(t, m.Stop())
	<-r.canceled

	cur := m.Current()
	require.NotNil(t, cur)
	assert.True(t, cur.Stopping)
	_, err = m.Start(ctx, StartOptions{GroupID: 2})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Wait(short), context.DeadlineExceeded)

	close(r.release)
	require.NoError(t, m.Wait(ctx))
	assert.Nil(t, m.Current())
}

func TestCampaignManager_WaitWhenIdle(t *testing.T) {
	m := NewCampaignManager(&blockingRunner{started: make(chan CampaignRequest, 1)})
	assert.NoError(t, m.Wait(context.Background()))
	assert.False(t, m.Stop())
}

func TestCampaignManager_RunsToCompletion(t *testing.T) {
	env := newTestEnv(t, testPolicy(), "alice", "bob")
	m := NewCampaignManager(env.svc)

	done := make(chan *Report, 1)
	_, err := m.Start(context.Background(), StartOptions{
		GroupID: env.group.ID,
		OnDone: func(rep *Report, err error) {
			assert.NoError(t, err)
			done <- rep
		},
	})
	require.NoError(t, err)

	select {
	case rep := <-done:
		assert.Equal(t, 2, rep.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("campaign did not finish")
	}
	assert.Eventually(t, func() bool { return m.Current() == nil }, time.Second, 10*time.Millisecond)

	// the slot is free again
	_, err = m.Start(context.Background(), StartOptions{GroupID: env.group.ID, OnDone: func(*Report, error) {}})
	require.NoError(t, err)
}
