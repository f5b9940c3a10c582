package runctl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autoapply-client/internal/api"
	"github.com/jonathan/autoapply-client/internal/auth"
	"github.com/jonathan/autoapply-client/internal/types"
)

type fakeRunService struct {
	mu          sync.Mutex
	startCalls  int
	startRunID  string
	startErr    error
	statusCalls int
	snapshot    *types.RunSnapshot
	statusErr   error
}

func (f *fakeRunService) StartRun(_ context.Context, _, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.startRunID, nil
}

func (f *fakeRunService) GetStatus(_ context.Context, _, _, _ string) (*types.RunSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.snapshot == nil {
		return nil, &api.RequestError{Op: "run status", StatusCode: 503, Message: "no snapshot configured"}
	}
	return f.snapshot, nil
}

func (f *fakeRunService) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls, f.statusCalls
}

func (f *fakeRunService) setSnapshot(snap *types.RunSnapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snap
	f.statusErr = err
}

type fakePersister struct {
	mu     sync.Mutex
	runIDs []string
}

func (p *fakePersister) SetLastRunID(runID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runIDs = append(p.runIDs, runID)
	return nil
}

func (p *fakePersister) last() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.runIDs) == 0 {
		return "", false
	}
	return p.runIDs[len(p.runIDs)-1], true
}

func snapshotWith(status types.RunStatus, startedAt int64) *types.RunSnapshot {
	return &types.RunSnapshot{
		Run: types.Run{RunID: "r1", UserID: "u1", Status: status, StartedAt: &startedAt},
	}
}

// newIdleController builds a controller that never spawns a polling loop,
// for white-box tests that drive pollOnce directly.
func newIdleController(svc RunService, tokens auth.TokenSource, persist RunPersister, now func() time.Time) *Controller {
	opts := &Options{
		Interval: time.Hour,
		Logf:     func(string, ...any) {},
	}
	if now != nil {
		opts.Now = now
	}
	c := New(svc, tokens, persist, opts)
	c.userID = "u1"
	return c
}

func TestStart_Success(t *testing.T) {
	svc := &fakeRunService{startRunID: "r1"}
	persist := &fakePersister{}
	c := newIdleController(svc, auth.StaticTokenSource("tok"), persist, nil)
	defer c.Stop()

	runID, err := c.Start(context.Background(), "profile text")
	require.NoError(t, err)

	assert.Equal(t, "r1", runID)
	assert.Equal(t, "r1", c.RunID())
	assert.False(t, c.Starting())
	last, ok := persist.last()
	assert.True(t, ok)
	assert.Equal(t, "r1", last)
}

func TestStart_NoUser(t *testing.T) {
	svc := &fakeRunService{startRunID: "r1"}
	c := New(svc, auth.StaticTokenSource("tok"), &fakePersister{}, &Options{Logf: func(string, ...any) {}})
	defer c.Stop()

	_, err := c.Start(context.Background(), "")

	assert.True(t, api.IsAuthRequired(err))
	assert.False(t, c.Starting())
	startCalls, statusCalls := svc.calls()
	assert.Equal(t, 0, startCalls)
	assert.Equal(t, 0, statusCalls)
}

func TestStart_NoToken_NeverHitsNetwork(t *testing.T) {
	svc := &fakeRunService{startRunID: "r1"}
	c := newIdleController(svc, auth.StaticTokenSource(""), &fakePersister{}, nil)
	defer c.Stop()

	_, err := c.Start(context.Background(), "")

	assert.True(t, api.IsAuthRequired(err))
	assert.False(t, c.Starting())
	startCalls, _ := svc.calls()
	assert.Equal(t, 0, startCalls)
}

func TestStart_ServiceFailureSurfaced(t *testing.T) {
	svc := &fakeRunService{startErr: &api.RequestError{Op: "start run", StatusCode: 500, Message: "queue unavailable"}}
	c := newIdleController(svc, auth.StaticTokenSource("tok"), &fakePersister{}, nil)
	defer c.Stop()

	_, err := c.Start(context.Background(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue unavailable")
	assert.False(t, c.Starting())
	assert.Equal(t, "", c.RunID())
	// No auto-retry.
	startCalls, _ := svc.calls()
	assert.Equal(t, 1, startCalls)
}

func TestPollOnce_ReplacesSnapshotWholesale(t *testing.T) {
	svc := &fakeRunService{}
	now := time.Now()
	c := newIdleController(svc, auth.StaticTokenSource("tok"), &fakePersister{}, func() time.Time { return now })

	svc.setSnapshot(snapshotWith(types.RunRunning, now.UnixMilli()), nil)
	keepPolling := c.pollOnce(context.Background(), c.epoch, "u1", "r1")

	assert.True(t, keepPolling)
	require.NotNil(t, c.Snapshot())
	assert.Equal(t, types.RunRunning, c.Snapshot().Run.Status)
	assert.True(t, c.Active())
	assert.Equal(t, PhaseActive, c.Phase())
}

func TestPollOnce_TerminalStopsPolling(t *testing.T) {
	svc := &fakeRunService{}
	now := time.Now()
	c := newIdleController(svc, auth.StaticTokenSource("tok"), &fakePersister{}, func() time.Time { return now })

	snap := snapshotWith(types.RunDone, now.UnixMilli())
	snap.Run.Counts = &types.RunCounts{Total: 3, Success: 2, Failed: 1}
	svc.setSnapshot(snap, nil)

	keepPolling := c.pollOnce(context.Background(), c.epoch, "u1", "r1")

	assert.False(t, keepPolling)
	assert.False(t, c.Active())
	assert.Equal(t, PhaseTerminal, c.Phase())
}

func TestPollOnce_FailureDropsSnapshot(t *testing.T) {
	svc := &fakeRunService{}
	now := time.Now()
	c := newIdleController(svc, auth.StaticTokenSource("tok"), &fakePersister{}, func() time.Time { return now })

	svc.setSnapshot(snapshotWith(types.RunRunning, now.UnixMilli()), nil)
	require.True(t, c.pollOnce(context.Background(), c.epoch, "u1", "r1"))
	require.NotNil(t, c.Snapshot())

	// A failed poll discards the snapshot instead of showing it stale, but
	// does not stop the loop.
	svc.setSnapshot(nil, &api.RequestError{Op: "run status", StatusCode: 502})
	keepPolling := c.pollOnce(context.Background(), c.epoch, "u1", "r1")

	assert.True(t, keepPolling)
	assert.Nil(t, c.Snapshot())
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestPollOnce_AuthFailureSignalsCaller(t *testing.T) {
	svc := &fakeRunService{statusErr: &api.AuthError{Op: "run status"}}
	now := time.Now()

	var prompted bool
	c := New(svc, auth.StaticTokenSource("tok"), &fakePersister{}, &Options{
		Interval:       time.Hour,
		Now:            func() time.Time { return now },
		OnAuthRequired: func() { prompted = true },
		Logf:           func(string, ...any) {},
	})
	c.userID = "u1"

	keepPolling := c.pollOnce(context.Background(), c.epoch, "u1", "r1")

	assert.True(t, keepPolling)
	assert.True(t, prompted)
	assert.Nil(t, c.Snapshot())
}

func TestPollOnce_StaleEpochDiscarded(t *testing.T) {
	svc := &fakeRunService{}
	now := time.Now()
	c := newIdleController(svc, auth.StaticTokenSource("tok"), &fakePersister{}, func() time.Time { return now })

	svc.setSnapshot(snapshotWith(types.RunRunning, now.UnixMilli()), nil)
	staleEpoch := c.epoch
	c.mu.Lock()
	c.epoch++ // a newer (user, run) pair has taken over
	c.mu.Unlock()

	keepPolling := c.pollOnce(context.Background(), staleEpoch, "u1", "r1")

	// The late response is discarded and the superseded loop stands down.
	assert.False(t, keepPolling)
	assert.Nil(t, c.Snapshot())
	c.Stop()
}

func TestStuck(t *testing.T) {
	now := time.UnixMilli(1700000010000)

	tests := []struct {
		name      string
		snap      *types.RunSnapshot
		wantStuck bool
	}{
		{"nil snapshot", nil, false},
		{"fresh pending", snapshotWith(types.RunPending, now.UnixMilli()-1000), false},
		{"stale pending", snapshotWith(types.RunPending, now.UnixMilli()-6000), true},
		{"stale error", snapshotWith(types.RunError, now.UnixMilli()-6000), true},
		{"stale running is not stuck", snapshotWith(types.RunRunning, now.UnixMilli()-60000), false},
		{"stale done is not stuck", snapshotWith(types.RunDone, now.UnixMilli()-60000), false},
		{"exactly at threshold", snapshotWith(types.RunPending, now.UnixMilli()-5000), false},
		{"missing started_at", &types.RunSnapshot{Run: types.Run{RunID: "r1", Status: types.RunPending}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStuck, Stuck(tt.snap, now, DefaultStuckAfter))
		})
	}
}

func TestClearStuck_ClearsRunAndSnapshot(t *testing.T) {
	svc := &fakeRunService{}
	now := time.Now()
	persist := &fakePersister{}
	c := newIdleController(svc, auth.StaticTokenSource("tok"), persist, func() time.Time { return now })
	defer c.Stop()

	c.runID = "r1"
	c.snapshot = snapshotWith(types.RunPending, now.UnixMilli()-6000)

	assert.True(t, c.ClearStuck())
	assert.Equal(t, "", c.RunID())
	assert.Nil(t, c.Snapshot())
	assert.Equal(t, PhaseIdle, c.Phase())
	last, ok := persist.last()
	assert.True(t, ok)
	assert.Equal(t, "", last)

	// Idempotent: nothing left to clear.
	assert.False(t, c.ClearStuck())
}

func TestPollOnce_StuckClearWinsOverSnapshotUpdate(t *testing.T) {
	svc := &fakeRunService{}
	now := time.Now()
	persist := &fakePersister{}
	c := newIdleController(svc, auth.StaticTokenSource("tok"), persist, func() time.Time { return now })
	defer c.Stop()
	c.runID = "r1"

	// The poll delivers a snapshot that is already stale-pending; it must be
	// cleared in the same tick, not displayed for another interval.
	svc.setSnapshot(snapshotWith(types.RunPending, now.UnixMilli()-6000), nil)
	keepPolling := c.pollOnce(context.Background(), c.epoch, "u1", "r1")

	assert.False(t, keepPolling)
	assert.Nil(t, c.Snapshot())
	assert.Equal(t, "", c.RunID())
}

func TestPollLoop_StopsAfterTerminal(t *testing.T) {
	svc := &fakeRunService{}
	now := time.Now()
	svc.setSnapshot(snapshotWith(types.RunDone, now.UnixMilli()), nil)

	c := New(svc, auth.StaticTokenSource("tok"), &fakePersister{}, &Options{
		Interval: 5 * time.Millisecond,
		Logf:     func(string, ...any) {},
	})
	defer c.Stop()

	c.SetUser("u1")
	c.Resume("r1")

	// Give the loop time to observe the terminal snapshot and stand down.
	time.Sleep(50 * time.Millisecond)
	_, after := svc.calls()
	time.Sleep(50 * time.Millisecond)
	_, later := svc.calls()

	assert.Equal(t, after, later, "polling must cease once the run is terminal")
	assert.Equal(t, PhaseTerminal, c.Phase())
}

func TestSetUser_RestartsPolling(t *testing.T) {
	svc := &fakeRunService{}
	now := time.Now()
	svc.setSnapshot(snapshotWith(types.RunDone, now.UnixMilli()), nil)

	c := New(svc, auth.StaticTokenSource("tok"), &fakePersister{}, &Options{
		Interval: 5 * time.Millisecond,
		Logf:     func(string, ...any) {},
	})
	defer c.Stop()

	c.SetUser("u1")
	time.Sleep(30 * time.Millisecond)
	_, first := svc.calls()
	assert.Greater(t, first, 0)

	// Same user again is a no-op; no loop churn.
	c.SetUser("u1")
	c.SetUser("u2")
	time.Sleep(30 * time.Millisecond)
	_, second := svc.calls()
	assert.Greater(t, second, first)
}

func TestReset_ClearsPersistedRun(t *testing.T) {
	persist := &fakePersister{}
	c := newIdleController(&fakeRunService{}, auth.StaticTokenSource("tok"), persist, nil)
	defer c.Stop()
	c.runID = "r1"
	c.snapshot = snapshotWith(types.RunRunning, time.Now().UnixMilli())

	c.Reset()

	assert.Equal(t, "", c.RunID())
	assert.Nil(t, c.Snapshot())
	last, ok := persist.last()
	assert.True(t, ok)
	assert.Equal(t, "", last)
}

func TestPhase_Starting(t *testing.T) {
	c := newIdleController(&fakeRunService{}, auth.StaticTokenSource("tok"), &fakePersister{}, nil)
	c.starting = true
	assert.Equal(t, PhaseStarting, c.Phase())
}
