// Package runctl owns the run lifecycle: starting a run, polling the run
// service for its status, and classifying what it observes for the
// presentation layer.
//
// The controller is a status observer, not the authority: it never assigns a
// run status, it only replaces its held snapshot with whatever the service
// reports, wholesale. Two client-side policies sit on top of that:
//
//   - Stuck-run auto-clear: a run seen pending or errored whose started_at is
//     older than the staleness threshold is abandoned regardless of what the
//     server later says, returning the UI to idle.
//   - Epoch guard: every poll is tagged with the epoch of the (user, run)
//     pair it was issued for; a response landing after that pair changed is
//     discarded instead of clobbering newer state.
package runctl

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonathan/autoapply-client/internal/api"
	"github.com/jonathan/autoapply-client/internal/auth"
	"github.com/jonathan/autoapply-client/internal/types"
)

// DefaultPollInterval is the fixed delay between status queries.
const DefaultPollInterval = 1200 * time.Millisecond

// DefaultStuckAfter is the staleness threshold for the stuck-run heuristic.
const DefaultStuckAfter = 5 * time.Second

// Phase is the UI-facing classification of the controller's state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseActive   Phase = "active"
	PhaseTerminal Phase = "terminal"
)

// RunService is the slice of the API client the controller consumes.
type RunService interface {
	StartRun(ctx context.Context, token, userID, profileText string) (string, error)
	GetStatus(ctx context.Context, token, userID, runID string) (*types.RunSnapshot, error)
}

// RunPersister stores the last-known run id across restarts.
type RunPersister interface {
	SetLastRunID(runID string) error
}

// Controller drives one user's run lifecycle.
type Controller struct {
	svc     RunService
	tokens  auth.TokenSource
	persist RunPersister

	mu       sync.Mutex
	userID   string
	runID    string
	starting bool
	snapshot *types.RunSnapshot
	epoch    uint64
	cancel   context.CancelFunc

	interval   time.Duration
	stuckAfter time.Duration
	now        func() time.Time
	onAuth     func()
	logf       func(format string, args ...any)
}

// Options tunes controller behavior; zero values select defaults.
type Options struct {
	Interval   time.Duration
	StuckAfter time.Duration
	Now        func() time.Time
	// OnAuthRequired is invoked (off the lock) when polling discovers the
	// credential is missing or rejected, so the caller can prompt re-login.
	OnAuthRequired func()
	Logf           func(format string, args ...any)
}

// New creates a controller. Polling does not begin until SetUser is called
// with a non-empty user id.
func New(svc RunService, tokens auth.TokenSource, persist RunPersister, opts *Options) *Controller {
	c := &Controller{
		svc:        svc,
		tokens:     tokens,
		persist:    persist,
		interval:   DefaultPollInterval,
		stuckAfter: DefaultStuckAfter,
		now:        time.Now,
		logf:       log.Printf,
	}
	if opts != nil {
		if opts.Interval > 0 {
			c.interval = opts.Interval
		}
		if opts.StuckAfter > 0 {
			c.stuckAfter = opts.StuckAfter
		}
		if opts.Now != nil {
			c.now = opts.Now
		}
		if opts.OnAuthRequired != nil {
			c.onAuth = opts.OnAuthRequired
		}
		if opts.Logf != nil {
			c.logf = opts.Logf
		}
	}
	return c
}

// SetUser switches the controller to a user, tearing down any previous
// polling loop and starting a fresh one with an immediate query. An empty
// user id stops polling entirely.
func (c *Controller) SetUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID == userID {
		return
	}
	c.userID = userID
	c.snapshot = nil
	c.epoch++
	c.restartLocked()
}

// Resume adopts a persisted run id, e.g. the one held before a restart.
func (c *Controller) Resume(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runID == runID {
		return
	}
	c.runID = runID
	c.snapshot = nil
	c.epoch++
	c.restartLocked()
}

// Start submits a new run for the current user. It fails fast, without any
// network call, when no user or no credential is available; that is a hard
// precondition, not a retry case. A service failure is surfaced to the
// caller for user-visible reporting and is never auto-retried. The caller is
// responsible for not starting while Active reports true.
func (c *Controller) Start(ctx context.Context, profileText string) (string, error) {
	c.mu.Lock()
	userID := c.userID
	if userID == "" {
		c.mu.Unlock()
		return "", &api.AuthError{Op: "start run"}
	}
	c.starting = true
	c.mu.Unlock()

	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		c.setStarting(false)
		return "", &api.AuthError{Op: "start run"}
	}

	runID, err := c.svc.StartRun(ctx, token, userID, profileText)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if err != nil {
		return "", err
	}
	c.runID = runID
	c.snapshot = nil
	c.epoch++
	c.persistRunIDLocked(runID)
	c.restartLocked()
	return runID, nil
}

// Reset unconditionally clears the persisted run id and the snapshot. Safe
// at any time; an in-flight status response is not aborted, merely discarded
// by the epoch guard when it lands.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearRunLocked()
}

// Stop tears down the polling loop. State is retained.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Snapshot returns the latest snapshot, or nil. Snapshots are immutable;
// callers must not modify the returned value.
func (c *Controller) Snapshot() *types.RunSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// RunID returns the currently held run id, or "".
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Starting reports whether a start request is in flight.
func (c *Controller) Starting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starting
}

// Active reports whether the latest snapshot shows a run still in progress.
// Callers must disable the start action while this is true.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot != nil && c.snapshot.Run.Status.Active()
}

// Phase classifies the controller state for the presentation layer.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.starting:
		return PhaseStarting
	case c.snapshot == nil:
		return PhaseIdle
	case c.snapshot.Run.Status.Terminal():
		return PhaseTerminal
	case c.snapshot.Run.Status.Active():
		return PhaseActive
	default:
		return PhaseIdle
	}
}

// ClearStuck applies the stuck-run heuristic on demand and reports whether
// it cleared anything. It also runs automatically after every snapshot
// update; calling it again after a clear is a no-op.
func (c *Controller) ClearStuck() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cleared, _ := c.clearStuckLocked()
	return cleared
}

func (c *Controller) setStarting(v bool) {
	c.mu.Lock()
	c.starting = v
	c.mu.Unlock()
}

func (c *Controller) notifyAuthRequired() {
	if c.onAuth != nil {
		c.onAuth()
	}
}

func (c *Controller) persistRunIDLocked(runID string) {
	if c.persist == nil {
		return
	}
	if err := c.persist.SetLastRunID(runID); err != nil {
		c.logf("runctl: failed to persist run id: %v", err)
	}
}

// clearRunLocked drops the run id and snapshot, bumps the epoch so stale
// responses are discarded, and restarts polling for the bare user.
func (c *Controller) clearRunLocked() {
	c.runID = ""
	c.snapshot = nil
	c.epoch++
	c.persistRunIDLocked("")
	c.restartLocked()
}

// Stuck reports whether snap shows a run abandoned in a non-terminal-but-
// inactive state: status pending or error with a started_at older than
// threshold. A missing started_at counts as 0 and is stale on sight.
func Stuck(snap *types.RunSnapshot, now time.Time, threshold time.Duration) bool {
	if snap == nil {
		return false
	}
	status := snap.Run.Status
	if status != types.RunPending && status != types.RunError {
		return false
	}
	return now.UnixMilli()-snap.Run.StartedAtMillis() > threshold.Milliseconds()
}

// clearStuckLocked clears the run when the held snapshot is stuck. The
// second result reports whether the active loop was superseded: when the run
// id is already empty only the snapshot is dropped and the current loop
// keeps its cadence, so repeated stale reports for the user's latest run do
// not degenerate into back-to-back restart-and-query cycles.
func (c *Controller) clearStuckLocked() (cleared, superseded bool) {
	if !Stuck(c.snapshot, c.now(), c.stuckAfter) {
		return false, false
	}
	c.logf("runctl: clearing stuck run %s (status %s)", c.snapshot.Run.RunID, c.snapshot.Run.Status)
	c.snapshot = nil
	if c.runID == "" {
		return true, false
	}
	c.clearRunLocked()
	return true, true
}

// restartLocked cancels the previous polling loop and, when a user is set,
// launches a new one for the current (user, run) pair. Exactly one loop is
// live at a time.
func (c *Controller) restartLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.userID == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.pollLoop(ctx, c.epoch, c.userID, c.runID)
}

// pollLoop queries immediately, then on a fixed interval, until cancelled or
// until pollOnce reports there is nothing left to poll for.
func (c *Controller) pollLoop(ctx context.Context, epoch uint64, userID, runID string) {
	if !c.pollOnce(ctx, epoch, userID, runID) {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !c.pollOnce(ctx, epoch, userID, runID) {
			return
		}
	}
}

// pollOnce issues one status query and folds the result into controller
// state. Returns false when this loop should stop: the run reached a
// terminal status, or the loop's (user, run) pair has been superseded.
func (c *Controller) pollOnce(ctx context.Context, epoch uint64, userID, runID string) bool {
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			return false
		}
		c.snapshot = nil
		c.mu.Unlock()
		c.notifyAuthRequired()
		return true
	}

	snap, err := c.svc.GetStatus(ctx, token, userID, runID)

	c.mu.Lock()
	if c.epoch != epoch {
		// Response for a superseded (user, run) pair: discard.
		c.mu.Unlock()
		return false
	}
	if err != nil {
		// Drop the snapshot rather than show it stale; a stale "active"
		// display would block the user from starting a new run.
		c.snapshot = nil
		c.mu.Unlock()
		if api.IsAuthRequired(err) {
			c.notifyAuthRequired()
		} else if ctx.Err() == nil {
			c.logf("runctl: poll failed for %s: %v", userID, err)
		}
		return true
	}

	c.snapshot = snap
	terminal := snap.Run.Status.Terminal()
	// Stuck evaluation runs after the update so a snapshot that just became
	// stale-pending clears in the same tick. A clear that forgets the run id
	// bumps the epoch and spawns a fresh loop, so this one stands down.
	if _, superseded := c.clearStuckLocked(); superseded {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()
	return !terminal
}
