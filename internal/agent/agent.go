// Package agent drives the registration retry loop against one portal page.
//
// The agent keeps no state that matters only in memory: every load of the
// page calls Initialize, which rebuilds the agent from the KV store exactly
// as it was before the navigation.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"regsniper/internal/config"
	"regsniper/internal/logbus"
	"regsniper/internal/model"
	"regsniper/internal/portal"
)

var (
	ErrNoIdentifiers  = errors.New("at least one target identifier is required")
	ErrUnknownCommand = errors.New("unknown command")
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseArmed   Phase = "armed"
	PhaseWaiting Phase = "waiting"
	PhaseActing  Phase = "acting"
)

type Notifier interface {
	NotifySubmission(ctx context.Context, evt model.SubmissionEvent)
}

type Options struct {
	Store     KV
	Page      portal.Page
	Contract  portal.Contract
	Scheduler Scheduler
	Bus       *logbus.Bus
	Notifier  Notifier

	// ResultsWait bounds the wait for the results table; 0 waits until the
	// page generation ends.
	ResultsWait time.Duration
	StatusTick  time.Duration
	// SubmitLimiter paces commit invocations when set.
	SubmitLimiter *rate.Limiter
	Now           func() time.Time
}

type Agent struct {
	store    KV
	page     portal.Page
	contract portal.Contract
	sched    Scheduler
	bus      *logbus.Bus
	notifier Notifier

	resultsWait time.Duration
	statusTick  time.Duration
	limiter     *rate.Limiter
	now         func() time.Time

	// lifecycle serialises Initialize, Start and Stop.
	lifecycle sync.Mutex

	mu            sync.Mutex
	state         model.PersistedState
	acting        int
	cancelTimer   func()
	cancelStatus  func()
	nextAttemptAt time.Time
	actCtx        context.Context
	actCancel     context.CancelFunc

	// closed is set by Close; timer fires after it start no work.
	closed bool
	wg     sync.WaitGroup
}

func New(opts Options) *Agent {
	sched := opts.Scheduler
	if sched == nil {
		sched = ClockScheduler{}
	}
	statusTick := opts.StatusTick
	if statusTick <= 0 {
		statusTick = time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	actCtx, actCancel := context.WithCancel(context.Background())
	return &Agent{
		store:       opts.Store,
		page:        opts.Page,
		contract:    opts.Contract,
		sched:       sched,
		bus:         opts.Bus,
		notifier:    opts.Notifier,
		resultsWait: opts.ResultsWait,
		statusTick:  statusTick,
		limiter:     opts.SubmitLimiter,
		now:         now,
		state:       model.IdleState(),
		actCtx:      actCtx,
		actCancel:   actCancel,
	}
}

// Initialize is the page-load entry point. It drops everything held in
// memory, rehydrates from the store and, when a session is running, runs one
// waitlist evaluation before arming the retry timer.
func (a *Agent) Initialize(ctx context.Context) (model.PersistedState, error) {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	a.stopTimersLocked()
	actCtx := a.renewActContextLocked()
	a.mu.Unlock()

	st, err := a.loadState(ctx)
	if err != nil {
		return model.PersistedState{}, fmt.Errorf("load state: %w", err)
	}

	a.mu.Lock()
	a.state = st
	a.nextAttemptAt = time.Time{}
	a.mu.Unlock()

	if !st.Running {
		a.hideStatus()
		return st, nil
	}

	a.publishStatus()
	a.spawn(actCtx, a.handleWaitlist)

	a.mu.Lock()
	a.armLocked(st.IntervalSeconds)
	a.mu.Unlock()

	a.log("info", "restored registration session", map[string]any{
		"targetIdentifiers": st.TargetIdentifiers,
		"intervalSeconds":   st.IntervalSeconds,
		"attemptCount":      st.AttemptCount,
	})
	return st, nil
}

// Start replaces the session, persists it and acts immediately.
func (a *Agent) Start(ctx context.Context, ids []string, intervalSeconds int) error {
	ids = cleanIdentifiers(ids)
	if len(ids) == 0 {
		return ErrNoIdentifiers
	}
	if intervalSeconds <= 0 {
		intervalSeconds = config.DefaultIntervalSeconds
	}
	intervalSeconds = model.ClampInterval(intervalSeconds)

	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	st := model.PersistedState{
		Session: model.Session{
			Running:           true,
			TargetIdentifiers: ids,
			IntervalSeconds:   intervalSeconds,
		},
	}
	if err := a.store.Set(ctx, st.Values()); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	a.mu.Lock()
	a.state = st
	a.stopTimersLocked()
	actCtx := a.renewActContextLocked()
	a.mu.Unlock()

	a.publishStatus()
	a.spawn(actCtx, func(ctx context.Context) {
		a.attempt(ctx)
		a.handleWaitlist(ctx)
	})

	a.mu.Lock()
	a.armLocked(intervalSeconds)
	a.mu.Unlock()

	a.log("info", "registration process started", map[string]any{
		"targetIdentifiers": ids,
		"intervalSeconds":   intervalSeconds,
	})
	return nil
}

// Stop clears the session. Evaluations still in flight are cancelled at
// their next wait and can no longer submit.
func (a *Agent) Stop(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	idle := model.IdleState()
	if err := a.store.Set(ctx, idle.Values()); err != nil {
		return fmt.Errorf("persist stop: %w", err)
	}

	a.mu.Lock()
	a.state = idle
	a.stopTimersLocked()
	a.renewActContextLocked()
	a.nextAttemptAt = time.Time{}
	a.mu.Unlock()

	a.hideStatus()
	a.log("info", "registration process stopped", nil)
	return nil
}

func (a *Agent) HandleCommand(ctx context.Context, cmd model.Command) error {
	switch cmd.Action {
	case model.ActionStartRegistration:
		return a.Start(ctx, cmd.TargetIdentifiers, cmd.IntervalSeconds)
	case model.ActionStopRegistration:
		return a.Stop(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Action)
	}
}

// State returns the in-memory copy of the persisted state.
func (a *Agent) State() model.PersistedState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneState(a.state)
}

func (a *Agent) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phaseLocked()
}

// Wait blocks until every in-flight evaluation has returned.
func (a *Agent) Wait() {
	a.wg.Wait()
}

// Close stops timers and in-flight evaluations without touching the store,
// so the session resumes on the next start of the process.
func (a *Agent) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.stopTimersLocked()
	a.actCancel()
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) phaseLocked() Phase {
	switch {
	case !a.state.Running:
		return PhaseIdle
	case a.acting > 0:
		return PhaseActing
	case a.cancelTimer == nil:
		return PhaseArmed
	default:
		return PhaseWaiting
	}
}

func (a *Agent) armLocked(intervalSeconds int) {
	d := time.Duration(intervalSeconds) * time.Second
	a.cancelTimer = a.sched.Every(d, a.tick)
	a.cancelStatus = a.sched.Every(a.statusTick, a.publishStatus)
	a.nextAttemptAt = a.now().Add(d)
}

func (a *Agent) stopTimersLocked() {
	if a.cancelTimer != nil {
		a.cancelTimer()
		a.cancelTimer = nil
	}
	if a.cancelStatus != nil {
		a.cancelStatus()
		a.cancelStatus = nil
	}
}

// renewActContextLocked ends the current page generation and starts a new one.
func (a *Agent) renewActContextLocked() context.Context {
	a.actCancel()
	a.actCtx, a.actCancel = context.WithCancel(context.Background())
	return a.actCtx
}

func (a *Agent) spawn(ctx context.Context, fn func(context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(ctx)
	}()
}

// beginAct marks an evaluation as running; the returned func ends it.
func (a *Agent) beginAct() func() {
	a.mu.Lock()
	a.acting++
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		a.acting--
		a.mu.Unlock()
	}
}

// live reports whether an evaluation bound to ctx may still touch the page.
func (a *Agent) live(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Running
}

func (a *Agent) log(level, msg string, fields map[string]any) {
	if a.bus != nil {
		a.bus.Log(level, msg, fields)
	}
}

func cleanIdentifiers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	return out
}

func cloneState(st model.PersistedState) model.PersistedState {
	st.TargetIdentifiers = append([]string{}, st.TargetIdentifiers...)
	return st
}
