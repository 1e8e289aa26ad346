package agent

import (
	"context"
	"errors"

	"regsniper/internal/model"
	"regsniper/internal/portal"
)

// tick is the retry timer callback.
func (a *Agent) tick() {
	a.mu.Lock()
	if a.closed || !a.state.Running {
		a.mu.Unlock()
		return
	}
	ctx := a.actCtx
	a.wg.Add(1)
	a.mu.Unlock()

	defer a.wg.Done()
	a.attempt(ctx)
}

// attempt counts one retry, persists the counter and runs the
// direct-registration protocol.
func (a *Agent) attempt(ctx context.Context) {
	a.mu.Lock()
	if !a.state.Running || ctx.Err() != nil {
		a.mu.Unlock()
		return
	}
	a.state.AttemptCount++
	n := a.state.AttemptCount
	ids := append([]string(nil), a.state.TargetIdentifiers...)
	a.nextAttemptAt = a.now().Add(intervalOf(a.state))
	a.mu.Unlock()

	done := a.beginAct()
	defer done()

	if err := a.store.Set(persistCtx(ctx), map[string]any{model.KeyAttemptCount: n}); err != nil {
		a.log("warn", "persist attempt count failed", map[string]any{"error": err.Error()})
	}
	a.publishStatus()
	a.register(ctx, n, ids)
}

func (a *Agent) register(ctx context.Context, attempt int, ids []string) {
	pageURL, err := a.page.URL(ctx)
	if err != nil {
		a.logPageError("read page url failed", err)
		return
	}
	if !a.contract.IsRegistrationPage(pageURL) {
		a.log("debug", "not on registration page", map[string]any{"url": pageURL})
		return
	}

	a.log("info", "starting registration attempt", map[string]any{"attempt": attempt})
	filled, err := a.contract.FillIdentifiers(ctx, a.page, ids)
	if err != nil {
		a.logPageError("fill identifiers failed", err)
		return
	}

	commit, err := a.contract.FindCommit(ctx, a.page)
	if err != nil {
		a.logPageError("commit control not found", err)
		return
	}
	if !a.live(ctx) || !a.allowSubmit() {
		return
	}
	// A latch left over from a half-finished cycle must not suppress the
	// waitlist step that follows this submission.
	if err := a.setLatch(ctx, false); err != nil {
		a.log("warn", "reset waitlist latch failed", map[string]any{"error": err.Error()})
		return
	}

	a.submit(ctx, commit, model.SubmissionEvent{
		Kind:              model.SubmissionRegister,
		Attempt:           attempt,
		TargetIdentifiers: ids,
		Filled:            filled,
		PageURL:           pageURL,
	})
}

// submit invokes the commit control. The page is expected to navigate away.
func (a *Agent) submit(ctx context.Context, commit portal.Element, evt model.SubmissionEvent) {
	a.log("info", "submitting", map[string]any{
		"kind":    string(evt.Kind),
		"attempt": evt.Attempt,
	})
	if err := commit.Click(ctx); err != nil {
		a.logPageError("commit click failed", err)
		return
	}
	if a.notifier != nil {
		evt.At = a.now().UnixMilli()
		a.notifier.NotifySubmission(persistCtx(ctx), evt)
	}
}

func (a *Agent) allowSubmit() bool {
	if a.limiter == nil || a.limiter.Allow() {
		return true
	}
	a.log("warn", "submission skipped by rate limit", nil)
	return false
}

// logPageError logs page failures; cancellation by a newer page load is silent.
func (a *Agent) logPageError(msg string, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, portal.ErrElementNotFound):
		a.log("info", msg, map[string]any{"error": err.Error()})
	default:
		a.log("warn", msg, map[string]any{"error": err.Error()})
	}
}
