package agent

import (
	"context"

	"regsniper/internal/model"
)

// handleWaitlist is the waitlist fallback run on every load. When the latch
// is set this load is the result of our own waitlist submission and nothing
// is done besides clearing it.
func (a *Agent) handleWaitlist(ctx context.Context) {
	a.mu.Lock()
	running := a.state.Running
	latched := a.state.WaitlistSubmittedPending
	attempt := a.state.AttemptCount
	ids := append([]string(nil), a.state.TargetIdentifiers...)
	a.mu.Unlock()
	if !running {
		return
	}

	done := a.beginAct()
	defer done()

	if latched {
		a.log("info", "waitlist already submitted, skipping", nil)
		if err := a.setLatch(ctx, false); err != nil {
			a.log("warn", "clear waitlist latch failed", map[string]any{"error": err.Error()})
		}
		return
	}

	pageURL, err := a.page.URL(ctx)
	if err != nil {
		a.logPageError("read page url failed", err)
		return
	}
	if !a.contract.IsRegistrationPage(pageURL) {
		a.log("debug", "not on registration page", map[string]any{"url": pageURL})
		return
	}

	a.log("debug", "waiting for results table", nil)
	if err := a.contract.WaitResults(ctx, a.page, a.resultsWait); err != nil {
		a.logPageError("results table not found", err)
		return
	}
	if !a.live(ctx) {
		return
	}

	selected, err := a.contract.SelectWaitlist(ctx, a.page)
	if err != nil {
		a.logPageError("select waitlist option failed", err)
		if selected == 0 {
			return
		}
	}
	if selected == 0 {
		a.log("info", "no waitlist options found", nil)
		return
	}

	commit, err := a.contract.FindCommit(ctx, a.page)
	if err != nil {
		a.logPageError("commit control not found for waitlist submission", err)
		return
	}
	if !a.live(ctx) || !a.allowSubmit() {
		return
	}
	// The navigation triggered by the click may tear the page down at any
	// moment, so the latch must be durable before clicking.
	if err := a.setLatch(ctx, true); err != nil {
		a.log("warn", "set waitlist latch failed", map[string]any{"error": err.Error()})
		return
	}

	a.submit(ctx, commit, model.SubmissionEvent{
		Kind:              model.SubmissionWaitlist,
		Attempt:           attempt,
		TargetIdentifiers: ids,
		Waitlisted:        selected,
		PageURL:           pageURL,
	})
}
