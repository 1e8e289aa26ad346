package agent

import (
	"context"
	"encoding/json"

	"regsniper/internal/config"
	"regsniper/internal/model"
)

// KV is the storage that survives page navigation and process restarts.
// Set overwrites exactly the keys it is given.
type KV interface {
	Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, values map[string]any) error
}

// loadState reads all persisted keys, falling back to idle defaults for
// anything missing or unreadable.
func (a *Agent) loadState(ctx context.Context) (model.PersistedState, error) {
	raw, err := a.store.Get(ctx, model.StateKeys)
	if err != nil {
		return model.PersistedState{}, err
	}
	st := model.IdleState()
	decode := func(key string, dst any) {
		v, ok := raw[key]
		if !ok || len(v) == 0 {
			return
		}
		if err := json.Unmarshal(v, dst); err != nil {
			a.log("warn", "ignoring unreadable persisted value", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	decode(model.KeyRunning, &st.Running)
	decode(model.KeyTargetIdentifiers, &st.TargetIdentifiers)
	decode(model.KeyIntervalSeconds, &st.IntervalSeconds)
	decode(model.KeyWaitlistSubmittedPending, &st.WaitlistSubmittedPending)
	decode(model.KeyAttemptCount, &st.AttemptCount)

	if st.TargetIdentifiers == nil {
		st.TargetIdentifiers = []string{}
	}
	if st.IntervalSeconds <= 0 {
		st.IntervalSeconds = config.DefaultIntervalSeconds
	}
	st.IntervalSeconds = model.ClampInterval(st.IntervalSeconds)
	if st.AttemptCount < 0 {
		st.AttemptCount = 0
	}
	return st, nil
}

// persistCtx keeps a write alive when the evaluation that issued it is cancelled.
func persistCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (a *Agent) setLatch(ctx context.Context, v bool) error {
	if err := a.store.Set(persistCtx(ctx), map[string]any{model.KeyWaitlistSubmittedPending: v}); err != nil {
		return err
	}
	a.mu.Lock()
	a.state.WaitlistSubmittedPending = v
	a.mu.Unlock()
	return nil
}
