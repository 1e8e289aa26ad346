package agent

import (
	"math"
	"time"

	"regsniper/internal/model"
)

// Status is the display snapshot, recomputed from the in-memory countdown.
func (a *Agent) Status() model.StatusSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusLocked()
}

func (a *Agent) statusLocked() model.StatusSnapshot {
	snap := model.StatusSnapshot{
		Visible:           a.state.Running,
		Running:           a.state.Running,
		Phase:             string(a.phaseLocked()),
		TargetIdentifiers: append([]string{}, a.state.TargetIdentifiers...),
		AttemptCount:      a.state.AttemptCount,
	}
	if a.state.Running && !a.nextAttemptAt.IsZero() {
		remaining := a.nextAttemptAt.Sub(a.now())
		snap.SecondsRemaining = int(math.Max(0, math.Ceil(remaining.Seconds())))
		snap.NextAttemptAtMs = a.nextAttemptAt.UnixMilli()
	}
	return snap
}

func (a *Agent) publishStatus() {
	if a.bus == nil {
		return
	}
	a.bus.Status(a.Status())
}

func (a *Agent) hideStatus() {
	if a.bus == nil {
		return
	}
	snap := a.Status()
	snap.Visible = false
	a.bus.Status(snap)
}

func intervalOf(st model.PersistedState) time.Duration {
	return time.Duration(st.IntervalSeconds) * time.Second
}
