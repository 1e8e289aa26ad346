package model

import "regsniper/internal/config"

// Persisted state keys. Each key is stored as its own row so a mid-cycle
// write of one field never touches the others.
const (
	KeyRunning                  = "running"
	KeyTargetIdentifiers        = "targetIdentifiers"
	KeyIntervalSeconds          = "intervalSeconds"
	KeyWaitlistSubmittedPending = "waitlistSubmittedPending"
	KeyAttemptCount             = "attemptCount"
)

// StateKeys lists every persisted key in load order.
var StateKeys = []string{
	KeyRunning,
	KeyTargetIdentifiers,
	KeyIntervalSeconds,
	KeyWaitlistSubmittedPending,
	KeyAttemptCount,
}

type Session struct {
	Running           bool     `json:"running"`
	TargetIdentifiers []string `json:"targetIdentifiers"`
	IntervalSeconds   int      `json:"intervalSeconds"`
}

type Progress struct {
	AttemptCount int `json:"attemptCount"`
	// WaitlistSubmittedPending is set right before a waitlist submission and
	// consumed by the next page load.
	WaitlistSubmittedPending bool `json:"waitlistSubmittedPending"`
}

type PersistedState struct {
	Session
	Progress
}

// IdleState is what Stop writes and what an empty store reads back as.
func IdleState() PersistedState {
	return PersistedState{
		Session: Session{
			Running:           false,
			TargetIdentifiers: []string{},
			IntervalSeconds:   config.DefaultIntervalSeconds,
		},
	}
}

// Values flattens the state into the key/value group written at Start and Stop.
func (s PersistedState) Values() map[string]any {
	ids := s.TargetIdentifiers
	if ids == nil {
		ids = []string{}
	}
	return map[string]any{
		KeyRunning:                  s.Running,
		KeyTargetIdentifiers:        ids,
		KeyIntervalSeconds:          s.IntervalSeconds,
		KeyWaitlistSubmittedPending: s.WaitlistSubmittedPending,
		KeyAttemptCount:             s.AttemptCount,
	}
}

// ClampInterval coerces seconds into [MinIntervalSeconds, MaxIntervalSeconds].
func ClampInterval(seconds int) int {
	if seconds < config.MinIntervalSeconds {
		return config.MinIntervalSeconds
	}
	if seconds > config.MaxIntervalSeconds {
		return config.MaxIntervalSeconds
	}
	return seconds
}
