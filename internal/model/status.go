package model

// StatusSnapshot is the display-only view of a running session.
type StatusSnapshot struct {
	Visible           bool     `json:"visible"`
	Running           bool     `json:"running"`
	Phase             string   `json:"phase"`
	TargetIdentifiers []string `json:"targetIdentifiers"`
	AttemptCount      int      `json:"attemptCount"`
	SecondsRemaining  int      `json:"secondsRemaining"`
	NextAttemptAtMs   int64    `json:"nextAttemptAtMs,omitempty"`
	PageURL           string   `json:"pageUrl,omitempty"`
}
