package model

import "github.com/google/uuid"

type CommandAction string

const (
	ActionStartRegistration CommandAction = "START_REGISTRATION"
	ActionStopRegistration  CommandAction = "STOP_REGISTRATION"
)

type Command struct {
	ID                string        `json:"id,omitempty"`
	Action            CommandAction `json:"action"`
	TargetIdentifiers []string      `json:"targetIdentifiers,omitempty"`
	IntervalSeconds   int           `json:"intervalSeconds,omitempty"`
}

func NewStartCommand(ids []string, intervalSeconds int) Command {
	return Command{
		ID:                uuid.NewString(),
		Action:            ActionStartRegistration,
		TargetIdentifiers: ids,
		IntervalSeconds:   intervalSeconds,
	}
}

func NewStopCommand() Command {
	return Command{ID: uuid.NewString(), Action: ActionStopRegistration}
}

type SubmissionKind string

const (
	SubmissionRegister SubmissionKind = "register"
	SubmissionWaitlist SubmissionKind = "waitlist"
)

// SubmissionEvent records one commit invocation.
type SubmissionEvent struct {
	At                int64          `json:"atMs"`
	Kind              SubmissionKind `json:"kind"`
	Attempt           int            `json:"attempt"`
	TargetIdentifiers []string       `json:"targetIdentifiers,omitempty"`
	Filled            int            `json:"filled,omitempty"`
	Waitlisted        int            `json:"waitlisted,omitempty"`
	PageURL           string         `json:"pageUrl,omitempty"`
}
