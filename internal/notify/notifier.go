package notify

import (
	"context"

	"regsniper/internal/model"
)

type Notifier interface {
	NotifySubmission(ctx context.Context, evt model.SubmissionEvent)
}

// Nop discards every event.
type Nop struct{}

func (Nop) NotifySubmission(context.Context, model.SubmissionEvent) {}
