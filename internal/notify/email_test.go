package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regsniper/internal/model"
)

type staticSettings struct {
	settings model.EmailSettings
	ok       bool
}

func (s staticSettings) GetEmailSettings(context.Context) (model.EmailSettings, bool, error) {
	return s.settings, s.ok, nil
}

type captureSender struct {
	mu      sync.Mutex
	batches [][]model.SubmissionEvent
}

func (c *captureSender) send(_ context.Context, _ model.EmailSettings, events []model.SubmissionEvent) error {
	c.mu.Lock()
	c.batches = append(c.batches, events)
	c.mu.Unlock()
	return nil
}

func (c *captureSender) Batches() [][]model.SubmissionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]model.SubmissionEvent(nil), c.batches...)
}

var enabled = staticSettings{
	settings: model.EmailSettings{Enabled: true, Email: "student@mail.mcgill.ca", AuthCode: "secret"},
	ok:       true,
}

func TestEmailNotifierBatchesWithinWindow(t *testing.T) {
	sender := &captureSender{}
	n := NewEmailNotifier(enabled, nil, WithSummaryWindow(30*time.Millisecond), WithSender(sender.send))
	defer n.Close(context.Background())

	ctx := context.Background()
	n.NotifySubmission(ctx, model.SubmissionEvent{Kind: model.SubmissionRegister, Attempt: 1})
	n.NotifySubmission(ctx, model.SubmissionEvent{Kind: model.SubmissionWaitlist, Attempt: 1})

	require.Eventually(t, func() bool { return len(sender.Batches()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, sender.Batches()[0], 2)
}

func TestEmailNotifierFlushesOnClose(t *testing.T) {
	sender := &captureSender{}
	n := NewEmailNotifier(enabled, nil, WithSummaryWindow(time.Hour), WithSender(sender.send))

	n.NotifySubmission(context.Background(), model.SubmissionEvent{Kind: model.SubmissionRegister, Attempt: 3})
	require.Eventually(t, func() bool { return len(n.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, n.Close(context.Background()))

	require.Len(t, sender.Batches(), 1)
	assert.Equal(t, 3, sender.Batches()[0][0].Attempt)
}

func TestEmailNotifierDisabledSendsNothing(t *testing.T) {
	sender := &captureSender{}
	n := NewEmailNotifier(staticSettings{}, nil, WithSummaryWindow(0), WithSender(sender.send))

	n.NotifySubmission(context.Background(), model.SubmissionEvent{Kind: model.SubmissionRegister})
	require.NoError(t, n.Close(context.Background()))
	assert.Empty(t, sender.Batches())
}

func TestValidateEmailSettings(t *testing.T) {
	assert.Error(t, ValidateEmailSettings(model.EmailSettings{}))
	assert.Error(t, ValidateEmailSettings(model.EmailSettings{Email: "not-an-address", AuthCode: "x"}))
	assert.Error(t, ValidateEmailSettings(model.EmailSettings{Email: "a@b.com"}))
	assert.NoError(t, ValidateEmailSettings(model.EmailSettings{Email: "a@b.com", AuthCode: "x"}))
}

func TestSMTPConfigForEmail(t *testing.T) {
	host, port, ssl, err := smtpConfigForEmail("someone@mail.mcgill.ca")
	require.NoError(t, err)
	assert.Equal(t, "smtp.office365.com", host)
	assert.Equal(t, 587, port)
	assert.False(t, ssl)

	host, _, ssl, err = smtpConfigForEmail("x@example.org")
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.org", host)
	assert.True(t, ssl)

	_, _, _, err = smtpConfigForEmail("broken")
	assert.Error(t, err)
}

func TestSummaryBody(t *testing.T) {
	events := []model.SubmissionEvent{
		{At: time.Date(2026, 1, 5, 9, 0, 0, 0, time.Local).UnixMilli(), Kind: model.SubmissionRegister, Attempt: 4, TargetIdentifiers: []string{"12345", "67890"}},
		{At: time.Date(2026, 1, 5, 9, 0, 2, 0, time.Local).UnixMilli(), Kind: model.SubmissionWaitlist, Attempt: 4, TargetIdentifiers: []string{"12345"}},
	}
	html, text, err := buildSummaryEmailBody(events)
	require.NoError(t, err)
	assert.Contains(t, html, "12345, 67890")
	assert.Contains(t, text, "2 submissions, 2026-01-05 09:00:00 to 2026-01-05 09:00:02")
	assert.Contains(t, text, "waitlist | attempt 4")
	assert.Equal(t, "Registration submitted (1), waitlist submitted (1)", buildSummarySubject(events))
}
