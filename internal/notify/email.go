package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"sync"
	"time"

	"gopkg.in/gomail.v2"

	"regsniper/internal/logbus"
	"regsniper/internal/model"
)

const fromName = "regsniper"

// SettingsSource supplies the current email settings; ok is false when none are saved.
type SettingsSource interface {
	GetEmailSettings(ctx context.Context) (model.EmailSettings, bool, error)
}

// Sender delivers one summary message.
type Sender func(ctx context.Context, settings model.EmailSettings, events []model.SubmissionEvent) error

type EmailNotifier struct {
	settings SettingsSource
	bus      *logbus.Bus
	send     Sender

	mu     sync.Mutex
	queue  chan model.SubmissionEvent
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup

	summaryWindow time.Duration
	maxBatch      int
}

type EmailOption func(*EmailNotifier)

// WithSummaryWindow batches events arriving within d of each other. 0 sends each immediately.
func WithSummaryWindow(d time.Duration) EmailOption {
	return func(n *EmailNotifier) { n.summaryWindow = d }
}

func WithSender(s Sender) EmailOption {
	return func(n *EmailNotifier) { n.send = s }
}

func NewEmailNotifier(settings SettingsSource, bus *logbus.Bus, opts ...EmailOption) *EmailNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &EmailNotifier{
		settings:      settings,
		bus:           bus,
		send:          SendSummaryEmail,
		queue:         make(chan model.SubmissionEvent, 200),
		ctx:           ctx,
		cancel:        cancel,
		summaryWindow: 20 * time.Second,
		maxBatch:      50,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.wg.Add(1)
	go n.loop()
	return n
}

func (n *EmailNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *EmailNotifier) NotifySubmission(_ context.Context, evt model.SubmissionEvent) {
	select {
	case n.queue <- evt:
	default:
		n.log("warn", "email notification dropped: queue full", map[string]any{
			"kind":    string(evt.Kind),
			"attempt": evt.Attempt,
		})
	}
}

func (n *EmailNotifier) loop() {
	defer n.wg.Done()

	var (
		pending []model.SubmissionEvent
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	stopTimer := func() {
		if timer == nil {
			return
		}
		timer.Stop()
		timer = nil
		timerCh = nil
	}

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(n.summaryWindow)
			timerCh = timer.C
			return
		}
		timer.Reset(n.summaryWindow)
	}

	flush := func(reason string) {
		stopTimer()
		if len(pending) == 0 {
			return
		}
		events := append([]model.SubmissionEvent(nil), pending...)
		pending = pending[:0]
		n.handleBatch(reason, events)
	}

	for {
		select {
		case <-n.ctx.Done():
			flush("shutdown")
			return
		case evt := <-n.queue:
			pending = append(pending, evt)
			if n.maxBatch > 0 && len(pending) >= n.maxBatch {
				flush("max")
				continue
			}
			if n.summaryWindow <= 0 {
				flush("immediate")
				continue
			}
			resetTimer()
		case <-timerCh:
			flush("idle")
		}
	}
}

func (n *EmailNotifier) handleBatch(reason string, events []model.SubmissionEvent) {
	if n.settings == nil {
		return
	}
	// The notifier context is already cancelled on shutdown; the final flush still goes out.
	ctx := context.WithoutCancel(n.ctx)

	settings, ok, err := n.settings.GetEmailSettings(ctx)
	if err != nil {
		n.log("warn", "read email settings failed", map[string]any{"error": err.Error()})
		return
	}
	if !ok || !settings.Enabled {
		n.log("debug", "email notification disabled", map[string]any{
			"count":  len(events),
			"reason": reason,
		})
		return
	}
	if err := ValidateEmailSettings(settings); err != nil {
		n.log("warn", "invalid email settings", map[string]any{"error": err.Error()})
		return
	}

	if err := n.send(ctx, settings, events); err != nil {
		n.log("warn", "send email failed", map[string]any{
			"error":  err.Error(),
			"count":  len(events),
			"reason": reason,
		})
		return
	}
	n.log("info", "notification email sent", map[string]any{
		"count":  len(events),
		"reason": reason,
		"to":     strings.TrimSpace(settings.Email),
	})
}

func (n *EmailNotifier) log(level, msg string, fields map[string]any) {
	if n.bus != nil {
		n.bus.Log(level, msg, fields)
	}
}

func ValidateEmailSettings(s model.EmailSettings) error {
	email := strings.TrimSpace(s.Email)
	if email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("invalid email")
	}
	if strings.TrimSpace(s.AuthCode) == "" {
		return errors.New("authCode is required")
	}
	return nil
}

// SendSummaryEmail mails one summary of events to the configured address, from itself.
func SendSummaryEmail(ctx context.Context, settings model.EmailSettings, events []model.SubmissionEvent) error {
	if err := ValidateEmailSettings(settings); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(events) == 0 {
		return errors.New("no events")
	}

	email := strings.TrimSpace(settings.Email)
	host, port, useSSL, err := smtpConfigForEmail(email)
	if err != nil {
		return err
	}
	htmlBody, textBody, err := buildSummaryEmailBody(events)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(email, fromName))
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", buildSummarySubject(events))
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(host, port, email, strings.TrimSpace(settings.AuthCode))
	d.SSL = useSSL
	return d.DialAndSend(msg)
}

func smtpConfigForEmail(email string) (host string, port int, useSSL bool, err error) {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", 0, false, errors.New("invalid email format")
	}
	domain := strings.ToLower(strings.TrimSpace(parts[1]))

	switch {
	case domain == "gmail.com" || strings.HasSuffix(domain, ".gmail.com"):
		return "smtp.gmail.com", 587, false, nil
	case domain == "mcgill.ca" || strings.HasSuffix(domain, ".mcgill.ca"),
		domain == "outlook.com" || strings.HasSuffix(domain, ".outlook.com"),
		domain == "hotmail.com" || strings.HasSuffix(domain, ".hotmail.com"),
		domain == "live.com" || strings.HasSuffix(domain, ".live.com"):
		return "smtp.office365.com", 587, false, nil
	case domain == "yahoo.com" || strings.HasSuffix(domain, ".yahoo.com"):
		return "smtp.mail.yahoo.com", 465, true, nil
	case domain == "icloud.com" || domain == "me.com":
		return "smtp.mail.me.com", 587, false, nil
	default:
		return "smtp." + domain, 465, true, nil
	}
}

func buildSummarySubject(events []model.SubmissionEvent) string {
	var reg, wl int
	for _, evt := range events {
		if evt.Kind == model.SubmissionWaitlist {
			wl++
		} else {
			reg++
		}
	}
	switch {
	case wl == 0:
		return fmt.Sprintf("Registration submitted (%d)", reg)
	case reg == 0:
		return fmt.Sprintf("Waitlist submitted (%d)", wl)
	default:
		return fmt.Sprintf("Registration submitted (%d), waitlist submitted (%d)", reg, wl)
	}
}

var emailSummaryHTMLTpl = template.Must(template.New("email-summary").Parse(`
<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>Submission summary</title>
  </head>
  <body style="margin:0;padding:0;background:#f6f8fb;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Arial,sans-serif;">
    <div style="max-width:720px;margin:0 auto;padding:24px;">
      <div style="background:#ffffff;border:1px solid #e6e8ef;border-radius:14px;overflow:hidden;">
        <div style="padding:18px 22px;background:#ed1b2f;color:#ffffff;">
          <div style="font-size:16px;font-weight:700;">Submission summary</div>
        </div>
        <div style="padding:22px;">
          <div style="font-size:14px;color:#111827;">
            <strong>{{ .Total }}</strong> submissions, {{ .Start }} to {{ .End }}
          </div>
          <table role="presentation" cellspacing="0" cellpadding="0" border="0" style="margin-top:12px;width:100%;border-collapse:collapse;">
            <thead>
              <tr style="background:#fafbff;">
                <th style="padding:10px 12px;text-align:left;font-size:12px;color:#6b7280;">Time</th>
                <th style="padding:10px 12px;text-align:left;font-size:12px;color:#6b7280;">Kind</th>
                <th style="padding:10px 12px;text-align:left;font-size:12px;color:#6b7280;">Attempt</th>
                <th style="padding:10px 12px;text-align:left;font-size:12px;color:#6b7280;">CRNs</th>
              </tr>
            </thead>
            <tbody>
              {{ range .Rows }}
              <tr>
                <td style="padding:10px 12px;font-size:12px;color:#111827;">{{ .At }}</td>
                <td style="padding:10px 12px;font-size:12px;color:#111827;">{{ .Kind }}</td>
                <td style="padding:10px 12px;font-size:12px;color:#111827;">{{ .Attempt }}</td>
                <td style="padding:10px 12px;font-size:12px;color:#111827;">{{ .Identifiers }}</td>
              </tr>
              {{ end }}
            </tbody>
          </table>
          <div style="margin-top:14px;color:#9ca3af;font-size:12px;">
            Check Minerva for the outcome of each submission.
          </div>
        </div>
      </div>
    </div>
  </body>
</html>
`))

type summaryRow struct {
	At          string
	Kind        string
	Attempt     int
	Identifiers string
}

func buildSummaryEmailBody(events []model.SubmissionEvent) (htmlBody string, textBody string, err error) {
	if len(events) == 0 {
		return "", "", errors.New("no events")
	}

	rows := make([]summaryRow, 0, len(events))
	var minAt, maxAt time.Time
	for i, evt := range events {
		at := time.Now()
		if evt.At > 0 {
			at = time.UnixMilli(evt.At)
		}
		if i == 0 || at.Before(minAt) {
			minAt = at
		}
		if i == 0 || at.After(maxAt) {
			maxAt = at
		}
		rows = append(rows, summaryRow{
			At:          at.Format("2006-01-02 15:04:05"),
			Kind:        kindLabel(evt.Kind),
			Attempt:     evt.Attempt,
			Identifiers: strings.Join(evt.TargetIdentifiers, ", "),
		})
	}

	data := struct {
		Total int
		Start string
		End   string
		Rows  []summaryRow
	}{
		Total: len(events),
		Start: minAt.Format("2006-01-02 15:04:05"),
		End:   maxAt.Format("2006-01-02 15:04:05"),
		Rows:  rows,
	}

	var buf bytes.Buffer
	if err := emailSummaryHTMLTpl.Execute(&buf, data); err != nil {
		return "", "", err
	}

	text := new(strings.Builder)
	text.WriteString("Submission summary\n")
	fmt.Fprintf(text, "%d submissions, %s to %s\n", len(events), data.Start, data.End)
	for _, row := range rows {
		fmt.Fprintf(text, "- %s | %s | attempt %d | CRNs %s\n", row.At, row.Kind, row.Attempt, row.Identifiers)
	}
	return buf.String(), text.String(), nil
}

func kindLabel(k model.SubmissionKind) string {
	switch k {
	case model.SubmissionWaitlist:
		return "waitlist"
	default:
		return "registration"
	}
}
