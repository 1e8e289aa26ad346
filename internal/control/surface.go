// Package control is the operator side: it validates operator input and
// dispatches start/stop commands to the agent host.
package control

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"regsniper/internal/config"
	"regsniper/internal/model"
	"regsniper/internal/portal"
)

// Operator-facing status lines.
const (
	MsgOpenPortal    = "Please open Minerva registration page first"
	MsgNoIdentifiers = "Please enter at least one CRN"
	MsgStarted       = "Registration process started..."
	MsgStopped       = "Registration process stopped."
	MsgRetry         = "Error: Please refresh the Minerva page and try again"
)

var (
	// ErrPrecondition means the input was rejected and no command was sent.
	ErrPrecondition = errors.New("precondition failed")
	ErrDelivery     = errors.New("command delivery failed")
)

// Channel reaches the agent bound to the active portal tab.
type Channel interface {
	// ActivePage returns the active tab URL, "" when there is none.
	ActivePage(ctx context.Context) (string, error)
	// EnsureAgent makes sure an agent is attached to the tab.
	EnsureAgent(ctx context.Context) error
	Send(ctx context.Context, cmd model.Command) error
}

type Surface struct {
	ch       Channel
	contract portal.Contract
}

func NewSurface(ch Channel, contract portal.Contract) *Surface {
	return &Surface{ch: ch, contract: contract}
}

// Start validates the raw operator input and sends the start command. The
// returned message is always meant for the operator; err classifies it.
func (s *Surface) Start(ctx context.Context, rawIdentifiers, rawInterval string) (string, error) {
	pageURL, err := s.ch.ActivePage(ctx)
	if err != nil {
		return MsgRetry, errors.Join(ErrDelivery, err)
	}
	if !s.contract.IsPortalHost(pageURL) {
		return MsgOpenPortal, ErrPrecondition
	}

	ids := ParseIdentifiers(rawIdentifiers)
	if len(ids) == 0 {
		return MsgNoIdentifiers, ErrPrecondition
	}
	interval := ClampIntervalInput(rawInterval)

	// An agent that is already attached reports an error here; that is fine.
	_ = s.ch.EnsureAgent(ctx)

	if err := s.ch.Send(ctx, model.NewStartCommand(ids, interval)); err != nil {
		return MsgRetry, errors.Join(ErrDelivery, err)
	}
	return MsgStarted, nil
}

// Stop sends the stop command. It always reports success to the operator;
// the delivery error, if any, is returned for logging only.
func (s *Surface) Stop(ctx context.Context) (string, error) {
	return MsgStopped, s.ch.Send(ctx, model.NewStopCommand())
}

// ParseIdentifiers splits on line breaks and drops blank entries.
func ParseIdentifiers(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// ClampIntervalInput reads the leading integer of raw, falls back to the
// default when there is none (or it is zero) and clamps to the allowed range.
func ClampIntervalInput(raw string) int {
	n := leadingInt(strings.TrimSpace(raw))
	if n == 0 {
		n = config.DefaultIntervalSeconds
	}
	return model.ClampInterval(n)
}

func leadingInt(s string) int {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// Out of int range: the sign decides which bound it clamps to.
		if s[0] == '-' {
			return config.MinIntervalSeconds
		}
		return config.MaxIntervalSeconds
	}
	return n
}
