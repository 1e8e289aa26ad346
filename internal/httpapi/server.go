package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"regsniper/internal/agent"
	"regsniper/internal/browser"
	"regsniper/internal/config"
	"regsniper/internal/logbus"
	"regsniper/internal/model"
	"regsniper/internal/notify"
	"regsniper/internal/ws"
)

const maskedAuthCode = "******"

// Agent is the registration agent bound to the portal tab.
type Agent interface {
	HandleCommand(ctx context.Context, cmd model.Command) error
	Status() model.StatusSnapshot
}

// Tab is the browser tab the agent works in.
type Tab interface {
	ActiveURL(ctx context.Context) (string, error)
	Attach(ctx context.Context) (bool, error)
}

type SettingsStore interface {
	GetEmailSettings(ctx context.Context) (model.EmailSettings, bool, error)
	UpsertEmailSettings(ctx context.Context, v model.EmailSettings) (model.EmailSettings, error)
}

type Options struct {
	Cfg      config.Config
	Bus      *logbus.Bus
	Agent    Agent
	Tab      Tab
	Settings SettingsStore
	// SendEmail delivers the test email; defaults to notify.SendSummaryEmail.
	SendEmail notify.Sender
}

type Server struct {
	cfg       config.Config
	bus       *logbus.Bus
	agent     Agent
	tab       Tab
	settings  SettingsStore
	sendEmail notify.Sender
	ws        *ws.Handler
}

func New(opts Options) *Server {
	send := opts.SendEmail
	if send == nil {
		send = notify.SendSummaryEmail
	}
	return &Server{
		cfg:       opts.Cfg,
		bus:       opts.Bus,
		agent:     opts.Agent,
		tab:       opts.Tab,
		settings:  opts.Settings,
		sendEmail: send,
		ws:        ws.NewHandler(opts.Bus, opts.Cfg.Server.Origins),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/ws", s.ws)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/agent/command", s.handleCommand)
	api.HandleFunc("/api/v1/agent/status", s.handleStatus)
	api.HandleFunc("/api/v1/agent/page", s.handlePage)
	api.HandleFunc("/api/v1/agent/attach", s.handleAttach)
	api.HandleFunc("/api/v1/settings/email", s.handleEmailSettings)
	api.HandleFunc("/api/v1/settings/email/test", s.handleEmailTest)

	mux.Handle("/api/", originGuard(s.cfg.Server.Origins, api))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var cmd model.Command
	if err := readJSON(r, &cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.agent.HandleCommand(ctx, cmd); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, agent.ErrNoIdentifiers) || errors.Is(err, agent.ErrUnknownCommand) {
			status = http.StatusBadRequest
		}
		s.log("warn", "command rejected", map[string]any{
			"id":     cmd.ID,
			"action": string(cmd.Action),
			"error":  err.Error(),
		})
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}
	s.log("debug", "command handled", map[string]any{"id": cmd.ID, "action": string(cmd.Action)})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": s.status(r.Context())})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.status(r.Context())})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, err := s.tab.ActiveURL(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, browser.ErrNoTab) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"url": u}})
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	opened, err := s.tab.Attach(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"opened": opened}})
}

func (s *Server) status(ctx context.Context) model.StatusSnapshot {
	snap := s.agent.Status()
	if s.tab != nil {
		if u, err := s.tab.ActiveURL(ctx); err == nil {
			snap.PageURL = u
		}
	}
	return snap
}

type emailSettingsPayload struct {
	Enabled  *bool   `json:"enabled,omitempty"`
	Email    *string `json:"email,omitempty"`
	AuthCode *string `json:"authCode,omitempty"`
}

func (s *Server) handleEmailSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		val, _, err := s.settings.GetEmailSettings(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": maskEmailSettings(val)})
	case http.MethodPost:
		var body emailSettingsPayload
		if err := readJSON(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}

		current, _, err := s.settings.GetEmailSettings(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}

		next := current
		if body.Enabled != nil {
			next.Enabled = *body.Enabled
		}
		if body.Email != nil {
			next.Email = strings.TrimSpace(*body.Email)
		}
		if body.AuthCode != nil {
			ac := strings.TrimSpace(*body.AuthCode)
			if ac != maskedAuthCode {
				next.AuthCode = ac
			}
		}
		if next.Enabled {
			if err := notify.ValidateEmailSettings(next); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
				return
			}
		}

		saved, err := s.settings.UpsertEmailSettings(r.Context(), next)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": maskEmailSettings(saved)})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleEmailTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	val, _, err := s.settings.GetEmailSettings(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	if err := s.sendEmail(ctx, val, []model.SubmissionEvent{{
		At:                time.Now().UnixMilli(),
		Kind:              model.SubmissionRegister,
		Attempt:           1,
		TargetIdentifiers: []string{"00000"},
	}}); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func maskEmailSettings(v model.EmailSettings) model.EmailSettings {
	if v.AuthCode != "" {
		v.AuthCode = maskedAuthCode
	}
	return v
}

func (s *Server) log(level, msg string, fields map[string]any) {
	if s.bus != nil {
		s.bus.Log(level, msg, fields)
	}
}
