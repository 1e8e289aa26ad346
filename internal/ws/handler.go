// Package ws streams bus messages (logs and agent status) to websocket clients.
package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"regsniper/internal/config"
	"regsniper/internal/logbus"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

type Handler struct {
	bus      *logbus.Bus
	origins  config.OriginConfig
	upgrader websocket.Upgrader
}

func NewHandler(bus *logbus.Bus, origins config.OriginConfig) *Handler {
	h := &Handler{
		bus:     bus,
		origins: origins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	return h
}

// ServeHTTP replays the buffered log history, then forwards live messages.
// ?types=status,log restricts the stream to the listed message types.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	want := parseTypes(r.URL.Query().Get("types"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	for _, msg := range h.bus.Snapshot() {
		if !want.has(msg.Type) {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}

	ch, cancel := h.bus.Subscribe(256)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !want.has(msg.Type) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

type typeFilter map[string]bool

func parseTypes(raw string) typeFilter {
	f := typeFilter{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			f[t] = true
		}
	}
	return f
}

// has reports whether typ passes; an empty filter passes everything.
func (f typeFilter) has(typ string) bool {
	return len(f) == 0 || f[typ]
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	return h.origins.Allowed(r.Header.Get("Origin"))
}
