package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regsniper/internal/config"
	"regsniper/internal/logbus"
	"regsniper/internal/model"
	"regsniper/internal/portal"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.ControlConfig{AgentURL: srv.URL, TimeoutMs: 2000}, nil)
}

func TestClientSendCommand(t *testing.T) {
	var got model.Command
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/agent/command", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"data":{"running":true}}`))
	})
	c := newTestClient(t, mux)

	require.NoError(t, c.Send(context.Background(), model.NewStartCommand([]string{"1"}, 20)))
	assert.Equal(t, model.ActionStartRegistration, got.Action)
	assert.Equal(t, 20, got.IntervalSeconds)
}

func TestClientSendSurfacesServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/agent/command", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"at least one target identifier is required"}`))
	})
	c := newTestClient(t, mux)

	err := c.Send(context.Background(), model.NewStartCommand(nil, 20))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target identifier")
}

func TestClientActivePage(t *testing.T) {
	attached := false
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/agent/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !attached {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no portal tab attached"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"url":"https://horizon.mcgill.ca/pban1/x"}}`))
	})
	mux.HandleFunc("/api/v1/agent/attach", func(w http.ResponseWriter, r *http.Request) {
		attached = true
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"opened":true}}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	u, err := c.ActivePage(ctx)
	require.NoError(t, err)
	assert.Empty(t, u)

	require.NoError(t, c.EnsureAgent(ctx))
	u, err = c.ActivePage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://horizon.mcgill.ca/pban1/x", u)
}

func TestClientStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/agent/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"visible":true,"running":true,"attemptCount":4,"secondsRemaining":12,"targetIdentifiers":["1"]}}`))
	})
	c := newTestClient(t, mux)

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, st.AttemptCount)
	assert.Equal(t, 12, st.SecondsRemaining)
}

func TestClientDeliveryFailure(t *testing.T) {
	c := NewClient(config.ControlConfig{AgentURL: "http://127.0.0.1:1", TimeoutMs: 500}, nil)
	msg, err := NewSurface(c, portal.DefaultContract()).Start(context.Background(), "12345", "30")
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Equal(t, MsgRetry, msg)

	msg, _ = NewSurface(c, portal.DefaultContract()).Stop(context.Background())
	assert.Equal(t, MsgStopped, msg)
}

func TestClientWatch(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "status", r.URL.Query().Get("types"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 3; i++ {
			_ = conn.WriteJSON(logbus.Message{Type: logbus.TypeStatus, Time: int64(i)})
		}
		time.Sleep(time.Second)
	})
	c := newTestClient(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var seen []int64
	err := c.Watch(ctx, []string{"status"}, func(m logbus.Message) error {
		seen = append(seen, m.Time)
		if len(seen) == 3 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, seen)
}

func TestClientDecodesRepliesWithoutContentType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/agent/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"data":{"url":"https://horizon.mcgill.ca/pban1/bwskfreg.P_AltPin"}}`))
	})
	c := newTestClient(t, mux)

	u, err := c.ActivePage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://horizon.mcgill.ca/pban1/bwskfreg.P_AltPin", u)
}
