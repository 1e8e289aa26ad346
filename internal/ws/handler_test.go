package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regsniper/internal/config"
	"regsniper/internal/logbus"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandlerReplaysHistoryThenStreams(t *testing.T) {
	bus := logbus.New(10)
	bus.Log("info", "before connect", nil)
	srv := httptest.NewServer(NewHandler(bus, config.OriginConfig{}))
	defer srv.Close()

	conn := dial(t, srv, "")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first logbus.Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, logbus.TypeLog, first.Type)

	assert.Equal(t, logbus.TypeStatus, publishUntilRead(t, bus, conn, true).Type)
}

// publishUntilRead publishes a log and a status until the client reads a
// message, skipping logs when skipLogs is set. The server subscribes only
// after replaying history.
func publishUntilRead(t *testing.T, bus *logbus.Bus, conn *websocket.Conn, skipLogs bool) logbus.Message {
	t.Helper()
	got := make(chan logbus.Message, 1)
	go func() {
		for {
			var msg logbus.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if skipLogs && msg.Type == logbus.TypeLog {
				continue
			}
			got <- msg
			return
		}
	}()
	deadline := time.After(2 * time.Second)
	for {
		bus.Log("info", "noise", nil)
		bus.Status(map[string]any{"visible": true})
		select {
		case msg := <-got:
			return msg
		case <-deadline:
			t.Fatal("no message received")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestHandlerFiltersTypes(t *testing.T) {
	bus := logbus.New(10)
	bus.Log("info", "history", nil)
	srv := httptest.NewServer(NewHandler(bus, config.OriginConfig{}))
	defer srv.Close()

	conn := dial(t, srv, "/?types=status")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	assert.Equal(t, logbus.TypeStatus, publishUntilRead(t, bus, conn, false).Type)
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(logbus.New(1), config.OriginConfig{Allow: []string{"http://localhost:5173"}})
	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, h.checkOrigin(r))
	r.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, h.checkOrigin(r))
	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, h.checkOrigin(r))
}
