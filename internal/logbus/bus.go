package logbus

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	TypeLog    = "log"
	TypeStatus = "status"
)

type Message struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
	Data any    `json:"data"`
}

type LogData struct {
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields,omitempty"`
}

type Bus struct {
	mu     sync.RWMutex
	buf    []Message
	cap    int
	subs   map[chan Message]struct{}
	closed bool

	console *logrus.Logger
}

type Option func(*Bus)

// WithConsole mirrors every log entry to a logrus logger.
func WithConsole(l *logrus.Logger) Option {
	return func(b *Bus) { b.console = l }
}

func New(capacity int, opts ...Option) *Bus {
	if capacity <= 0 {
		capacity = 200
	}
	b := &Bus{
		cap:  capacity,
		buf:  make([]Message, 0, capacity),
		subs: make(map[chan Message]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewConsoleLogger builds the stderr logger used by the binaries.
func NewConsoleLogger(level string) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.buf = nil
}

func (b *Bus) Snapshot() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Message, len(b.buf))
	copy(out, b.buf)
	return out
}

func (b *Bus) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Message, buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if b.subs != nil {
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Bus) Publish(typ string, data any) {
	b.publish(typ, data, true)
}

func (b *Bus) publish(typ string, data any, keep bool) {
	msg := Message{
		Type: typ,
		Time: time.Now().UnixMilli(),
		Data: data,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if keep {
		if len(b.buf) < b.cap {
			b.buf = append(b.buf, msg)
		} else if b.cap > 0 {
			copy(b.buf, b.buf[1:])
			b.buf[b.cap-1] = msg
		}
	}
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	b.mu.Unlock()
}

func (b *Bus) Log(level, message string, fields map[string]any) {
	if b.console != nil {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			lvl = logrus.InfoLevel
		}
		b.console.WithFields(logrus.Fields(fields)).Log(lvl, message)
	}
	b.Publish(TypeLog, LogData{Level: level, Msg: message, Fields: fields})
}

// Status publishes a display snapshot. Status messages are not kept in the
// replay buffer so late subscribers only see fresh countdowns.
func (b *Bus) Status(snapshot any) {
	b.publish(TypeStatus, snapshot, false)
}

