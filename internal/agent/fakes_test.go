package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"regsniper/internal/model"
	"regsniper/internal/portal/fakepage"
)

type memKV struct {
	mu      sync.Mutex
	data    map[string]json.RawMessage
	journal *fakepage.Journal
	setErr  error
}

func newMemKV(journal *fakepage.Journal) *memKV {
	return &memKV{data: make(map[string]json.RawMessage), journal: journal}
}

func (m *memKV) Get(_ context.Context, keys []string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memKV) Set(_ context.Context, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b, err := json.Marshal(values[k])
		if err != nil {
			return err
		}
		m.data[k] = b
		m.journal.Record(fmt.Sprintf("persist %s=%s", k, b))
	}
	return nil
}

func (m *memKV) seed(st model.PersistedState) {
	_ = m.Set(context.Background(), st.Values())
}

func (m *memKV) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data[key])
}

type fakeTimer struct {
	d         time.Duration
	fn        func()
	cancelled bool
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) Every(d time.Duration, fn func()) func() {
	t := &fakeTimer{d: d, fn: fn}
	s.mu.Lock()
	s.timers = append(s.timers, t)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

// Fire runs every live timer with period d and reports how many ran.
func (s *fakeScheduler) Fire(d time.Duration) int {
	s.mu.Lock()
	var fns []func()
	for _, t := range s.timers {
		if !t.cancelled && t.d == d {
			fns = append(fns, t.fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

func (s *fakeScheduler) Active(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.cancelled && t.d == d {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.SubmissionEvent
}

func (n *recordingNotifier) NotifySubmission(_ context.Context, evt model.SubmissionEvent) {
	n.mu.Lock()
	n.events = append(n.events, evt)
	n.mu.Unlock()
}

func (n *recordingNotifier) Events() []model.SubmissionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.SubmissionEvent(nil), n.events...)
}
