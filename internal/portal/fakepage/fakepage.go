// Package fakepage is an in-memory portal.Page for tests and dry runs.
package fakepage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"regsniper/internal/portal"
)

// Journal records page mutations, optionally shared with other fakes so tests
// can assert cross-component ordering.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) Record(entry string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()
}

func (j *Journal) Entries() []string {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type Page struct {
	mu        sync.Mutex
	url       string
	nodes     map[string][]*Element
	changed   chan struct{}
	journal   *Journal
	mutations int
	// OnClick runs after an element is clicked, e.g. to simulate navigation.
	OnClick func(el *Element)
}

var _ portal.Page = (*Page)(nil)

func New(url string) *Page {
	return &Page{
		url:     url,
		nodes:   make(map[string][]*Element),
		changed: make(chan struct{}),
	}
}

func (p *Page) WithJournal(j *Journal) *Page {
	p.mu.Lock()
	p.journal = j
	p.mu.Unlock()
	return p
}

func (p *Page) SetURL(u string) {
	p.mu.Lock()
	p.url = u
	p.mu.Unlock()
}

// Add appends elements under selector and wakes any waiter.
func (p *Page) Add(selector string, els ...*Element) *Page {
	p.mu.Lock()
	for _, el := range els {
		el.page = p
	}
	p.nodes[selector] = append(p.nodes[selector], els...)
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
	return p
}

// Reset drops every element, as a navigation would.
func (p *Page) Reset(url string) {
	p.mu.Lock()
	p.url = url
	p.nodes = make(map[string][]*Element)
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}

// Mutations counts value writes, selections and clicks.
func (p *Page) Mutations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutations
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Elements(ctx context.Context, selector string) ([]portal.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]portal.Element, 0, len(p.nodes[selector]))
	for _, el := range p.nodes[selector] {
		out = append(out, el)
	}
	return out, nil
}

func (p *Page) WaitElement(ctx context.Context, selector string) (portal.Element, error) {
	for {
		p.mu.Lock()
		if els := p.nodes[selector]; len(els) > 0 {
			p.mu.Unlock()
			return els[0], nil
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Page) record(entry string) {
	p.mu.Lock()
	p.mutations++
	j := p.journal
	p.mu.Unlock()
	j.Record(entry)
}

type Element struct {
	page *Page

	mu      sync.Mutex
	attrs   map[string]string
	options []string
	value   string
	clicks  int
}

var _ portal.Element = (*Element)(nil)

func NewElement(attrs map[string]string, options ...string) *Element {
	a := make(map[string]string, len(attrs))
	for k, v := range attrs {
		a[k] = v
	}
	return &Element{attrs: a, options: options, value: a["value"]}
}

func Input(id string) *Element {
	return NewElement(map[string]string{"id": id, "type": "text"})
}

func Submit(label string) *Element {
	return NewElement(map[string]string{"type": "submit", "value": label})
}

func Select(name string, options ...string) *Element {
	return NewElement(map[string]string{"name": name}, options...)
}

func Table() *Element {
	return NewElement(nil)
}

func (e *Element) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) SetValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.value = value
	id := e.attrs["id"]
	e.mu.Unlock()
	e.page.record(fmt.Sprintf("set %s=%s", id, value))
	return nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "value" {
		_, ok := e.attrs["value"]
		return e.value, ok, nil
	}
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *Element) OptionValues(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.options...), nil
}

func (e *Element) SelectValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	if !slices.Contains(e.options, value) {
		e.mu.Unlock()
		return fmt.Errorf("option %q: %w", value, portal.ErrElementNotFound)
	}
	e.value = value
	name := e.attrs["name"]
	e.mu.Unlock()
	e.page.record(fmt.Sprintf("select %s=%s", name, value))
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.clicks++
	label := e.value
	e.mu.Unlock()
	e.page.record("click " + label)
	if e.page.OnClick != nil {
		e.page.OnClick(e)
	}
	return nil
}
