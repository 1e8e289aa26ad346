package fakepage

import (
	"fmt"

	"regsniper/internal/portal"
)

// Registration builds a registration page with n identifier fields and, when
// withCommit is set, the commit control.
func Registration(c portal.Contract, url string, n int, withCommit bool) *Page {
	p := New(url)
	fields := make([]*Element, 0, n)
	for i := 1; i <= n; i++ {
		fields = append(fields, Input(fmt.Sprintf("%s%d", c.IdentifierFieldPrefix, i)))
	}
	if n > 0 {
		p.Add(c.IdentifierFieldSelector(), fields...)
	}
	if withCommit {
		p.Add(c.SubmitSelector(), Submit("Class Search"), Submit(c.CommitLabel))
	}
	return p
}

// AddResults adds the results table and the given waitlist selects.
func AddResults(p *Page, c portal.Contract, selects ...*Element) {
	if len(selects) > 0 {
		p.Add(c.WaitlistSelector(), selects...)
	}
	p.Add(c.ResultsTableSelector, Table())
}

// Fields returns the identifier field elements in page order.
func Fields(p *Page, c portal.Contract) []*Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Element(nil), p.nodes[c.IdentifierFieldSelector()]...)
}

// Commit returns the commit control, or nil.
func Commit(p *Page, c portal.Contract) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range p.nodes[c.SubmitSelector()] {
		if el.attrs["value"] == c.CommitLabel {
			return el
		}
	}
	return nil
}
