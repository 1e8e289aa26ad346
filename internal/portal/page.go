// Package portal holds the page contract of the registration portal and the
// page operations the agent drives through it.
package portal

import (
	"context"
	"errors"
)

// ErrElementNotFound means an expected control or table is not on the page.
// It is a normal outcome: the next tick or load tries again.
var ErrElementNotFound = errors.New("element not found")

// Page is the rendering environment the agent acts on.
type Page interface {
	URL(ctx context.Context) (string, error)
	// Elements returns the current matches in document order without waiting.
	Elements(ctx context.Context, selector string) ([]Element, error)
	// WaitElement resolves with the first match, either immediately or after
	// the document changes. It only gives up when ctx is done.
	WaitElement(ctx context.Context, selector string) (Element, error)
}

type Element interface {
	SetValue(ctx context.Context, value string) error
	Attribute(ctx context.Context, name string) (string, bool, error)
	OptionValues(ctx context.Context) ([]string, error)
	SelectValue(ctx context.Context, value string) error
	Click(ctx context.Context) error
}
