package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"regsniper/internal/portal"
)

// setValueJS assigns the value and fires the events a user edit would.
const setValueJS = `function (v) {
	this.value = v;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`

// Page adapts a rod tab to portal.Page.
type Page struct {
	page *rod.Page
}

var _ portal.Page = (*Page)(nil)

func NewPage(p *rod.Page) *Page {
	return &Page{page: p}
}

func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *Page) Elements(ctx context.Context, selector string) ([]portal.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]portal.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el})
	}
	return out, nil
}

// WaitElement retries until selector matches or ctx ends.
func (p *Page) WaitElement(ctx context.Context, selector string) (portal.Element, error) {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%s: %w", selector, portal.ErrElementNotFound)
		}
		return nil, err
	}
	return &element{el: el}, nil
}

type element struct {
	el *rod.Element
}

func (e *element) SetValue(ctx context.Context, value string) error {
	_, err := e.el.Context(ctx).Eval(setValueJS, value)
	return err
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) OptionValues(ctx context.Context) ([]string, error) {
	opts, err := e.el.Context(ctx).Elements("option")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		v, err := o.Attribute("value")
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (e *element) SelectValue(ctx context.Context, value string) error {
	sel := fmt.Sprintf(`[value=%q]`, value)
	if err := e.el.Context(ctx).Select([]string{sel}, true, rod.SelectorTypeCSSSector); err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("option %q: %w", value, portal.ErrElementNotFound)
		}
		return err
	}
	return nil
}

func (e *element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}
