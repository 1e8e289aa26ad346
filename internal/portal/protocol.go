package portal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// FillIdentifiers writes ids into the identifier fields by position and
// returns how many were written. Extra ids or extra fields are ignored.
func (c Contract) FillIdentifiers(ctx context.Context, p Page, ids []string) (int, error) {
	fields, err := p.Elements(ctx, c.IdentifierFieldSelector())
	if err != nil {
		return 0, fmt.Errorf("find identifier fields: %w", err)
	}
	n := min(len(ids), len(fields))
	for i := 0; i < n; i++ {
		if err := fields[i].SetValue(ctx, ids[i]); err != nil {
			return i, fmt.Errorf("fill identifier field %d: %w", i, err)
		}
	}
	return n, nil
}

// FindCommit locates the submit control labelled with the commit label.
func (c Contract) FindCommit(ctx context.Context, p Page) (Element, error) {
	buttons, err := p.Elements(ctx, c.SubmitSelector())
	if err != nil {
		return nil, fmt.Errorf("find submit controls: %w", err)
	}
	for _, b := range buttons {
		v, ok, err := b.Attribute(ctx, "value")
		if err != nil {
			return nil, err
		}
		if ok && v == c.CommitLabel {
			return b, nil
		}
	}
	return nil, fmt.Errorf("commit control %q: %w", c.CommitLabel, ErrElementNotFound)
}

// WaitResults waits for the results table. timeout <= 0 waits until ctx is done.
func (c Contract) WaitResults(ctx context.Context, p Page, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if _, err := p.WaitElement(ctx, c.ResultsTableSelector); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("results table: %w", ErrElementNotFound)
		}
		return err
	}
	return nil
}

// SelectWaitlist picks the join-waitlist option on every waitlist control that
// offers it and returns how many were selected.
func (c Contract) SelectWaitlist(ctx context.Context, p Page) (int, error) {
	selects, err := p.Elements(ctx, c.WaitlistSelector())
	if err != nil {
		return 0, fmt.Errorf("find waitlist controls: %w", err)
	}
	selected := 0
	for _, s := range selects {
		opts, err := s.OptionValues(ctx)
		if err != nil {
			return selected, err
		}
		if !slices.Contains(opts, c.WaitlistValue) {
			continue
		}
		if err := s.SelectValue(ctx, c.WaitlistValue); err != nil {
			return selected, fmt.Errorf("select waitlist option: %w", err)
		}
		selected++
	}
	return selected, nil
}
