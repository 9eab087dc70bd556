package events

import (
	"context"
	"errors"
)

// Fanout publishes to every target. All targets are attempted even when one
// fails; errors are joined so callers can log them without losing delivery
// to the healthy targets.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
