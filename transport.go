package wext

import (
	"context"
	"errors"
	"fmt"
)

// A Transport delivers encoded events to listeners. Delivery semantics are
// up to the Transport.
type Transport interface {
	Publish(ctx context.Context, dev *Device, record []byte) error
}

// Transports publishes each event on every Transport in the slice.
type Transports []Transport

// Publish implements Transport. Every Transport is attempted; the errors of
// those which fail are joined.
func (ts Transports) Publish(ctx context.Context, dev *Device, record []byte) error {
	var errs []error
	for _, t := range ts {
		if err := t.Publish(ctx, dev, record); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SendEvent encodes an event on behalf of a registered device and hands it
// to the Dispatcher's Transport. Drivers use it to report asynchronous
// changes. It is a no-op when no Transport is configured.
func (d *Dispatcher) SendEvent(ctx context.Context, name string, e Event) error {
	dev, err := d.device(name)
	if err != nil {
		return err
	}

	return d.publish(ctx, dev, e)
}

func (d *Dispatcher) publish(ctx context.Context, dev *Device, e Event) error {
	if d.transport == nil {
		return nil
	}

	b, err := EncodeEvent(e)
	if err != nil {
		return err
	}

	if err := d.transport.Publish(ctx, dev, b); err != nil {
		return fmt.Errorf("wext: failed to publish %s event for %s: %w", e.Cmd, dev.Name, err)
	}

	return nil
}
