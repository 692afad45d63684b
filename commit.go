package wext

import (
	"context"
	"fmt"
)

// A batch tracks commit requests made by the handlers of one external
// request. Batches are never shared between requests, so concurrent requests
// against different devices never commit each other's configuration.
type batch struct {
	dev      *Device
	pending  bool
	finished bool
}

func newBatch(dev *Device) *batch {
	return &batch{dev: dev}
}

// requestCommit records that the device must commit before the request
// returns. It is idempotent.
func (b *batch) requestCommit() { b.pending = true }

// finish invokes the device's commit handler at most once, and only if a
// handler requested it. A failed commit does not undo applied changes.
func (b *batch) finish(ctx context.Context) error {
	if b.finished || !b.pending {
		b.finished = true
		return nil
	}
	b.finished = true

	commit := b.dev.Handlers.commitHandler()
	if commit == nil {
		return nil
	}

	if b.dev.Locker != nil {
		b.dev.Locker.Lock()
		defer b.dev.Locker.Unlock()
	}

	if err := commit(ctx, b.dev); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommitFailed, b.dev.Name, err)
	}

	return nil
}
