package wext

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

const natsLogPrefix = "wext:nats"

// DefaultSubjectPrefix is the subject prefix used by a NATSTransport when
// none is configured.
const DefaultSubjectPrefix = "wext"

var _ Transport = &NATSTransport{}

// A NATSTransport publishes encoded events on a NATS connection. Each device
// has its own subject, "<prefix>.<device>.event", so listeners may subscribe
// to one device or, with a wildcard, to all of them.
type NATSTransport struct {
	nc     *nats.Conn
	prefix string
	log    *slog.Logger
}

// NewNATSTransport creates a NATSTransport. An empty prefix uses
// DefaultSubjectPrefix, and a nil logger uses slog.Default.
func NewNATSTransport(nc *nats.Conn, prefix string, log *slog.Logger) *NATSTransport {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if log == nil {
		log = slog.Default()
	}

	return &NATSTransport{nc: nc, prefix: prefix, log: log}
}

// Subject returns the subject events of the named device are published on.
func (t *NATSTransport) Subject(name string) string {
	return fmt.Sprintf("%s.%s.event", t.prefix, name)
}

// Publish implements Transport.
func (t *NATSTransport) Publish(_ context.Context, dev *Device, record []byte) error {
	subject := t.Subject(dev.Name)
	if err := t.nc.Publish(subject, record); err != nil {
		t.log.Error(fmt.Sprintf("%s - failed to publish to %s: %v", natsLogPrefix, subject, err))
		return err
	}

	t.log.Debug(fmt.Sprintf("%s - published %d byte event to %s", natsLogPrefix, len(record), subject))
	return nil
}
