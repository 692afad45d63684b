//go:build linux
// +build linux

package wext

import (
	"context"
	"fmt"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"github.com/mdlayher/wext/internal/wireless"
	"golang.org/x/sys/unix"
)

var _ Transport = &NetlinkTransport{}

// A NetlinkTransport frames events the way rtnetlink delivers them to
// listeners: as an RTM_NEWLINK message for the device's interface, with the
// encoded event in an IFLA_WIRELESS attribute.
type NetlinkTransport struct {
	c *netlink.Conn
}

// DialNetlinkTransport dials a NETLINK_ROUTE connection for a
// NetlinkTransport.
func DialNetlinkTransport() (*NetlinkTransport, error) {
	c, err := netlink.Dial(unix.NETLINK_ROUTE, nil)
	if err != nil {
		return nil, err
	}

	return NewNetlinkTransport(c), nil
}

// NewNetlinkTransport creates a NetlinkTransport which sends on c.
func NewNetlinkTransport(c *netlink.Conn) *NetlinkTransport {
	return &NetlinkTransport{c: c}
}

// Close releases resources used by the NetlinkTransport.
func (t *NetlinkTransport) Close() error { return t.c.Close() }

// Publish implements Transport.
func (t *NetlinkTransport) Publish(_ context.Context, dev *Device, record []byte) error {
	ae := netlink.NewAttributeEncoder()
	ae.String(unix.IFLA_IFNAME, dev.Name)
	ae.Bytes(unix.IFLA_WIRELESS, record)

	attrs, err := ae.Encode()
	if err != nil {
		return err
	}

	msg := netlink.Message{
		Header: netlink.Header{Type: unix.RTM_NEWLINK},
		Data:   append(ifInfo(dev.Index), attrs...),
	}

	if _, err := t.c.Send(msg); err != nil {
		return fmt.Errorf("wext: failed to send event for %s: %w", dev.Name, err)
	}

	return nil
}

// ifInfo encodes the ifinfomsg header of a link message.
func ifInfo(index int) []byte {
	b := make([]byte, unix.SizeofIfInfomsg)
	b[0] = unix.AF_UNSPEC
	nlenc.PutUint16(b[2:4], wireless.ARPHRD_ETHER)
	nlenc.PutInt32(b[4:8], int32(index))
	return b
}

// ParseNetlinkEvent extracts the interface index and encoded event from a
// message produced by a NetlinkTransport. Messages without an IFLA_WIRELESS
// attribute return a nil record.
func ParseNetlinkEvent(m netlink.Message) (int, []byte, error) {
	if m.Header.Type != unix.RTM_NEWLINK {
		return 0, nil, fmt.Errorf("wext: unexpected netlink message type %d", m.Header.Type)
	}
	if len(m.Data) < unix.SizeofIfInfomsg {
		return 0, nil, fmt.Errorf("%w: %d byte link message", ErrInvalidLength, len(m.Data))
	}

	index := int(nlenc.Int32(m.Data[4:8]))

	ad, err := netlink.NewAttributeDecoder(m.Data[unix.SizeofIfInfomsg:])
	if err != nil {
		return 0, nil, err
	}

	var record []byte
	for ad.Next() {
		if ad.Type() == unix.IFLA_WIRELESS {
			record = ad.Bytes()
		}
	}

	if err := ad.Err(); err != nil {
		return 0, nil, err
	}

	return index, record, nil
}
