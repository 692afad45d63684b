//go:build linux
// +build linux

package wext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/wext/internal/wextnl"
	"golang.org/x/sys/unix"
)

const genlLogPrefix = "wext:genl"

var (
	errInvalidCommand       = errors.New("invalid generic netlink response command")
	errInvalidFamilyVersion = errors.New("invalid generic netlink response family version")
)

// A Server serves requests of the "wext" generic netlink family with a
// Dispatcher. Serve has the signature of a genltest.Func, so a Server can
// back an in-process connection.
type Server struct {
	d      *Dispatcher
	caller Caller
}

// NewServer creates a Server which dispatches requests with d on behalf of
// caller. Clients may ask to be treated as privileged, but are only granted
// privileges which caller holds.
func NewServer(d *Dispatcher, caller Caller) *Server {
	return &Server{d: d, caller: caller}
}

// Serve handles a single generic netlink request.
func (s *Server) Serve(greq genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
	switch greq.Header.Command {
	case wextnl.CmdDispatch:
		return s.dispatch(greq)
	case wextnl.CmdGetDevice:
		return s.devices()
	default:
		return nil, unix.EOPNOTSUPP
	}
}

func (s *Server) dispatch(greq genetlink.Message) ([]genetlink.Message, error) {
	ad, err := netlink.NewAttributeDecoder(greq.Data)
	if err != nil {
		return nil, err
	}

	var (
		name     string
		cmd      Command
		req      Request
		payload  []byte
		capacity int
		caller   Caller
	)

	for ad.Next() {
		switch ad.Type() {
		case wextnl.AttrIfname:
			name = ad.String()
		case wextnl.AttrCmd:
			cmd = Command(ad.Uint16())
		case wextnl.AttrUnion:
			copy(req.Union[:], ad.Bytes())
		case wextnl.AttrBuffer:
			payload = ad.Bytes()
		case wextnl.AttrCapacity:
			capacity = int(ad.Uint32())
		case wextnl.AttrPrivileged:
			caller.Privileged = s.caller.Privileged
		}
	}

	if err := ad.Err(); err != nil {
		return nil, err
	}

	if capacity < len(payload) {
		capacity = len(payload)
	}

	// The dispatcher never reads or writes more than the command's largest
	// payload, so a larger client buffer is not allocated here.
	desc, derr := s.d.Descriptor(name, cmd)
	if derr == nil {
		limit := 0
		if desc.HeaderType == HeaderTypePoint {
			limit = int(desc.MaxTokens) * int(desc.TokenSize)
		}

		req.Buffer = make([]byte, min(capacity, limit))
		copy(req.Buffer, payload)

		derr = s.d.Dispatch(context.Background(), name, cmd, &req, caller)
	}
	if derr != nil {
		slog.Debug(fmt.Sprintf("%s - %s %s: %v", genlLogPrefix, name, cmd, derr))
	}

	ae := netlink.NewAttributeEncoder()
	ae.String(wextnl.AttrIfname, name)
	ae.Uint16(wextnl.AttrCmd, uint16(cmd))
	ae.Uint32(wextnl.AttrErrno, uint32(Errno(derr)))
	ae.Uint8(wextnl.AttrErrKind, errKind(derr))
	if derr == nil {
		ae.Bytes(wextnl.AttrUnion, req.Union[:])
		if len(req.Buffer) > 0 {
			ae.Bytes(wextnl.AttrBuffer, req.Buffer)
		}
	}

	b, err := ae.Encode()
	if err != nil {
		return nil, err
	}

	return []genetlink.Message{{
		Header: genetlink.Header{
			Command: wextnl.CmdDispatch,
			Version: wextnl.GenlVersion,
		},
		Data: b,
	}}, nil
}

func (s *Server) devices() ([]genetlink.Message, error) {
	devs := s.d.Devices()

	msgs := make([]genetlink.Message, 0, len(devs))
	for _, dev := range devs {
		ae := netlink.NewAttributeEncoder()
		ae.String(wextnl.AttrIfname, dev.Name)
		ae.Uint32(wextnl.AttrIfindex, uint32(dev.Index))

		b, err := ae.Encode()
		if err != nil {
			return nil, err
		}

		msgs = append(msgs, genetlink.Message{
			Header: genetlink.Header{
				Command: wextnl.CmdGetDevice,
				Version: wextnl.GenlVersion,
			},
			Data: b,
		})
	}

	return msgs, nil
}

// A Client issues requests to a Server over generic netlink.
type Client struct {
	c             *genetlink.Conn
	familyID      uint16
	familyVersion uint8
}

// Dial dials a generic netlink connection and verifies that the "wext"
// family is available.
func Dial() (*Client, error) {
	c, err := genetlink.Dial(nil)
	if err != nil {
		return nil, err
	}

	return NewClient(c)
}

// NewClient creates a Client using an existing connection. The connection is
// closed if the "wext" family is not available.
func NewClient(c *genetlink.Conn) (*Client, error) {
	family, err := c.GetFamily(wextnl.GenlName)
	if err != nil {
		// Ensure the genl socket is closed on error to avoid leaking file
		// descriptors.
		_ = c.Close()
		return nil, err
	}

	return &Client{
		c:             c,
		familyID:      family.ID,
		familyVersion: family.Version,
	}, nil
}

// Close releases resources used by a Client.
func (c *Client) Close() error { return c.c.Close() }

// Dispatch issues a request to the named device. On success the results of
// GET commands are copied into req. Failures reported by the server match
// the package's sentinel errors with errors.Is.
func (c *Client) Dispatch(ctx context.Context, name string, cmd Command, req *Request, caller Caller) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.c.SetDeadline(deadline); err != nil {
			return err
		}
	}

	msgs, err := c.execute(wextnl.CmdDispatch, 0, func(ae *netlink.AttributeEncoder) {
		ae.String(wextnl.AttrIfname, name)
		ae.Uint16(wextnl.AttrCmd, uint16(cmd))
		ae.Bytes(wextnl.AttrUnion, req.Union[:])
		ae.Uint32(wextnl.AttrCapacity, uint32(len(req.Buffer)))
		if cmd.IsSet() && len(req.Buffer) > 0 {
			ae.Bytes(wextnl.AttrBuffer, req.Buffer)
		}
		if caller.Privileged {
			ae.Flag(wextnl.AttrPrivileged, true)
		}
	})
	if err != nil {
		return err
	}

	if err := c.checkMessages(msgs, wextnl.CmdDispatch); err != nil {
		return err
	}
	if len(msgs) != 1 {
		return fmt.Errorf("wext: expected 1 response message, got %d", len(msgs))
	}

	ad, err := netlink.NewAttributeDecoder(msgs[0].Data)
	if err != nil {
		return err
	}

	var (
		errno   unix.Errno
		kind    uint8
		union   []byte
		payload []byte
	)

	for ad.Next() {
		switch ad.Type() {
		case wextnl.AttrErrno:
			errno = unix.Errno(ad.Uint32())
		case wextnl.AttrErrKind:
			kind = ad.Uint8()
		case wextnl.AttrUnion:
			union = ad.Bytes()
		case wextnl.AttrBuffer:
			payload = ad.Bytes()
		}
	}

	if err := ad.Err(); err != nil {
		return err
	}

	if err := kindError(kind, errno); err != nil {
		return fmt.Errorf("wext: %s on %s: %w", cmd, name, err)
	}

	copy(req.Union[:], union)
	copy(req.Buffer, payload)
	return nil
}

// errKinds classifies the failures of a request. Commit failures wrap the
// driver's error, so they are matched first.
var errKinds = []struct {
	kind uint8
	err  error
}{
	{kind: wextnl.ErrKindCommit, err: ErrCommitFailed},
	{kind: wextnl.ErrKindUnsupported, err: ErrUnsupportedCommand},
	{kind: wextnl.ErrKindInvalidLength, err: ErrInvalidLength},
	{kind: wextnl.ErrKindPermission, err: ErrPermissionDenied},
	{kind: wextnl.ErrKindResultTooLarge, err: ErrResultTooLarge},
	{kind: wextnl.ErrKindEventTooLarge, err: ErrEventTooLarge},
	{kind: wextnl.ErrKindNoDevice, err: ErrNoDevice},
	{kind: wextnl.ErrKindDeviceExists, err: ErrDeviceExists},
	{kind: wextnl.ErrKindIncompatibleVersion, err: ErrIncompatibleVersion},
	{kind: wextnl.ErrKindInternal, err: errHandlerParams},
	{kind: wextnl.ErrKindCanceled, err: context.Canceled},
	{kind: wextnl.ErrKindDeadline, err: context.DeadlineExceeded},
}

// errKind returns the kind a Server reports for err. Anything the dispatcher
// does not recognize came from a handler.
func errKind(err error) uint8 {
	if err == nil {
		return wextnl.ErrKindNone
	}

	for _, e := range errKinds {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}

	return wextnl.ErrKindHandler
}

// kindError rebuilds the error reported by a Server. Handler errors are the
// bare errno; other kinds also match their sentinel with errors.Is.
func kindError(kind uint8, errno unix.Errno) error {
	if kind == wextnl.ErrKindNone && errno == 0 {
		return nil
	}
	if errno == 0 {
		errno = unix.EIO
	}

	for _, e := range errKinds {
		if e.kind == kind {
			return fmt.Errorf("%w: %w", e.err, errno)
		}
	}

	return errno
}

// A DeviceInfo identifies a device served over generic netlink.
type DeviceInfo struct {
	Name  string
	Index int
}

// Devices lists the devices registered with the server.
func (c *Client) Devices() ([]DeviceInfo, error) {
	msgs, err := c.execute(wextnl.CmdGetDevice, netlink.Dump, nil)
	if err != nil {
		return nil, err
	}

	if err := c.checkMessages(msgs, wextnl.CmdGetDevice); err != nil {
		return nil, err
	}

	devs := make([]DeviceInfo, 0, len(msgs))
	for _, m := range msgs {
		ad, err := netlink.NewAttributeDecoder(m.Data)
		if err != nil {
			return nil, err
		}

		var di DeviceInfo
		for ad.Next() {
			switch ad.Type() {
			case wextnl.AttrIfname:
				di.Name = ad.String()
			case wextnl.AttrIfindex:
				di.Index = int(ad.Uint32())
			}
		}

		if err := ad.Err(); err != nil {
			return nil, err
		}

		devs = append(devs, di)
	}

	return devs, nil
}

// checkMessages verifies that response messages from generic netlink contain
// the command and family version we expect.
func (c *Client) checkMessages(msgs []genetlink.Message, command uint8) error {
	for _, m := range msgs {
		if m.Header.Command != command {
			return errInvalidCommand
		}

		if m.Header.Version != c.familyVersion {
			return errInvalidFamilyVersion
		}
	}

	return nil
}

// execute executes the specified command with additional header flags and
// optional request attributes. The netlink.Request header flag is always set.
func (c *Client) execute(
	cmd uint8,
	flags netlink.HeaderFlags,
	// May be nil; used to apply request attributes.
	params func(ae *netlink.AttributeEncoder),
) ([]genetlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	if params != nil {
		params(ae)
	}

	b, err := ae.Encode()
	if err != nil {
		return nil, err
	}

	return c.c.Execute(
		genetlink.Message{
			Header: genetlink.Header{
				Command: cmd,
				Version: c.familyVersion,
			},
			Data: b,
		},
		// Always pass the genetlink family ID and request flag.
		c.familyID,
		netlink.Request|flags,
	)
}
