// Package wext implements the Wireless Extensions driver handler API: a
// table-driven dispatcher which validates and marshals requests before a
// driver's handler ever sees them, a commit coordinator, and an encoder for
// wireless events.
package wext

import (
	"errors"
	"fmt"

	"github.com/mdlayher/wext/internal/wireless"
)

// Versions of the Wireless Extensions APIs implemented by this package.
const (
	// HandlerVersion is the version of the driver handler API.
	HandlerVersion = wireless.HandlerVersion

	// WirelessExtVersion is the version of the user space API whose standard
	// commands are described by Describe.
	WirelessExtVersion = wireless.WirelessExt
)

// Errors returned while dispatching requests and encoding events.
var (
	// ErrUnsupportedCommand is returned when a command has no descriptor or
	// no registered handler.
	ErrUnsupportedCommand = errors.New("unsupported wireless extensions command")

	// ErrInvalidLength is returned when a payload's token count or size is
	// outside the bounds of its descriptor or the caller's buffer.
	ErrInvalidLength = errors.New("invalid wireless extensions payload length")

	// ErrPermissionDenied is returned when an unprivileged caller issues a
	// restricted GET request.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrResultTooLarge is returned when a handler produces more data than
	// the caller's buffer can hold.
	ErrResultTooLarge = errors.New("result does not fit caller buffer")

	// ErrCommitFailed is returned when a driver's commit handler fails.
	ErrCommitFailed = errors.New("commit failed")

	// ErrEventTooLarge is returned when an event does not fit its 16-bit
	// length field.
	ErrEventTooLarge = errors.New("event too large")

	// ErrNoDevice is returned when no device is registered with a name.
	ErrNoDevice = errors.New("no such device")

	// ErrDeviceExists is returned when a device name is registered twice.
	ErrDeviceExists = errors.New("device already registered")

	// ErrIncompatibleVersion is returned when a HandlerDef was built for an
	// unsupported Wireless Extensions version.
	ErrIncompatibleVersion = errors.New("incompatible wireless extensions version")
)

// errHandlerParams is returned when a handler replaces a request's parameters
// with a shape that does not match the command's descriptor.
var errHandlerParams = errors.New("handler returned parameters of the wrong shape")

// A HeaderType indicates which shape of the parameter union a command uses.
type HeaderType uint8

// Possible HeaderType values.
const (
	HeaderTypeNull  HeaderType = 0
	HeaderTypeChar  HeaderType = 2
	HeaderTypeUint  HeaderType = 4
	HeaderTypeFreq  HeaderType = 5
	HeaderTypePoint HeaderType = 6
	HeaderTypeParam HeaderType = 7
	HeaderTypeAddr  HeaderType = 8
)

// String returns the string representation of a HeaderType.
func (t HeaderType) String() string {
	switch t {
	case HeaderTypeNull:
		return "null"
	case HeaderTypeChar:
		return "char"
	case HeaderTypeUint:
		return "uint"
	case HeaderTypeFreq:
		return "freq"
	case HeaderTypePoint:
		return "point"
	case HeaderTypeParam:
		return "param"
	case HeaderTypeAddr:
		return "addr"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// DescriptorFlags control special handling of a command.
type DescriptorFlags uint32

// Possible DescriptorFlags values.
const (
	// FlagDump excludes a GET command from Dispatcher.Dump.
	FlagDump DescriptorFlags = 0x0001

	// FlagEvent generates an event after a successful SET.
	FlagEvent DescriptorFlags = 0x0002

	// FlagRestrict makes a GET command require a privileged caller.
	FlagRestrict DescriptorFlags = 0x0004

	// FlagWait is reserved for drivers which wait for a driver event.
	FlagWait DescriptorFlags = 0x0100
)

// A Descriptor describes the payload of a command.
type Descriptor struct {
	// The shape of the parameter union.
	HeaderType HeaderType

	// Reserved.
	TokenType uint8

	// The size of one token in bytes, when the payload is an array.
	TokenSize uint16

	// Inclusive bounds on the number of tokens.
	MinTokens uint16
	MaxTokens uint16

	// Special handling of the request.
	Flags DescriptorFlags
}

// RequestFlags are reserved for future use.
type RequestFlags uint16

// RequestFlagNone is the only defined RequestFlags value.
const RequestFlagNone RequestFlags = 0x0000

// RequestInfo is passed to every handler invocation. The Cmd field allows a
// single handler to serve several commands.
type RequestInfo struct {
	Cmd   Command
	Flags RequestFlags
}

// A Status is the successful outcome of a handler invocation.
type Status int

// Possible Status values.
const (
	// StatusDone indicates the request completed.
	StatusDone Status = iota

	// StatusCommit indicates the request completed and the device's commit
	// handler must run before the external request returns.
	StatusCommit
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusCommit:
		return "commit"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// A Caller describes the entity issuing a request.
type Caller struct {
	// Privileged callers may issue restricted GET requests.
	Privileged bool
}
