// Package wextnl contains the generic netlink family used to carry Wireless
// Extensions requests between processes.
package wextnl

// Family name and version.
const (
	GenlName    = "wext"
	GenlVersion = 1
)

// Commands.
const (
	CmdUnspec = iota
	CmdDispatch
	CmdGetDevice
)

// Attributes.
const (
	AttrUnspec = iota

	// string: device name
	AttrIfname

	// u32: interface index
	AttrIfindex

	// u16: Wireless Extensions command
	AttrCmd

	// binary: the 16 byte parameter union
	AttrUnion

	// binary: POINT payload, up to AttrCapacity bytes
	AttrBuffer

	// u32: size of the caller's buffer
	AttrCapacity

	// flag: the caller asks for privileged access, which the server may
	// refuse
	AttrPrivileged

	// u32: errno of a failed request, 0 on success
	AttrErrno

	// u8: ErrKind* classifying a failed request
	AttrErrKind
)

// Error kinds. ErrKindHandler failures carry the handler's errno unchanged;
// the others name the check that failed before or after the handler ran.
const (
	ErrKindNone = iota
	ErrKindHandler
	ErrKindCommit
	ErrKindUnsupported
	ErrKindInvalidLength
	ErrKindPermission
	ErrKindResultTooLarge
	ErrKindEventTooLarge
	ErrKindNoDevice
	ErrKindDeviceExists
	ErrKindIncompatibleVersion
	ErrKindInternal
	ErrKindCanceled
	ErrKindDeadline
)

