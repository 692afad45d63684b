//go:build linux
// +build linux

package wext

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"
)

// A Name must be exactly as large as an interface name.
const _ = uint(NameLen-unix.IFNAMSIZ) + uint(unix.IFNAMSIZ-NameLen)

// CurrentCaller describes the calling process. Processes with an effective
// UID of 0 are privileged.
func CurrentCaller() Caller {
	return Caller{Privileged: unix.Geteuid() == 0}
}

// errnos maps errors to the errno reported to ioctl callers.
var errnos = []struct {
	err   error
	errno unix.Errno
}{
	{err: ErrUnsupportedCommand, errno: unix.EOPNOTSUPP},
	{err: ErrInvalidLength, errno: unix.EINVAL},
	{err: ErrPermissionDenied, errno: unix.EPERM},
	{err: ErrResultTooLarge, errno: unix.E2BIG},
	{err: ErrEventTooLarge, errno: unix.EMSGSIZE},
	{err: ErrNoDevice, errno: unix.ENODEV},
	{err: ErrDeviceExists, errno: unix.EEXIST},
	{err: ErrIncompatibleVersion, errno: unix.EINVAL},
	{err: errHandlerParams, errno: unix.EFAULT},
	{err: context.Canceled, errno: unix.EINTR},
	{err: context.DeadlineExceeded, errno: unix.ETIMEDOUT},
}

// Errno returns the errno an ioctl caller would observe for err. Errors from
// handlers which wrap a unix.Errno keep it; other failures report EIO. Errno
// returns 0 for a nil error.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}

	for _, e := range errnos {
		if errors.Is(err, e.err) {
			return e.errno
		}
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}

	return unix.EIO
}
