//go:build !linux
// +build !linux

package wext

// CurrentCaller describes the calling process. Privilege cannot be determined
// on this platform, so the caller is unprivileged.
func CurrentCaller() Caller {
	return Caller{}
}
