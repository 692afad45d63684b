//go:build linux
// +build linux

package main

import "github.com/mdlayher/wext"

func netlinkTransport() (wext.Transport, error) {
	t, err := wext.DialNetlinkTransport()
	if err != nil {
		return nil, err
	}
	closers = append(closers, t)

	return t, nil
}
