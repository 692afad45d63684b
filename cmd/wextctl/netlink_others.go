//go:build !linux
// +build !linux

package main

import (
	"errors"

	"github.com/mdlayher/wext"
)

func netlinkTransport() (wext.Transport, error) {
	return nil, errors.New("rtnetlink is only available on Linux")
}
