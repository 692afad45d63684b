//go:build !linux
// +build !linux

package wext

import (
	"context"
	"errors"
)

var errUnimplemented = errors.New("generic netlink is not implemented on this platform")

// A Client is the no-op implementation of a generic netlink client.
type Client struct{}

// A DeviceInfo identifies a device served over generic netlink.
type DeviceInfo struct {
	Name  string
	Index int
}

// Dial always returns an error on this platform.
func Dial() (*Client, error) { return nil, errUnimplemented }

func (*Client) Close() error { return errUnimplemented }

func (*Client) Dispatch(_ context.Context, _ string, _ Command, _ *Request, _ Caller) error {
	return errUnimplemented
}

func (*Client) Devices() ([]DeviceInfo, error) { return nil, errUnimplemented }
