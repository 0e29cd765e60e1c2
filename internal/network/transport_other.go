//go:build !linux
// +build !linux

package network

import (
	"errors"

	"grimm.is/rtmirror/internal/rtconf"
)

// ErrUnsupported is returned by Open on platforms without rtnetlink.
var ErrUnsupported = errors.New("rtnetlink is only available on linux")

// Transport is unavailable on this platform.
type Transport struct{}

// Open always fails on this platform.
func Open(opts Options) (*Transport, error) {
	return nil, ErrUnsupported
}

// Opener returns an opener that always fails on this platform.
func Opener(opts Options) rtconf.TransportOpener {
	return func() (rtconf.Transport, error) {
		return nil, ErrUnsupported
	}
}
