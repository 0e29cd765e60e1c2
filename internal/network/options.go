package network

import (
	"time"

	"grimm.is/rtmirror/internal/logging"
)

// Options configures Open.
type Options struct {
	// Netns names a namespace under /var/run/netns. Empty means the
	// namespace of the calling process.
	Netns string

	Logger *logging.Logger

	// QueueSize bounds messages received but not yet delivered.
	QueueSize int

	// PollInterval is the socket receive timeout; the reader notices Close at
	// least this often.
	PollInterval time.Duration
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = logging.WithComponent("network")
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
}
