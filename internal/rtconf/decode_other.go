//go:build !linux
// +build !linux

package rtconf

// rtnetlink payloads only exist on Linux.
var (
	routeDecoders   = map[decoderKey]routeDecoder{}
	addressDecoders = map[decoderKey]addressDecoder{}
)
