package rtconf

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned when a payload cannot be decoded.
	ErrMalformed = errors.New("malformed rtnetlink payload")
	// ErrUnsupportedFamily is returned when no decoder exists for the
	// (kind, family) pair of a message.
	ErrUnsupportedFamily = errors.New("unsupported address family")
)

// decoderKey selects a decoder. Adding a family or a message kind only
// means adding entries to the decoder tables.
type decoderKey struct {
	kind   Kind
	family Family
}

type (
	routeDecoder   func(payload []byte) (RouteEntry, error)
	addressDecoder func(payload []byte) (AddressEntry, error)
)

// payloadFamily reads rtm_family / ifa_family, which is the first byte of
// both rtmsg and ifaddrmsg.
func payloadFamily(payload []byte) (Family, error) {
	if len(payload) == 0 {
		return 0, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	return Family(payload[0]), nil
}

// DecodeRoute decodes a route message payload of the given kind.
func DecodeRoute(kind Kind, payload []byte) (RouteEntry, error) {
	family, err := payloadFamily(payload)
	if err != nil {
		return RouteEntry{}, err
	}
	dec, ok := routeDecoders[decoderKey{kind, family}]
	if !ok {
		return RouteEntry{}, fmt.Errorf("%w: %s %s", ErrUnsupportedFamily, kind, family)
	}
	return dec(payload)
}

// DecodeAddress decodes an address message payload of the given kind.
func DecodeAddress(kind Kind, payload []byte) (AddressEntry, error) {
	family, err := payloadFamily(payload)
	if err != nil {
		return AddressEntry{}, err
	}
	dec, ok := addressDecoders[decoderKey{kind, family}]
	if !ok {
		return AddressEntry{}, fmt.Errorf("%w: %s %s", ErrUnsupportedFamily, kind, family)
	}
	return dec(payload)
}
