//go:build !linux
// +build !linux

package network

// NewLinkResolver returns a resolver that renders every index as "if<N>".
func NewLinkResolver(nsName string) (*LinkResolver, error) {
	return NewLinkResolverWith(defaultLinker{}), nil
}
