//go:build !linux

package health

import "context"

// InterfacesCheck is always unhealthy off Linux.
func InterfacesCheck(nsName string) CheckFunc {
	return func(ctx context.Context) Check {
		return Check{Status: StatusUnhealthy, Message: "rtnetlink unsupported on this OS"}
	}
}

// MemoryCheck is a no-op off Linux.
func MemoryCheck(ctx context.Context) Check {
	return Check{Status: StatusHealthy, Message: "procfs unsupported on this OS"}
}
