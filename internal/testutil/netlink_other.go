//go:build !linux

package testutil

import "testing"

// RequireNetlink always skips off Linux.
func RequireNetlink(t *testing.T) {
	t.Helper()
	t.Skip("Skipping test: rtnetlink requires linux")
}
