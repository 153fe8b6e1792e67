//go:build !unix

package fsx

// Windows moves across volumes fail with their own error codes and are
// handled by the generic error path, so there is nothing to detect here.
func isEXDEV(err error) bool { return false }
