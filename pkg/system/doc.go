// Package system provides process-level plumbing shared by the binaries:
// zap logger construction and test logger helpers.
package system
