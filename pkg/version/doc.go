// Package version exposes build metadata injected at build time via ldflags.
package version
