// Package cli implements the genpolicy command line tool: it compiles a
// workload manifest into policy text and writes the patched manifest back.
package cli
