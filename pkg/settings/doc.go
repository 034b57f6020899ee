// Package settings loads the policy generation settings file, most notably
// the storage-class classification tables used to decide whether a persistent
// volume claim is backed by a block device, a network share, or neither.
package settings
