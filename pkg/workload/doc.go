// Package workload normalizes Kubernetes workload manifests (DaemonSet,
// StatefulSet) into the uniform container/mount/storage model that policy
// generation consumes, and patches the generated policy text back into the
// original manifest without disturbing unrelated fields.
package workload
