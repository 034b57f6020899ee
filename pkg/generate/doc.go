// Package generate renders the rego policy text for a normalized workload
// resource: the per-container policy data plus the endpoint rules the guest
// agent queries at runtime.
package generate
