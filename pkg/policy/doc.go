// Package policy implements the guest agent's policy enforcement engine: it
// evaluates every privileged API call against the active rego rule set,
// verifies the attestation binding before a policy replacement, and keeps the
// optional eval-input debug log.
package policy
