// Package attestation binds the enforced policy to the VM's measured boot:
// a replacement policy is only accepted when the SHA-256 digest of its text
// matches the HOST_DATA field of a fresh SEV-SNP attestation report.
package attestation
