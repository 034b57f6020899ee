package attestation

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/google/go-sev-guest/abi"
	"github.com/google/go-sev-guest/client"
	"go.uber.org/zap"
)

// ReportDataSize is the size of the caller-chosen report data buffer. The
// binding check passes a zero-filled buffer; no extra nonce is needed because
// the interesting value is HOST_DATA, committed at VM launch.
const ReportDataSize = 64

// Report is the slice of an attestation report the binding check consumes.
type Report struct {
	// HostData is the 32-byte value the host committed at launch. For a
	// confidential pod this is the digest of the policy the VM is meant
	// to enforce.
	HostData []byte
}

// ReportProvider fetches a fresh attestation report from the guest firmware.
type ReportProvider interface {
	Report(reportData [ReportDataSize]byte) (*Report, error)
}

// SNPProvider reads reports from the SEV-SNP guest device.
type SNPProvider struct{}

func (SNPProvider) Report(reportData [ReportDataSize]byte) (*Report, error) {
	qp, err := client.GetQuoteProvider()
	if err != nil {
		return nil, fmt.Errorf("opening SNP quote provider: %w", err)
	}
	raw, err := qp.GetRawQuote(reportData)
	if err != nil {
		return nil, fmt.Errorf("fetching SNP report: %w", err)
	}
	if len(raw) < abi.ReportSize {
		return nil, fmt.Errorf("SNP report truncated: %d bytes", len(raw))
	}
	report, err := abi.ReportToProto(raw[:abi.ReportSize])
	if err != nil {
		return nil, fmt.Errorf("parsing SNP report: %w", err)
	}
	return &Report{HostData: report.HostData}, nil
}

// Verifier checks the policy-to-measurement binding.
type Verifier struct {
	log      *zap.SugaredLogger
	provider ReportProvider
}

// NewVerifier creates a Verifier. A nil provider selects the SNP guest
// device.
func NewVerifier(log *zap.SugaredLogger, provider ReportProvider) *Verifier {
	if provider == nil {
		provider = SNPProvider{}
	}
	return &Verifier{log: log, provider: provider}
}

// Verify computes the SHA-256 digest of the exact policy text and compares it
// byte for byte against the report's HOST_DATA. Any mismatch is a hard
// failure: the caller must keep the previously active policy.
func (v *Verifier) Verify(policy string) error {
	digest := sha256.Sum256([]byte(policy))
	v.log.Debugw("policy: calculated hash", "digest", fmt.Sprintf("%x", digest))

	var reportData [ReportDataSize]byte
	report, err := v.provider.Report(reportData)
	if err != nil {
		return fmt.Errorf("attestation report: %w", err)
	}

	if !bytes.Equal(report.HostData, digest[:]) {
		return fmt.Errorf("unexpected policy hash %x, expected %x", digest, report.HostData)
	}
	return nil
}
