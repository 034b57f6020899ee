package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/telekom/coco-policy/pkg/metrics"
)

// toInputDocument projects a request onto the JSON document the evaluator
// sees. The round-trip guarantees the evaluator only ever receives plain
// JSON values.
func toInputDocument(req any) (any, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("serializing request: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("deserializing request: %w", err)
	}
	return doc, nil
}

// decide maps an evaluation outcome onto the error the RPC layer reports.
func (e *Engine) decide(ep string, allowed bool, prints string, err error) error {
	if err != nil {
		metrics.Evaluations.WithLabelValues(ep, "error").Inc()
		return &InternalError{Endpoint: ep, Err: err}
	}
	if !allowed {
		metrics.Evaluations.WithLabelValues(ep, "denied").Inc()
		return &DeniedError{Endpoint: ep, Diagnostics: prints}
	}
	metrics.Evaluations.WithLabelValues(ep, "allowed").Inc()
	return nil
}

// IsAllowed checks one intercepted API call against the active policy. The
// endpoint is the logical message name of the call; the RPC layer derives it
// from the request's message type.
func (e *Engine) IsAllowed(ctx context.Context, endpoint string, req any) error {
	doc, err := toInputDocument(req)
	if err != nil {
		return &InternalError{Endpoint: endpoint, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	allowed, prints, evalErr := e.allowRequest(ctx, endpoint, doc)
	return e.decide(endpoint, allowed, prints, evalErr)
}

// IsAllowedCopyFile checks a copy-file call. The request is sanitized first:
// its payload is either reinterpreted as a symlink target path or dropped.
func (e *Engine) IsAllowedCopyFile(ctx context.Context, req *CopyFileRequest) error {
	return e.IsAllowed(ctx, "CopyFileRequest", sanitizeCopyFile(req))
}

// SetPolicy replaces the active policy. The replacement itself must be
// allowed under the current policy, and the new text must match the
// attestation measurement; any failure leaves the previous policy and its
// fail-open state in force.
func (e *Engine) SetPolicy(ctx context.Context, req *SetPolicyRequest) error {
	const endpoint = "SetPolicyRequest"

	doc, err := toInputDocument(req)
	if err != nil {
		return &InternalError{Endpoint: endpoint, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	allowed, prints, evalErr := e.allowRequest(ctx, endpoint, doc)
	if err := e.decide(endpoint, allowed, prints, evalErr); err != nil {
		return err
	}
	if err := e.setPolicyLocked(ctx, req.Policy); err != nil {
		return fmt.Errorf("setting policy: %w", err)
	}
	return nil
}
