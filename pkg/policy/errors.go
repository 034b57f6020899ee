package policy

import "fmt"

// DeniedError is returned when the active policy denies a request. The RPC
// layer maps it to a permission-denied protocol error.
type DeniedError struct {
	Endpoint    string
	Diagnostics string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s is blocked by policy: %s", e.Endpoint, e.Diagnostics)
}

// InternalError is returned when the rule engine itself failed. The RPC layer
// maps it to an internal protocol error.
type InternalError struct {
	Endpoint string
	Err      error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: internal policy error: %v", e.Endpoint, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
