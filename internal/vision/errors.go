package vision

import "fmt"

// InterpretationError carries the raw failure reason of a receipt scan so
// callers can show it to the user instead of crashing the scan flow.
type InterpretationError struct {
	Reason string
	Err    error
}

func (e *InterpretationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("receipt interpretation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("receipt interpretation failed: %s", e.Reason)
}

func (e *InterpretationError) Unwrap() error { return e.Err }

func interpretationErr(reason string, err error) error {
	return &InterpretationError{Reason: reason, Err: err}
}
