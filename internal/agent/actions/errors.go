package actions

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a dispatch failure. Callers switch on the kind,
// never on the error text.
type ErrorKind string

const (
	KindUnknownAction     ErrorKind = "UNKNOWN_ACTION"
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindCapabilityMissing ErrorKind = "CAPABILITY_MISSING"
	KindExecution         ErrorKind = "EXECUTION_ERROR"
	KindInvalidResult     ErrorKind = "INVALID_RESULT"
	KindDuplicateAction   ErrorKind = "DUPLICATE_ACTION"
)

// DispatchError is the structured error type returned by the Catalog and
// the Dispatcher. Fields names the offending parameters for validation
// failures; Capability names the missing capability identifier.
type DispatchError struct {
	Kind       ErrorKind
	Action     string
	Fields     []string
	Capability string
	Err        error
}

func (e *DispatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: action %q", e.Kind, e.Action)
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, ": parameter(s) %s", strings.Join(e.Fields, ", "))
	}
	if e.Capability != "" {
		fmt.Fprintf(&b, ": capability %q", e.Capability)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DispatchError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, or an empty kind if err is not
// a DispatchError.
func KindOf(err error) ErrorKind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func newUnknownAction(name string) *DispatchError {
	return &DispatchError{Kind: KindUnknownAction, Action: name}
}

func newValidationError(action string, fields []string, cause error) *DispatchError {
	return &DispatchError{Kind: KindValidation, Action: action, Fields: fields, Err: cause}
}

func newCapabilityMissing(action, capability string) *DispatchError {
	return &DispatchError{Kind: KindCapabilityMissing, Action: action, Capability: capability}
}

func newExecutionError(action string, cause error) *DispatchError {
	return &DispatchError{Kind: KindExecution, Action: action, Err: cause}
}

func newInvalidResult(action string, cause error) *DispatchError {
	return &DispatchError{Kind: KindInvalidResult, Action: action, Err: cause}
}

func newDuplicateAction(name string) *DispatchError {
	return &DispatchError{Kind: KindDuplicateAction, Action: name}
}
