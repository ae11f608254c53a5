package sandbox

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnsupportedLanguage Kind = "unsupported_language"
	KindWorkspace           Kind = "workspace"
	KindEngine              Kind = "engine"
	KindTeardown            Kind = "teardown"
	KindTimeout             Kind = "timeout"
	KindCapacity            Kind = "capacity"
	KindCanceled            Kind = "canceled"
)

// Op names the step a failure happened in.
type Op string

const (
	OpLookup    Op = "lookup"
	OpStage     Op = "stage"
	OpProvision Op = "provision"
	OpStart     Op = "start"
	OpAttach    Op = "attach"
	OpWait      Op = "wait"
	OpLogs      Op = "logs"
	OpDestroy   Op = "destroy"
	OpAcquire   Op = "acquire"
)

// Error is the single error type produced while executing a request.
type Error struct {
	Kind   Kind
	Op     Op
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnsupportedLanguage:
		return "Unsupported language: " + e.Detail
	case KindTimeout:
		return "Execution timed out after " + e.Detail
	case KindCapacity:
		return "Sandbox capacity exceeded: " + e.Detail
	case KindCanceled:
		return fmt.Sprintf("Execution canceled during %s: %v", e.Op, e.Err)
	case KindWorkspace:
		return fmt.Sprintf("Workspace error during %s: %v", e.Op, e.Err)
	case KindTeardown:
		return fmt.Sprintf("Teardown error: %v", e.Err)
	default:
		return fmt.Sprintf("Engine error during %s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// UnsupportedLanguage builds the error returned for unknown identifiers.
func UnsupportedLanguage(name string) *Error {
	return &Error{Kind: KindUnsupportedLanguage, Op: OpLookup, Detail: name}
}

// WorkspaceError wraps a staging failure.
func WorkspaceError(op Op, err error) *Error {
	return &Error{Kind: KindWorkspace, Op: op, Err: err}
}

// CapacityExceeded builds the error returned when every sandbox slot is busy.
func CapacityExceeded(limit int64) *Error {
	return &Error{
		Kind:   KindCapacity,
		Op:     OpAcquire,
		Detail: fmt.Sprintf("%d runs already active", limit),
	}
}
