package executor

import (
	"errors"
	"time"

	"github.com/isdmx/runbox/sandbox"
)

// Request is one submission.
type Request struct {
	Code     string
	Language string
	Stdin    string
}

// Result is the uniform answer to a Request.
type Result struct {
	Output        string
	Error         string
	ExecutionTime time.Duration
	// Kind is empty on success.
	Kind sandbox.Kind
}

// Payload is the wire form shared by every front end.
type Payload struct {
	Output        string  `json:"output"`
	Error         string  `json:"error"`
	ExecutionTime float64 `json:"execution_time"`
}

// Payload converts r to its wire form, with the elapsed time in seconds.
func (r Result) Payload() Payload {
	return Payload{
		Output:        r.Output,
		Error:         r.Error,
		ExecutionTime: r.ExecutionTime.Seconds(),
	}
}

// OK reports whether the run completed without a service-side failure.
func (r Result) OK() bool {
	return r.Error == ""
}

// fromOutcome assembles a Result from what the orchestrator produced.
func fromOutcome(o sandbox.Outcome) Result {
	if o.Err == nil {
		return Result{Output: o.Output, ExecutionTime: o.Elapsed}
	}
	return Result{
		Output:        o.Output,
		Error:         o.Err.Error(),
		ExecutionTime: o.Elapsed,
		Kind:          sandbox.KindOf(o.Err),
	}
}

// fromError assembles a Result for failures before any container exists.
func fromError(err error) Result {
	kind := sandbox.KindOf(err)
	if kind == "" {
		kind = sandbox.KindEngine
	}
	var se *sandbox.Error
	if !errors.As(err, &se) {
		err = &sandbox.Error{Kind: kind, Err: err}
	}
	return Result{Error: err.Error(), Kind: kind}
}
