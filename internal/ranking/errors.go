package ranking

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindPayloadTooLarge    Kind = "PayloadTooLarge"
	KindExecutableNotFound Kind = "ExecutableNotFound"
	KindExecutionFailed    Kind = "ExecutionFailed"
	KindOutputTooLarge     Kind = "OutputTooLarge"
	KindDecode             Kind = "DecodeError"
	KindInternal           Kind = "Internal"
)

// Error is the failure returned by every pipeline stage
type Error struct {
	Kind    Kind
	Message string
	// Candidates lists, in order, every executable tried (ExecutableNotFound only)
	Candidates []string
	// Stderr is the captured standard error of the scorer, if any
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	switch {
	case len(e.Candidates) > 0:
		fmt.Fprintf(&b, " (tried: %s)", strings.Join(e.Candidates, ", "))
	case e.Stderr != "":
		fmt.Fprintf(&b, ": %s", strings.TrimSpace(e.Stderr))
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindInternal when err is not a pipeline error
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return KindInternal
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func payloadTooLarge(msg string) *Error {
	return &Error{Kind: KindPayloadTooLarge, Message: msg}
}

func internalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}
