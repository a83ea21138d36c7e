// Package retryengine implements the bounded retry loop of spec.md §4.3
// (C3): per-operation-class maximum try counts, a sleep hook invoked
// before each attempt, accumulation of
// per-attempt failures into a structured error chain, and the
// all-responses-null collapse rule the discovery layer depends on.
package retryengine

import (
	ddcstatus "github.com/ddcio/ddcci/status"
)

// MaxMaxTries is the hard ceiling on any class's configured cap
// (spec.md §4.3).
const MaxMaxTries = 15

// Class identifies a primitive exchange shape, each with its own
// default retry ceiling (spec.md §4.3).
type Class int

const (
	ClassWriteOnly Class = iota
	ClassWriteRead
	ClassMultiPartWrite
	ClassMultiPartRead
)

// DefaultMaxTries returns the spec-mandated default cap for class.
func DefaultMaxTries(c Class) int {
	switch c {
	case ClassWriteOnly:
		return 4
	case ClassWriteRead:
		return 6
	case ClassMultiPartWrite, ClassMultiPartRead:
		return 8
	default:
		return 4
	}
}

func (c Class) String() string {
	switch c {
	case ClassWriteOnly:
		return "write-only"
	case ClassWriteRead:
		return "write-read"
	case ClassMultiPartWrite:
		return "multi-part-write"
	case ClassMultiPartRead:
		return "multi-part-read"
	default:
		return "unknown"
	}
}

// Outcome is what a single attempt reports back to the engine.
type Outcome struct {
	// Value carries the attempt's success result; ignored when Err != nil.
	Value interface{}
	// Err, when non-nil, must be an *ddc.ErrorInfo describing why the
	// attempt failed. Retriable failures continue the loop; anything
	// else (fatal, reported-unsupported, ...) exits immediately.
	Err *ddcstatus.ErrorInfo
	// Retriable marks Err as a transient failure worth another attempt.
	Retriable bool
}

// Attempt performs one try of the underlying exchange. try is the
// 1-based attempt number.
type Attempt func(try int) Outcome

// SleepFunc is invoked by the engine before each attempt; it is the
// adaptive-sleep hook of spec.md §4.4 (C4), kept opaque here so the
// retry engine does not depend on the dsa package directly.
type SleepFunc func()

// CancelFunc reports whether the caller has asked the in-flight retry
// loop to stop (spec.md §5 cooperative cancellation). May be nil.
type CancelFunc func() bool

// Run executes attempt up to maxTries times, sleeping via sleep before
// each attempt, and returns either the first successful Outcome.Value or
// a composite *ddc.ErrorInfo chaining every attempt's failure.
//
// site is used to tag the composite error for the causes tree.
func Run(class Class, maxTries int, sleep SleepFunc, cancel CancelFunc, site string, attempt Attempt) (interface{}, *ddcstatus.ErrorInfo) {
	if maxTries < 1 {
		maxTries = 1
	}
	if maxTries > MaxMaxTries {
		maxTries = MaxMaxTries
	}

	composite := ddcstatus.NewError(ddcstatus.StatusRetriesExhausted, site,
		"all attempts for "+class.String()+" failed")

	for try := 1; try <= maxTries; try++ {
		if cancel != nil && cancel() {
			return nil, ddcstatus.NewError(ddcstatus.StatusCancelled, site, "retry loop cancelled")
		}
		if sleep != nil {
			sleep()
		}
		out := attempt(try)
		if out.Err == nil {
			return out.Value, nil
		}
		if !out.Retriable {
			return nil, out.Err
		}
		composite.WithCause(out.Err)
		if try == maxTries {
			break
		}
	}

	if composite.AllStatus(ddcstatus.StatusNullResponse) {
		composite.Status = ddcstatus.StatusAllResponsesNull
		composite.Message = "all responses null for " + class.String()
	}
	return nil, composite
}
