// Package status is the stable, externally-visible error vocabulary
// shared by every layer of the DDC/CI engine (spec.md §7): status codes
// and the structured ErrorInfo cause tree the retry engine (C3) builds
// and higher layers propagate without unwrapping.
package status

import "fmt"

// Status is the stable, externally-visible error kind every operation in
// this package can return. Callers that need the full attempt-by-attempt
// detail should use Context.LastError after a failing call (spec.md §4.10,
// §7).
type Status int

const (
	StatusOK Status = iota
	StatusInvalidArgument
	StatusInvalidOperation
	StatusDisplayNotFound
	StatusDisplayBusy
	StatusDisplayRemoved
	StatusCommunicationFailed
	StatusRetriesExhausted
	StatusAllResponsesNull
	StatusReportedUnsupported
	StatusDeterminedUnsupported
	StatusChecksumMismatch
	StatusNullResponse
	StatusShortRead
	StatusInvalidResponse
	StatusVerificationFailed
	StatusBadConfigurationFile
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusOK:                    "ok",
	StatusInvalidArgument:       "invalid-argument",
	StatusInvalidOperation:      "invalid-operation",
	StatusDisplayNotFound:       "display-not-found",
	StatusDisplayBusy:           "display-busy",
	StatusDisplayRemoved:        "display-removed",
	StatusCommunicationFailed:   "communication-failed",
	StatusRetriesExhausted:      "retries-exhausted",
	StatusAllResponsesNull:      "all-responses-null",
	StatusReportedUnsupported:   "reported-unsupported",
	StatusDeterminedUnsupported: "determined-unsupported",
	StatusChecksumMismatch:      "checksum-mismatch",
	StatusNullResponse:          "null-response",
	StatusShortRead:             "short-read",
	StatusInvalidResponse:       "invalid-response",
	StatusVerificationFailed:    "verification-failed",
	StatusBadConfigurationFile:  "bad-configuration-file",
	StatusCancelled:             "cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ErrorInfo is a tree node carrying a status code, the component that
// raised it, a human message, and zero or more causes — the structured
// error chain of spec.md §3/§7. The retry engine builds these trees;
// higher layers never unwrap them silently.
type ErrorInfo struct {
	Status  Status
	Site    string
	Message string
	Causes  []*ErrorInfo
}

func NewError(status Status, site, message string) *ErrorInfo {
	return &ErrorInfo{Status: status, Site: site, Message: message}
}

func (e *ErrorInfo) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Causes) == 0 {
		return fmt.Sprintf("%s: %s [%s]", e.Site, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s [%s] (%d causes)", e.Site, e.Message, e.Status, len(e.Causes))
}

// WithCause appends a cause and returns the receiver for chaining.
func (e *ErrorInfo) WithCause(cause *ErrorInfo) *ErrorInfo {
	if cause != nil {
		e.Causes = append(e.Causes, cause)
	}
	return e
}

// AllStatus reports whether every leaf cause (or the node itself, when it
// has no causes) carries the given status. Used by the retry engine's
// all-responses-null collapse rule (spec.md §4.3).
func (e *ErrorInfo) AllStatus(status Status) bool {
	if len(e.Causes) == 0 {
		return e.Status == status
	}
	for _, c := range e.Causes {
		if !c.AllStatus(status) {
			return false
		}
	}
	return true
}

// Tree renders the causes tree as indented lines, for the CLI's
// single-line-summary-then-causes-tree behaviour (spec.md §7).
func (e *ErrorInfo) Tree() string {
	var b []byte
	e.writeTree(&b, 0)
	return string(b)
}

func (e *ErrorInfo) writeTree(b *[]byte, depth int) {
	for i := 0; i < depth; i++ {
		*b = append(*b, ' ', ' ')
	}
	*b = append(*b, []byte(fmt.Sprintf("%s: %s [%s]\n", e.Site, e.Message, e.Status))...)
	for _, c := range e.Causes {
		c.writeTree(b, depth+1)
	}
}
