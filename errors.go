package ddc

import "github.com/ddcio/ddcci/status"

// Status and ErrorInfo are re-exported from the status package so
// callers of this package never need to import it directly — the
// split exists only to let the leaf packages (retryengine, discovery,
// ...) share the error vocabulary without importing this package back.
type (
	Status    = status.Status
	ErrorInfo = status.ErrorInfo
)

const (
	StatusOK                    = status.StatusOK
	StatusInvalidArgument       = status.StatusInvalidArgument
	StatusInvalidOperation      = status.StatusInvalidOperation
	StatusDisplayNotFound       = status.StatusDisplayNotFound
	StatusDisplayBusy           = status.StatusDisplayBusy
	StatusDisplayRemoved        = status.StatusDisplayRemoved
	StatusCommunicationFailed   = status.StatusCommunicationFailed
	StatusRetriesExhausted      = status.StatusRetriesExhausted
	StatusAllResponsesNull      = status.StatusAllResponsesNull
	StatusReportedUnsupported   = status.StatusReportedUnsupported
	StatusDeterminedUnsupported = status.StatusDeterminedUnsupported
	StatusChecksumMismatch      = status.StatusChecksumMismatch
	StatusNullResponse          = status.StatusNullResponse
	StatusShortRead             = status.StatusShortRead
	StatusInvalidResponse       = status.StatusInvalidResponse
	StatusVerificationFailed    = status.StatusVerificationFailed
	StatusBadConfigurationFile  = status.StatusBadConfigurationFile
	StatusCancelled             = status.StatusCancelled
)

var NewError = status.NewError
