// Package apperr holds the stable, user-visible error codes of the document engine.
package apperr

import "errors"

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
)

// Error carries a stable code and message. Values are sentinels compared with errors.Is.
type Error struct {
	Code    string
	Message string
	Kind    Kind
}

func (e *Error) Error() string { return e.Message }

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Code: code, Message: msg, Kind: kind}
}

var (
	ErrDocumentNotFound        = newErr(KindNotFound, "DOCUMENT_NOT_FOUND", "document not found")
	ErrInvalidTransition       = newErr(KindValidation, "DOCUMENT_INVALID_TRANSITION", "invalid status transition")
	ErrItemsRequired           = newErr(KindValidation, "DOCUMENT_ITEMS_REQUIRED", "sales and purchase documents require at least one item before submission")
	ErrAlreadyPosted           = newErr(KindValidation, "DOCUMENT_ALREADY_POSTED", "posted documents cannot be modified, create a reversal document instead")
	ErrApprovalNotFound        = newErr(KindNotFound, "DOCUMENT_APPROVAL_NOT_FOUND", "approval record not found")
	ErrApprovalStepNotReady    = newErr(KindValidation, "DOCUMENT_APPROVAL_STEP_NOT_READY", "previous approval steps must be completed first")
	ErrApprovalAlreadyDecided  = newErr(KindValidation, "DOCUMENT_APPROVAL_ALREADY_DECIDED", "this approval step has already been decided")
	ErrInvalidDocumentType     = newErr(KindValidation, "DOCUMENT_INVALID_TYPE", "invalid or unsupported document type")
	ErrPostingAlreadyProcessed = newErr(KindValidation, "DOCUMENT_POSTING_ALREADY_PROCESSED", "document has already been posted")
	ErrAccessDenied            = newErr(KindForbidden, "DOCUMENT_ACCESS_DENIED", "insufficient role to decide this approval step")
	ErrNumberSettings          = newErr(KindInternal, "DOCUMENT_NUMBER_SETTINGS_UNAVAILABLE", "failed to initialize document number settings")
	ErrInvalidNumberSettings   = newErr(KindValidation, "DOCUMENT_NUMBER_SETTINGS_INVALID", "padding length must be between 1 and 12")
	ErrNoChartOfAccounts       = newErr(KindValidation, "DOCUMENT_NO_CHART_OF_ACCOUNTS", "no chart of accounts found for tenant")
	ErrOutboxNotFound          = newErr(KindNotFound, "OUTBOX_NOT_FOUND", "outbox event not found")
)

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
