package model

// DocumentStatus is the lifecycle status of a business document.
type DocumentStatus string

const (
	StatusDraft             DocumentStatus = "DRAFT"
	StatusSubmitted         DocumentStatus = "SUBMITTED"
	StatusApproved          DocumentStatus = "APPROVED"
	StatusRejected          DocumentStatus = "REJECTED"
	StatusRevisionRequested DocumentStatus = "REVISION_REQUESTED"
	StatusPosted            DocumentStatus = "POSTED"
	StatusCancelled         DocumentStatus = "CANCELLED"
)

// AllStatuses lists every member of the fixed status set.
var AllStatuses = []DocumentStatus{
	StatusDraft,
	StatusSubmitted,
	StatusApproved,
	StatusRejected,
	StatusRevisionRequested,
	StatusPosted,
	StatusCancelled,
}

// validTransitions is the complete transition table. Anything absent is denied.
var validTransitions = map[DocumentStatus][]DocumentStatus{
	StatusDraft:             {StatusSubmitted, StatusCancelled},
	StatusSubmitted:         {StatusApproved, StatusRejected, StatusRevisionRequested, StatusCancelled},
	StatusRevisionRequested: {StatusDraft},
	StatusApproved:          {StatusPosted, StatusCancelled},
	StatusRejected:          {},
	// reversal of a posted document needs a separate compensating document
	StatusPosted:    {},
	StatusCancelled: {},
}

// IsValidTransition reports whether a document may move from one status to another.
func IsValidTransition(from, to DocumentStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal next statuses for from.
func AllowedTransitions(from DocumentStatus) []DocumentStatus {
	next := validTransitions[from]
	out := make([]DocumentStatus, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether no transition leaves s.
func (s DocumentStatus) IsTerminal() bool { return len(validTransitions[s]) == 0 }

// Valid reports whether s belongs to the status set.
func (s DocumentStatus) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}
