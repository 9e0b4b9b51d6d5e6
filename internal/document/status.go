package document

import "fmt"

// Status is the lifecycle state of a Document.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// transitions lists every allowed move. Anything absent is rejected.
var transitions = map[Status]map[Status]bool{
	StatusDraft: {
		StatusPending:   true,
		StatusCompleted: true,
		StatusArchived:  true,
	},
	StatusPending: {
		StatusDraft:     true,
		StatusCompleted: true,
		StatusArchived:  true,
	},
	StatusCompleted: {
		StatusArchived: true,
	},
	StatusArchived: {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Staying in the same state is always allowed for non-terminal states.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return s != StatusArchived && s.Valid()
	}
	return transitions[s][next]
}

// TransitionTo returns next when the move is allowed, or an
// ErrInvalidTransition error describing the rejected move.
func (s Status) TransitionTo(next Status) (Status, error) {
	if !s.CanTransitionTo(next) {
		return s, NewError(KindInvalidTransition, fmt.Sprintf("status dokumen tidak dapat berubah dari %s ke %s", s, next))
	}
	return next, nil
}

// Locked reports whether the document no longer accepts signer changes.
func (s Status) Locked() bool {
	return s == StatusCompleted || s == StatusArchived
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown document status %q", v)
	}
	return s, nil
}
