package document

import "errors"

// Kind classifies business failures of the signing pipeline.
type Kind string

const (
	KindUnauthorized             Kind = "unauthorized"
	KindNotFound                 Kind = "not_found"
	KindIncompleteSignatures     Kind = "incomplete_signatures"
	KindAlreadyFinalized         Kind = "already_finalized"
	KindPolicyLimitExceeded      Kind = "policy_limit_exceeded"
	KindDocumentEncrypted        Kind = "document_encrypted"
	KindMissingSignatureConfig   Kind = "missing_signature_config"
	KindNoSignaturesFound        Kind = "no_signatures_found"
	KindIncorrectPin             Kind = "incorrect_pin"
	KindLockedOut                Kind = "locked_out"
	KindTemporarilyLocked        Kind = "temporarily_locked"
	KindCannotRemoveSignedSigner Kind = "cannot_remove_signed_signer"
	KindInvalidTransition        Kind = "invalid_transition"
	KindInvalidInput             Kind = "invalid_input"
)

// Sentinel values for errors.Is. Any *Error with the same Kind matches.
var (
	ErrUnauthorized             = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrNotFound                 = &Error{Kind: KindNotFound, Message: "not found"}
	ErrIncompleteSignatures     = &Error{Kind: KindIncompleteSignatures, Message: "incomplete signatures"}
	ErrAlreadyFinalized         = &Error{Kind: KindAlreadyFinalized, Message: "already finalized"}
	ErrPolicyLimitExceeded      = &Error{Kind: KindPolicyLimitExceeded, Message: "policy limit exceeded"}
	ErrDocumentEncrypted        = &Error{Kind: KindDocumentEncrypted, Message: "document encrypted"}
	ErrMissingSignatureConfig   = &Error{Kind: KindMissingSignatureConfig, Message: "missing signature config"}
	ErrNoSignaturesFound        = &Error{Kind: KindNoSignaturesFound, Message: "no signatures found"}
	ErrIncorrectPin             = &Error{Kind: KindIncorrectPin, Message: "incorrect pin"}
	ErrLockedOut                = &Error{Kind: KindLockedOut, Message: "locked out"}
	ErrTemporarilyLocked        = &Error{Kind: KindTemporarilyLocked, Message: "temporarily locked"}
	ErrCannotRemoveSignedSigner = &Error{Kind: KindCannotRemoveSignedSigner, Message: "cannot remove signed signer"}
	ErrInvalidTransition        = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrInvalidInput             = &Error{Kind: KindInvalidInput, Message: "invalid input"}
)

// Error is a classified business error. Message is user facing.
type Error struct {
	Kind    Kind
	Message string

	// Limit is set for policy errors, Remaining for PIN attempts and
	// pending signer counts, RetryAfterMinutes for lockouts.
	Limit             int
	Remaining         int
	RetryAfterMinutes int
}

func (e *Error) Error() string { return e.Message }

// Is matches on Kind so callers can use errors.Is(err, document.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a classified error with a user-facing message.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf returns the Kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
