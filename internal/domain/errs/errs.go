// Package errs defines the error taxonomy shared by every layer.
//
// Handlers translate these sentinels into transport-specific shapes:
// HTTP status codes on the REST surface, scoped "error" events on the
// real-time surface. Wrap with fmt.Errorf("...: %w", errs.ErrX) to add
// context without losing the classification.
package errs

import "errors"

var (
	// ErrAuthentication — bad, missing or expired credential. Terminal for
	// the connection that presented it.
	ErrAuthentication = errors.New("authentication failed")

	// ErrForbidden — the caller is not a participant of the conversation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound — conversation or message does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBadState — the conversation is not in a state that accepts the
	// action (e.g. sending into an unmatched conversation).
	ErrBadState = errors.New("conversation state does not allow this action")

	// ErrValidation — malformed or schema-violating payload.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable — the backing store or a collaborator is unreachable.
	// Reported as a generic failure; the client owns the retry.
	ErrUnavailable = errors.New("temporarily unavailable")
)

// Kind returns the sentinel an error wraps, or nil for unclassified errors.
func Kind(err error) error {
	for _, sentinel := range []error{
		ErrAuthentication,
		ErrForbidden,
		ErrNotFound,
		ErrBadState,
		ErrValidation,
		ErrUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}
