package session

import "fmt"

// ValidationError is a client-side input problem. It is raised before any
// network call or state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthError is a credential rejection from the backend. Message is the
// server's text, suitable for display as-is.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// CorruptStateError reports persisted session data that could not be
// decoded. The store clears the entry and continues logged out.
type CorruptStateError struct {
	Key string
	Err error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt persisted %q: %v", e.Key, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}
