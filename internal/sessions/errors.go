package sessions

import "fmt"

// SessionNotFoundError indicates that no stored session matches the
// given name or id.
type SessionNotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %q", e.Name)
}

// SessionExistsError indicates that a session with the same name is
// already stored.
type SessionExistsError struct {
	Name string
}

// Error implements the error interface.
func (e *SessionExistsError) Error() string {
	return fmt.Sprintf("session already exists: %q", e.Name)
}
