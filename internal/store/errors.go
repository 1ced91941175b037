package store

import (
	"fmt"
	"net/http"
)

// RemoteError is a failure reported by, or on the way to, the data store.
// Status is the HTTP status (or its equivalent for the Postgres backend) and
// is zero when no response was received.
type RemoteError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
	Err     error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Status == 0 {
		return "store: " + msg
	}
	return fmt.Sprintf("store: status %d: %s", e.Status, msg)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Conflict reports a unique or foreign key violation.
func (e *RemoteError) Conflict() bool { return e.Status == http.StatusConflict }

// ForeignKey reports a foreign key violation. Both backends surface the
// Postgres SQLSTATE in Code.
func (e *RemoteError) ForeignKey() bool { return e.Code == foreignKeyViolation }

func transportError(err error) *RemoteError {
	return &RemoteError{Message: err.Error(), Err: err}
}
