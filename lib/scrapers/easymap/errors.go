package easymap

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSessionNotEstablished = errors.New("session is not established")
	ErrSessionClosed         = errors.New("session is closed")
)

// SessionError is returned by any step of the portal protocol that fails,
// Status and Body hold the offending response when there was one.
type SessionError struct {
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *SessionError) Error() string {
	var out strings.Builder
	out.WriteString("easymap: ")
	out.WriteString(e.Message)
	if e.Status != 0 {
		out.WriteString(fmt.Sprintf(" (status %d)", e.Status))
	}
	if e.Err != nil {
		out.WriteString(": ")
		out.WriteString(e.Err.Error())
	}
	return out.String()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
