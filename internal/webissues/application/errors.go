package application

import (
	"errors"
	"fmt"
)

// Server failure codes carried by `E` rows.
const (
	CodeLoginRequired  = "LOGIN_REQUIRED"
	CodeIncorrectLogin = "INCORRECT_LOGIN"
)

// ProtocolError is a server-reported coded failure.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

// authRequired reports whether the failure is an authentication
// challenge the client should answer with a LOGIN retry.
func (e *ProtocolError) authRequired() bool {
	return e.Code == CodeLoginRequired || e.Code == CodeIncorrectLogin
}

// TransportError wraps an I/O or HTTP failure from the transport port.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport failure: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// TooManyAuthAttemptsError is returned after the third consecutive
// credential rejection for one server key. The key's attempt counter
// has been purged when this is returned.
type TooManyAuthAttemptsError struct {
	Host  string
	Port  int
	Proxy bool
	Realm string
}

func (e *TooManyAuthAttemptsError) Error() string {
	return fmt.Sprintf("too many authentication attempts for %s:%d (realm %q)", e.Host, e.Port, e.Realm)
}

// ErrCancelled is returned when the progress monitor reports
// cancellation between response rows.
var ErrCancelled = errors.New("operation cancelled")

// ErrNotConnected is returned for operations that need a connection in
// the disconnected state.
var ErrNotConnected = errors.New("not connected")

// ErrOffline is returned for network operations while the environment
// is in the offline state.
var ErrOffline = errors.New("environment is offline")
