package application

import (
	"context"
	"io"
)

// Transport submits one command line to the server endpoint and
// returns the raw response stream. Implementations own connection
// pooling, proxies, TLS and timeouts; the client only reads lines.
type Transport interface {
	Submit(ctx context.Context, command string) (io.ReadCloser, error)

	// Endpoint identifies the server for authentication bookkeeping.
	Endpoint() (host string, port int, proxy bool)
}

// CredentialsProvider obtains credentials for a server. The host
// environment decides whether that means prompting, a keychain, or a
// stored secret; the client only consumes the result.
type CredentialsProvider interface {
	Credentials(host string, port int, proxy bool) (login, password string, err error)
}

// ProgressMonitor is the cooperative progress and cancellation
// reporter supplied per operation. The client polls IsCancelled
// between response rows, never mid-row.
type ProgressMonitor interface {
	Begin(name string, totalUnits int)
	Advance(units int)
	Finish()
	IsCancelled() bool
}

// NullMonitor is a ProgressMonitor that reports nothing and is never
// cancelled. Use it when the caller has no UI to report to.
type NullMonitor struct{}

func (NullMonitor) Begin(string, int) {}
func (NullMonitor) Advance(int)       {}
func (NullMonitor) Finish()           {}
func (NullMonitor) IsCancelled() bool { return false }
