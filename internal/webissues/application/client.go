package application

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/log"
	"github.com/praveencs87/mylyn-webissues-sub001/internal/protocol"
	domain "github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/domain"
)

// maxAuthAttempts is the number of consecutive credential rejections
// tolerated for one server key before the operation fails.
const maxAuthAttempts = 3

// authAttempts counts outstanding credential rejections per
// host:port:proxy:realm key, process-wide. go-cache is internally
// locked, which gives the counter its single mutual-exclusion domain;
// entries are flushed on any successful operation and expire on their
// own if a client is abandoned mid-challenge.
var authAttempts = cache.New(time.Hour, 10*time.Minute)

var tracer = otel.Tracer("github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/application")

// Client speaks the command/response protocol over a Transport. Every
// Execute call is a retryable unit: an authentication challenge may
// cause the command to be submitted again after a LOGIN exchange, so
// commands must be idempotent or safe to re-run.
type Client struct {
	transport Transport
	creds     CredentialsProvider

	mu      sync.Mutex
	realm   string
	session *domain.ServerInfo
	lastErr error
}

// NewClient creates a protocol client over the given transport. The
// authentication realm defaults to the protocol name and is refined to
// the server's reported name after the first HELLO or LOGIN.
func NewClient(transport Transport, creds CredentialsProvider) *Client {
	return &Client{transport: transport, creds: creds, realm: "webissues"}
}

// Session returns the server info from the most recent HELLO or LOGIN,
// or nil before the first exchange.
func (c *Client) Session() *domain.ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// LastError returns the most recent network-triggered failure, so a
// caller can re-surface it without an immediate interruption.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

func (c *Client) setSession(info *domain.ServerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = info
	if info.Name != "" {
		c.realm = info.Name
	}
}

func (c *Client) currentRealm() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.realm
}

// Execute submits a command and returns its response rows. On an
// authentication challenge the client requests credentials, performs a
// LOGIN exchange and re-runs the command; after three consecutive
// credential rejections the server key is purged and the operation
// fails with TooManyAuthAttemptsError. Successful completion clears
// all outstanding attempt counters process-wide.
func (c *Client) Execute(ctx context.Context, command string, monitor ProgressMonitor) ([]protocol.Row, error) {
	if monitor == nil {
		monitor = NullMonitor{}
	}
	verb := commandVerb(command)

	ctx, span := tracer.Start(ctx, "webissues.execute",
		trace.WithAttributes(attribute.String("webissues.command", verb)))
	defer span.End()

	monitor.Begin(verb, -1)
	defer monitor.Finish()

	for {
		rows, err := c.executeOnce(ctx, command, monitor)
		if err == nil {
			authAttempts.Flush()
			return rows, nil
		}

		var perr *ProtocolError
		if errors.As(err, &perr) && perr.authRequired() {
			if authErr := c.authenticate(ctx, monitor); authErr != nil {
				c.record(authErr)
				span.RecordError(authErr)
				span.SetStatus(codes.Error, "authentication failed")
				return nil, authErr
			}
			continue
		}

		c.record(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, verb+" failed")
		return nil, err
	}
}

// executeOnce performs one submit/read cycle without auth retry.
func (c *Client) executeOnce(ctx context.Context, command string, monitor ProgressMonitor) ([]protocol.Row, error) {
	verb := commandVerb(command)
	log.Debug(log.CatNet, "executing command", "verb", verb)

	body, err := c.transport.Submit(ctx, command)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = body.Close() }()

	var rows []protocol.Row
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		// Cancellation is polled between rows, never mid-row.
		if monitor.IsCancelled() {
			return nil, ErrCancelled
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		row, err := protocol.ParseRow(line)
		if err != nil {
			return nil, err
		}
		switch row.Tag {
		case protocol.TagError:
			if err := row.Require(2); err != nil {
				return nil, err
			}
			return nil, &ProtocolError{Code: row.String(0), Message: row.String(1)}
		case protocol.TagIgnored:
			log.Debug(log.CatNet, "skipping unrecognized row", "tag", row.RawTag)
		default:
			rows = append(rows, row)
			monitor.Advance(1)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &TransportError{Err: err}
	}
	return rows, nil
}

// authenticate answers one authentication challenge: it ticks the
// attempt counter for the server key, requests credentials and runs a
// LOGIN exchange. A rejected LOGIN returns nil so the caller re-runs
// the original command and challenges again, which is what advances
// the counter toward the threshold.
func (c *Client) authenticate(ctx context.Context, monitor ProgressMonitor) error {
	host, port, proxy := c.transport.Endpoint()
	realm := c.currentRealm()
	key := fmt.Sprintf("%s:%d:%t:%s", host, port, proxy, realm)

	attempts := 0
	if v, ok := authAttempts.Get(key); ok {
		attempts = v.(int)
	}
	if attempts >= maxAuthAttempts {
		authAttempts.Delete(key)
		return &TooManyAuthAttemptsError{Host: host, Port: port, Proxy: proxy, Realm: realm}
	}
	authAttempts.Set(key, attempts+1, cache.DefaultExpiration)

	login, password, err := c.creds.Credentials(host, port, proxy)
	if err != nil {
		return err
	}

	command := "LOGIN " + protocol.Quote(login) + " " + protocol.Quote(password)
	rows, err := c.executeOnce(ctx, command, monitor)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) && perr.authRequired() {
			log.Warn(log.CatNet, "credentials rejected", "host", host, "attempt", attempts+1)
			return nil
		}
		return err
	}

	for _, row := range rows {
		if row.Tag == protocol.TagServerInfo {
			info, err := domain.NewServerInfoFromRow(row)
			if err != nil {
				return err
			}
			c.setSession(info)
		}
	}
	return nil
}

// commandVerb returns the leading keywords of a command for logging
// and span names, leaving arguments (and credentials) out.
func commandVerb(command string) string {
	fields := strings.Fields(command)
	verb := ""
	for _, f := range fields {
		if strings.ToUpper(f) != f || strings.Trim(f, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
			break
		}
		if verb != "" {
			verb += " "
		}
		verb += f
	}
	if verb == "" && len(fields) > 0 {
		verb = fields[0]
	}
	return verb
}
