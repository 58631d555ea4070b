// Package infrastructure provides the concrete adapters behind the
// application layer's ports, currently the HTTP transport that carries
// protocol commands to a WebIssues server.
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/log"
)

// commandPath is the server handler that accepts protocol commands.
const commandPath = "server/handler.php"

// HTTPTransport submits protocol commands to a WebIssues server over
// HTTP POST. The response body is the line-oriented reply stream.
type HTTPTransport struct {
	base   *url.URL
	client *http.Client
	proxy  bool
}

// NewHTTPTransport creates a transport for the server at baseURL. The
// timeout bounds each full command exchange; zero means no limit.
func NewHTTPTransport(baseURL string, timeout time.Duration) (*HTTPTransport, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server URL scheme %q", base.Scheme)
	}

	proxied := false
	if proxyURL, err := http.ProxyFromEnvironment(&http.Request{URL: base}); err == nil && proxyURL != nil {
		proxied = true
	}

	return &HTTPTransport{
		base:   base,
		client: &http.Client{Timeout: timeout},
		proxy:  proxied,
	}, nil
}

// Submit posts one command line and returns the reply stream. The
// caller owns closing the returned body.
func (t *HTTPTransport) Submit(ctx context.Context, command string) (io.ReadCloser, error) {
	endpoint := t.base.JoinPath(commandPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(command+"\n"))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	log.Debug(log.CatNet, "submitting command", "host", t.base.Host, "request_id", requestID)
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("server returned HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Endpoint identifies the server for authentication bookkeeping.
func (t *HTTPTransport) Endpoint() (string, int, bool) {
	host := t.base.Hostname()
	port := 80
	if t.base.Scheme == "https" {
		port = 443
	}
	if p := t.base.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	return host, port, t.proxy
}
