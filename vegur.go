// Package vegur implements a raw-socket HTTP/1.1 relay: it forwards a
// client request to a single backend, correctly handling request/response
// body framing (empty, known-length, chunked, stream-to-close),
// Expect: 100-continue negotiation, and Connection: Upgrade promotion to
// a raw byte pipe.
package vegur

import (
	"bufio"
	"context"
	"net"

	"github.com/Willcoder111/vegur/pkg/cycle"
	"github.com/Willcoder111/vegur/pkg/errors"
	"github.com/Willcoder111/vegur/pkg/headers"
	"github.com/Willcoder111/vegur/pkg/inbound"
	"github.com/Willcoder111/vegur/pkg/timing"
	"github.com/Willcoder111/vegur/pkg/transport"
)

// Re-export the package surface a caller needs to drive one relay cycle,
// so most callers only need to import this root package.
type (
	// Config is the per-cycle configuration: backend address, timeouts,
	// and the request-target to write on the outbound request line.
	Config = cycle.Config

	// Result is the disposition of one relay cycle.
	Result = cycle.Result

	// BackendConfig describes the backend TCP endpoint (and optional
	// upstream proxy) a cycle connects to.
	BackendConfig = transport.Config

	// ProxyConfig configures an upstream HTTP CONNECT or SOCKS5 proxy the
	// backend connection is dialed through.
	ProxyConfig = transport.ProxyConfig

	// Request is the inbound-connection view a front end hands to Run.
	Request = inbound.Request

	// Metrics captures per-cycle connect/TTFB/total timing.
	Metrics = timing.Metrics

	// Error is vegur's structured error type.
	Error = errors.Error
)

// NewRequest wraps an already-parsed client connection (raw socket,
// request method, version, and headers; the caller's front end has
// already read the request line and header block) as a Request ready to
// hand to Run. reader may be nil, in which case one is created over conn.
func NewRequest(conn net.Conn, reader *bufio.Reader, method, version string, h headers.List) Request {
	return inbound.NewFromConn(conn, reader, method, version, h)
}

// Run executes one full relay cycle: upgrade check, backend connect,
// request forward (interleaving Expect: 100-continue negotiation),
// backend response read, and response relay or byte-pipe promotion on a
// successful protocol upgrade.
func Run(ctx context.Context, req Request, cfg Config) (Result, error) {
	return cycle.Run(ctx, req, cfg)
}

// ParseProxyURL parses a proxy URL (http://, https://, or socks5://,
// optionally with userinfo credentials) into a ProxyConfig.
func ParseProxyURL(proxyURL string) (*ProxyConfig, error) {
	return transport.ParseProxyURL(proxyURL)
}

// IsTimeoutError reports whether err is (or wraps) a timeout.
func IsTimeoutError(err error) bool {
	return errors.IsTimeoutError(err)
}
