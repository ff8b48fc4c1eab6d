// Package backend owns the outbound TCP connection to a relay's upstream
// and exposes operations to write raw request bytes, read a response
// status line and headers, and stream the response body in one of four
// framing modes, each streamed through a caller-supplied writer rather
// than buffered whole.
package backend

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Willcoder111/vegur/pkg/chunked"
	"github.com/Willcoder111/vegur/pkg/constants"
	"github.com/Willcoder111/vegur/pkg/errors"
	"github.com/Willcoder111/vegur/pkg/headers"
	"github.com/Willcoder111/vegur/pkg/timing"
	"github.com/Willcoder111/vegur/pkg/transport"
)

// BodyTag is the tag half of the BodyType sum type.
type BodyTag uint8

const (
	BodyEmpty BodyTag = iota
	BodyKnownLength
	BodyChunked
	BodyStreamClose
)

// BodyType is the response body framing descriptor (spec §3 "Body
// descriptor"). Length is only meaningful when Tag == BodyKnownLength.
type BodyType struct {
	Tag    BodyTag
	Length int64
}

// ContinueState tracks where a cycle stands in the Expect: 100-continue
// negotiation. It lives here, not in pkg/inbound, so pkg/backend never
// has to import the higher-level request package.
type ContinueState uint8

const (
	ContinueNone ContinueState = iota
	ContinuePending
	ContinueForwarded
)

// Client owns one backend TCP connection for the duration of a relay
// cycle.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	closeOnce sync.Once
	closeErr  error

	version string
}

// Connect dials the backend described by config and wraps the resulting
// connection in a Client.
func Connect(ctx context.Context, config transport.Config, timer *timing.Timer) (*Client, error) {
	conn, err := transport.Connect(ctx, config, timer)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient wraps an already-established connection (used directly by
// tests against net.Pipe or a local listener).
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// RawRequest writes req verbatim to the backend, honoring writeTimeout and
// retrying on partial writes.
func (c *Client) RawRequest(req []byte, writeTimeout time.Duration) error {
	if writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return errors.NewUpstreamIOError("setting write deadline", err)
		}
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	written := 0
	for written < len(req) {
		n, err := c.conn.Write(req[written:])
		if err != nil {
			return errors.NewUpstreamIOError("writing request", err)
		}
		written += n
	}
	return nil
}

// Write implements io.Writer over the backend connection, for callers
// that stream a request body in small bursts rather than assembling the
// whole request up front.
func (c *Client) Write(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	if err != nil {
		return n, errors.NewUpstreamIOError("writing request body", err)
	}
	return n, nil
}

func (c *Client) readLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) >= 2 && line[len(line)-2:] == "\r\n" {
		return line[:len(line)-2], nil
	}
	return strings.TrimRight(line, "\n"), nil
}

// discardHeadersBlock reads and discards header lines through the blank
// line that ends them (used to swallow a 100 Continue's empty header
// block).
func (c *Client) discardHeadersBlock() error {
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return err
		}
		if line == "\r\n" || line == "\n" {
			return nil
		}
	}
}

// Response reads the backend's status line and headers, applying
// three-way 100-response handling. When a 100 must be
// forwarded to the client (continueState == ContinueNone and reqVersion
// is HTTP/1.1+), forward100 is invoked with the exact status line to
// write; a nil forward100 in that case is a caller bug and the 100 is
// swallowed instead of forwarded.
func (c *Client) Response(continueState ContinueState, reqVersion string, readTimeout time.Duration, timer *timing.Timer, forward100 func(statusLine string) error) (status int, statusLine string, h headers.List, err error) {
	if readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return 0, "", nil, errors.NewUpstreamIOError("setting read deadline", err)
		}
	}

	if timer != nil {
		timer.StartTTFB()
	}

	for {
		line, rerr := c.readLine()
		if rerr != nil {
			return 0, "", nil, errors.NewUpstreamIOError("reading status line", rerr)
		}
		if timer != nil {
			timer.EndTTFB()
			timer = nil
		}

		version, code, perr := parseStatusLine(line)
		if perr != nil {
			return 0, "", nil, errors.NewProtocolError("invalid status line", perr)
		}
		c.version = version

		if code == 100 {
			switch continueState {
			case ContinuePending:
				if err := c.discardHeadersBlock(); err != nil {
					return 0, "", nil, errors.NewUpstreamIOError("reading interim headers", err)
				}
				continue
			case ContinueForwarded:
				return 0, "", nil, errors.ErrNonTerminalStatusAfterContinue()
			default: // ContinueNone
				if err := c.discardHeadersBlock(); err != nil {
					return 0, "", nil, errors.NewUpstreamIOError("reading interim headers", err)
				}
				if reqVersion != "HTTP/1.0" && forward100 != nil {
					if ferr := forward100(line); ferr != nil {
						return 0, "", nil, errors.NewClientIOError("forwarding 100 continue", ferr)
					}
				}
				continue
			}
		}

		hs, herr := c.readHeaders()
		if herr != nil {
			return 0, "", nil, herr
		}
		return code, line, hs, nil
	}
}

// ParseAndReadHeaders parses a status line already read from the backend
// (as returned by PollInterim) and reads the header block that follows
// it. Used by the continue arbiter when the backend's interim poll turns
// up a final (non-100) response instead of a 100 Continue.
func (c *Client) ParseAndReadHeaders(statusLine string) (status int, h headers.List, err error) {
	version, code, perr := parseStatusLine(statusLine)
	if perr != nil {
		return 0, nil, errors.NewProtocolError("invalid status line", perr)
	}
	c.version = version

	hs, herr := c.readHeaders()
	if herr != nil {
		return 0, nil, herr
	}
	return code, hs, nil
}

func parseStatusLine(line string) (version string, code int, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, errors.NewProtocolError("invalid status line format", nil)
	}
	code, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, err
	}
	return parts[0], code, nil
}

func (c *Client) readHeaders() (headers.List, error) {
	var list headers.List
	total := 0
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, errors.NewUpstreamIOError("reading headers", err)
		}
		total += len(line)
		if total > constants.MaxHeaderBytes {
			return nil, errors.NewProtocolError("headers exceed maximum size", nil)
		}
		if line == "\r\n" || line == "\n" {
			break
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(trimmed, " ") || strings.HasPrefix(trimmed, "\t") {
			if len(list) == 0 {
				continue
			}
			list[len(list)-1].Value += " " + strings.TrimSpace(trimmed)
			continue
		}
		parts := strings.SplitN(trimmed, ":", 2)
		if len(parts) != 2 {
			continue
		}
		list = append(list, headers.Pair{
			Name:  headers.Canonical(strings.TrimSpace(parts[0])),
			Value: strings.TrimSpace(parts[1]),
		})
	}
	return list, nil
}

// Reader exposes the backend's buffered reader directly, for callers that
// want to build an io.Reader over the response body themselves (e.g. a
// known-length body streamed via io.LimitReader).
func (c *Client) Reader() io.Reader { return c.reader }

// ReadKnownLengthBody copies exactly n bytes from the backend to w,
// tolerating a short read the way a raw HTTP client must (RFC-violating
// servers that send fewer bytes than Content-Length promised).
func (c *Client) ReadKnownLengthBody(w io.Writer, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	written, err := io.CopyN(w, c.reader, n)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return written, nil
		}
		return written, errors.NewUpstreamIOError("reading known-length body", err)
	}
	return written, nil
}

// ReadChunkedBodyVerbatim relays the backend's chunked body to w without
// re-encoding: chunk-size lines, payload, and CRLFs are copied exactly as
// read.
func (c *Client) ReadChunkedBodyVerbatim(w io.Writer) (int64, error) {
	r := chunked.NewReader(c.reader)
	n, err := r.CopyAll(w)
	if err != nil {
		return n, err
	}
	return n, nil
}

// ReadUntilClose copies backend bytes to w until the backend closes the
// connection (stream-to-close framing).
func (c *Client) ReadUntilClose(w io.Writer) (int64, error) {
	n, err := io.Copy(w, c.reader)
	if err != nil && err != io.EOF {
		return n, errors.NewUpstreamIOError("reading until close", err)
	}
	return n, nil
}

// PeekBuffered returns a copy of the bytes already buffered from the
// backend and discards them from the buffered reader, so later reads
// through Reader do not see them again (used by the byte pipe to forward
// backend bytes buffered past the 101 response headers).
func (c *Client) PeekBuffered() []byte {
	n := c.reader.Buffered()
	if n == 0 {
		return nil
	}
	b, _ := c.reader.Peek(n)
	out := make([]byte, len(b))
	copy(out, b)
	c.reader.Discard(len(b))
	return out
}

// PollInterim attempts to read one status line from the backend within
// pollInterval. It returns ok=false (no error) on a plain timeout, so
// callers can distinguish "nothing arrived yet" from a real I/O failure.
func (c *Client) PollInterim(pollInterval time.Duration) (statusLine string, ok bool, err error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return "", false, errors.NewUpstreamIOError("setting poll deadline", err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	line, rerr := c.readLine()
	if rerr != nil {
		if errors.IsTimeoutError(rerr) {
			return "", false, nil
		}
		return "", false, errors.NewUpstreamIOError("polling status line", rerr)
	}
	return line, true, nil
}

// RawSocket exposes the underlying connection and buffered reader so the
// byte pipe can take over framing-free bidirectional copying.
func (c *Client) RawSocket() (net.Conn, *bufio.Reader) {
	return c.conn, c.reader
}

// Version returns the HTTP version observed on the last status line read,
// or "" if none has been read yet.
func (c *Client) Version() string { return c.version }

// Close closes the backend connection. Safe to call more than once; only
// the first call's error is retained.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
