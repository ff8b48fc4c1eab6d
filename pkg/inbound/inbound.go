// Package inbound models the downstream client connection handed to the
// relay by a front end that has already parsed the request line and
// headers. It defines the Request collaborator interface the relay core
// consumes plus FromConn, a concrete socket-backed implementation built
// on a bufio.Reader over a net.Conn, with line-oriented header writing
// for the reply path.
package inbound

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Willcoder111/vegur/pkg/backend"
	"github.com/Willcoder111/vegur/pkg/errors"
	"github.com/Willcoder111/vegur/pkg/headers"
)

// State is the per-cycle metadata bag: only the two recognized fields,
// no opaque map.
type State struct {
	Continue backend.ContinueState
	Upgraded bool
}

// Request is the relay's view of the downstream client connection.
type Request interface {
	Method() string
	Version() string
	Headers() headers.List
	State() *State
	BodyReader(bt backend.BodyType) io.Reader
	PeekBuffered(timeout time.Duration) []byte
	Reply(status int, h headers.List, body io.Reader) error
	ReplyChunkedPreamble(status int, h headers.List) error
	SetBodyProducer(fn func(w io.Writer) error) error
	RawConn() (net.Conn, *bufio.Reader)
}

// Conn is the narrower view the continue arbiter needs: just enough to
// poll for client-sent bytes and forward an interim response.
type Conn interface {
	PeekBuffered(timeout time.Duration) []byte
	Reply(status int, h headers.List, body io.Reader) error
	RawConn() (net.Conn, *bufio.Reader)
}

// FromConn is a concrete socket-backed Request.
type FromConn struct {
	conn   net.Conn
	reader *bufio.Reader

	method  string
	version string
	headers headers.List
	state   State
}

// NewFromConn wraps conn (already positioned after the request line and
// headers, which are supplied by the caller's front-end parser) in a
// Request.
func NewFromConn(conn net.Conn, reader *bufio.Reader, method, version string, h headers.List) *FromConn {
	if reader == nil {
		reader = bufio.NewReader(conn)
	}
	return &FromConn{
		conn:    conn,
		reader:  reader,
		method:  method,
		version: version,
		headers: h,
	}
}

func (r *FromConn) Method() string        { return r.method }
func (r *FromConn) Version() string       { return r.version }
func (r *FromConn) Headers() headers.List { return r.headers }
func (r *FromConn) State() *State         { return &r.state }

// BodyReader returns a reader over the inbound body delimited per bt. For
// BodyChunked the caller is expected to wrap the returned reader's
// underlying bufio.Reader with pkg/chunked directly (via RawConn) when it
// needs verbatim frame bytes; here it is returned unbounded since the
// chunked terminator, not a byte count, marks its end.
func (r *FromConn) BodyReader(bt backend.BodyType) io.Reader {
	switch bt.Tag {
	case backend.BodyKnownLength:
		return io.LimitReader(r.reader, bt.Length)
	case backend.BodyChunked, backend.BodyStreamClose:
		return r.reader
	default:
		return io.LimitReader(r.reader, 0)
	}
}

// PeekBuffered returns bytes buffered from the client without consuming
// them. With timeout <= 0 it returns what is already buffered or, if
// nothing is, what the socket yields within a one-millisecond poll (used by
// the continue arbiter's zero-timeout client check); with timeout > 0 it
// waits up to timeout for at least one byte to arrive.
func (r *FromConn) PeekBuffered(timeout time.Duration) []byte {
	if timeout <= 0 {
		if b := r.peekAvailable(); b != nil {
			return b
		}
		timeout = time.Millisecond
	}

	if err := r.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil
	}
	defer r.conn.SetReadDeadline(time.Time{})

	if _, err := r.reader.Peek(1); err != nil {
		return nil
	}
	return r.peekAvailable()
}

func (r *FromConn) peekAvailable() []byte {
	n := r.reader.Buffered()
	if n == 0 {
		return nil
	}
	b, _ := r.reader.Peek(n)
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *FromConn) writeStatusLine(status int) error {
	reason := http.StatusText(status)
	line := fmt.Sprintf("%s %d %s\r\n", r.version, status, reason)
	if _, err := io.WriteString(r.conn, line); err != nil {
		return errors.NewClientIOError("writing status line", err)
	}
	return nil
}

func (r *FromConn) writeHeaders(h headers.List) error {
	var b strings.Builder
	for _, p := range h {
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	if _, err := io.WriteString(r.conn, b.String()); err != nil {
		return errors.NewClientIOError("writing headers", err)
	}
	return nil
}

// Reply writes a complete status line + headers + body to the client.
func (r *FromConn) Reply(status int, h headers.List, body io.Reader) error {
	if err := r.writeStatusLine(status); err != nil {
		return err
	}
	if err := r.writeHeaders(h); err != nil {
		return err
	}
	if body != nil {
		if _, err := io.Copy(r.conn, body); err != nil {
			return errors.NewClientIOError("writing reply body", err)
		}
	}
	return nil
}

// ReplyChunkedPreamble writes the status line and headers only, leaving
// the caller to stream verbatim chunk bytes afterward.
func (r *FromConn) ReplyChunkedPreamble(status int, h headers.List) error {
	if err := r.writeStatusLine(status); err != nil {
		return err
	}
	return r.writeHeaders(h)
}

// SetBodyProducer invokes fn with the client socket as its writer,
// propagating fn's error as the reply's outcome. This gives a streaming
// body producer a way to abort the reply with an error instead of
// panicking partway through a write.
func (r *FromConn) SetBodyProducer(fn func(w io.Writer) error) error {
	if err := fn(r.conn); err != nil {
		return errors.NewClientIOError("producing reply body", err)
	}
	return nil
}

// RawConn exposes the underlying socket and buffered reader for the byte
// pipe to take over.
func (r *FromConn) RawConn() (net.Conn, *bufio.Reader) {
	return r.conn, r.reader
}
