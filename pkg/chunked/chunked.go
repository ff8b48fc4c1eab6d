// Package chunked implements an incremental parser/emitter for HTTP
// chunked transfer-coding (RFC 7230 §4.1). It is built to preserve the
// original framing bytes so they can be forwarded verbatim rather than
// re-encoded, and to stream one chunk at a time instead of buffering a
// whole message.
package chunked

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/Willcoder111/vegur/pkg/errors"
)

// state is the chunk parser's sum type: the parser is always in exactly
// one of these states, with no dynamic dispatch.
type state uint8

const (
	stateExpectSize state = iota
	stateInsideChunk
	stateExpectTrailers
	stateDone
)

// Cursor is the opaque state of an incremental chunked-coding parser: which
// phase it is in and how many bytes remain in the chunk currently being
// read. Lines are read whole with bufio.Reader.ReadString; the line field
// is not filled by Reader.
type Cursor struct {
	state     state
	remaining int64
	line      []byte // unused by Reader
}

// Done reports whether the cursor has consumed the terminal zero-length
// chunk and its trailers.
func (c *Cursor) Done() bool { return c.state == stateDone }

// Remaining reports how many bytes remain in the chunk currently being
// read (0 when between chunks).
func (c *Cursor) Remaining() int64 { return c.remaining }

// Reader decodes (or, in verbatim mode, simply delimits) a chunked body
// read from src, one chunk at a time.
type Reader struct {
	src    *bufio.Reader
	cursor Cursor
}

// NewReader wraps src in a chunk-aware Reader. src must already be
// positioned at the first chunk-size line.
func NewReader(src *bufio.Reader) *Reader {
	return &Reader{src: src}
}

// Cursor returns the reader's current parser state, for introspection and
// tests.
func (r *Reader) Cursor() *Cursor { return &r.cursor }

// CopyNext reads exactly one more chunk — its size line, its payload, and
// its trailing CRLF — from src and writes the bytes verbatim to w
// (chunk-size line, payload, and CRLF included, unmodified). On the
// terminal zero-length chunk it additionally reads and copies the trailer
// section through the blank line that ends it, and returns done=true.
//
// CopyNext writes the exact bytes read from src: it never re-encodes the
// chunk size or re-synthesizes the CRLFs, preserving byte-for-byte
// fidelity.
func (r *Reader) CopyNext(w io.Writer) (n int64, done bool, err error) {
	if r.cursor.state == stateDone {
		return 0, true, nil
	}

	if r.cursor.state == stateExpectTrailers {
		return r.copyTrailers(w)
	}

	// stateExpectSize: read the chunk-size line (optionally with
	// chunk-extensions after a ';', which we forward verbatim but do not
	// interpret).
	line, err := r.readLine()
	if err != nil {
		return 0, false, errors.NewUpstreamIOError("reading chunk size", err)
	}
	wn, werr := w.Write(line)
	n += int64(wn)
	if werr != nil {
		return n, false, errors.NewClientIOError("writing chunk size", werr)
	}

	sizeField := strings.TrimSpace(strings.SplitN(string(line), ";", 2)[0])
	sizeField = strings.TrimRight(sizeField, "\r\n")
	size, perr := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
	if perr != nil {
		return n, false, errors.NewProtocolError("invalid chunk size", perr)
	}

	if size == 0 {
		r.cursor.state = stateExpectTrailers
		tn, done, terr := r.copyTrailers(w)
		return n + tn, done, terr
	}

	r.cursor.state = stateInsideChunk
	r.cursor.remaining = size

	cn, err := io.CopyN(w, r.src, size)
	n += cn
	if err != nil {
		return n, false, errors.NewUpstreamIOError("reading chunk body", err)
	}
	r.cursor.remaining = 0

	crlf := make([]byte, 2)
	if _, err := io.ReadFull(r.src, crlf); err != nil {
		return n, false, errors.NewUpstreamIOError("reading chunk CRLF", err)
	}
	wn2, werr := w.Write(crlf)
	n += int64(wn2)
	if werr != nil {
		return n, false, errors.NewClientIOError("writing chunk CRLF", werr)
	}

	r.cursor.state = stateExpectSize
	return n, false, nil
}

func (r *Reader) copyTrailers(w io.Writer) (n int64, done bool, err error) {
	for {
		line, err := r.readLine()
		if err != nil {
			return n, false, errors.NewUpstreamIOError("reading chunk trailer", err)
		}
		wn, werr := w.Write(line)
		n += int64(wn)
		if werr != nil {
			return n, false, errors.NewClientIOError("writing chunk trailer", werr)
		}
		if string(line) == "\r\n" || string(line) == "\n" {
			r.cursor.state = stateDone
			return n, true, nil
		}
	}
}

func (r *Reader) readLine() ([]byte, error) {
	line, err := r.src.ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// CopyAll copies every remaining chunk (and the trailer section) verbatim
// to w, returning once the terminal chunk has been consumed.
func (r *Reader) CopyAll(w io.Writer) (int64, error) {
	var total int64
	for {
		n, done, err := r.CopyNext(w)
		total += n
		if err != nil {
			return total, err
		}
		if done {
			return total, nil
		}
	}
}

// DecodeAll reads every remaining chunk from src and writes only the
// decoded payload bytes (no chunk-size lines, no CRLFs, no trailers) to w.
// Unlike CopyNext/CopyAll, this is for callers that want the logical body
// content rather than a verbatim byte-for-byte relay of the wire framing.
func (r *Reader) DecodeAll(w io.Writer) (int64, error) {
	var total int64
	for {
		if r.cursor.state == stateDone {
			return total, nil
		}
		if r.cursor.state == stateExpectTrailers {
			if _, _, err := r.copyTrailers(io.Discard); err != nil {
				return total, err
			}
			continue
		}

		line, err := r.readLine()
		if err != nil {
			return total, errors.NewUpstreamIOError("reading chunk size", err)
		}
		sizeField := strings.TrimSpace(strings.SplitN(string(line), ";", 2)[0])
		sizeField = strings.TrimRight(sizeField, "\r\n")
		size, perr := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
		if perr != nil {
			return total, errors.NewProtocolError("invalid chunk size", perr)
		}
		if size == 0 {
			r.cursor.state = stateExpectTrailers
			continue
		}

		r.cursor.state = stateInsideChunk
		r.cursor.remaining = size
		n, err := io.CopyN(w, r.src, size)
		total += n
		if err != nil {
			return total, errors.NewUpstreamIOError("reading chunk body", err)
		}
		r.cursor.remaining = 0

		crlf := make([]byte, 2)
		if _, err := io.ReadFull(r.src, crlf); err != nil {
			return total, errors.NewUpstreamIOError("reading chunk CRLF", err)
		}
		r.cursor.state = stateExpectSize
	}
}

// TrailerHeaders parses trailer lines (as returned by CopyNext/CopyAll, each
// including its trailing CRLF, with a final blank line) into name/value
// pairs, for callers that want structured trailers in addition to the
// verbatim bytes.
func TrailerHeaders(raw []byte) [][2]string {
	var out [][2]string
	for _, line := range strings.Split(string(raw), "\r\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, [2]string{strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])})
	}
	return out
}
