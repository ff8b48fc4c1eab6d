// Package forward writes the outbound request line, rewritten headers,
// and body to the backend connection. A fully known body is sent as one
// write; a streamed body is decoded from the inbound connection (raw or
// chunked) and relayed to the backend in small bursts, never buffered
// whole.
package forward

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Willcoder111/vegur/pkg/backend"
	"github.com/Willcoder111/vegur/pkg/chunked"
	"github.com/Willcoder111/vegur/pkg/errors"
	"github.com/Willcoder111/vegur/pkg/headers"
	"github.com/Willcoder111/vegur/pkg/inbound"
)

func requestLine(method, target, version string) string {
	return fmt.Sprintf("%s %s %s\r\n", method, target, version)
}

func headerBlock(h headers.List) string {
	var b strings.Builder
	for _, p := range h {
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

// SendRequest writes the request line, rewritten headers, and a fully
// known body to the backend as one write.
func SendRequest(b *backend.Client, method, target, version string, h headers.List, bodyChunked bool, body []byte, writeTimeout time.Duration) error {
	rewritten := headers.Rewrite(h, bodyChunked)

	var buf bytes.Buffer
	buf.WriteString(requestLine(method, target, version))
	buf.WriteString(headerBlock(rewritten))
	buf.Write(body)

	return b.RawRequest(buf.Bytes(), writeTimeout)
}

// SendHeaders writes the request line and rewritten headers only, for a
// body that will be streamed separately (optionally after the continue
// arbiter runs).
func SendHeaders(b *backend.Client, method, target, version string, h headers.List, bodyChunked bool, writeTimeout time.Duration) error {
	rewritten := headers.Rewrite(h, bodyChunked)

	var buf bytes.Buffer
	buf.WriteString(requestLine(method, target, version))
	buf.WriteString(headerBlock(rewritten))

	return b.RawRequest(buf.Bytes(), writeTimeout)
}

// SendBody streams the inbound request body to the backend according to
// bd, decoding raw (known-length) or chunked framing from the inbound
// connection's buffered reader. Chunked bytes are forwarded exactly as
// read, never reconstructed.
func SendBody(b *backend.Client, req inbound.Request, bd backend.BodyType) (int64, error) {
	_, bufReader := req.RawConn()

	switch bd.Tag {
	case backend.BodyChunked:
		cr := chunked.NewReader(bufReader)
		n, err := cr.CopyAll(b)
		if err != nil {
			return n, err
		}
		return n, nil

	case backend.BodyKnownLength:
		if bd.Length <= 0 {
			return 0, nil
		}
		n, err := io.CopyN(b, bufReader, bd.Length)
		if err != nil {
			return n, errors.NewUpstreamIOError("forwarding known-length body", err)
		}
		return n, nil

	case backend.BodyStreamClose:
		n, err := io.Copy(b, bufReader)
		if err != nil {
			return n, errors.NewUpstreamIOError("forwarding stream-to-close body", err)
		}
		return n, nil

	default:
		return 0, nil
	}
}
