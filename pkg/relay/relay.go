// Package relay classifies a backend response's body framing and streams
// it back to the client using the matching delivery mode: empty, a
// one-shot small reply, a streamed known-length body, stream-to-close, or
// a verbatim chunked relay.
package relay

import (
	"io"
	"strconv"
	"strings"

	"github.com/Willcoder111/vegur/pkg/backend"
	"github.com/Willcoder111/vegur/pkg/buffer"
	"github.com/Willcoder111/vegur/pkg/constants"
	"github.com/Willcoder111/vegur/pkg/errors"
	"github.com/Willcoder111/vegur/pkg/headers"
	"github.com/Willcoder111/vegur/pkg/inbound"
)

// Classify derives the response body descriptor from the backend's
// status, the request method, and response headers.
func Classify(status int, method string, h headers.List) backend.BodyType {
	if (status >= 100 && status < 200) || status == 204 || status == 304 || method == "HEAD" {
		return backend.BodyType{Tag: backend.BodyEmpty}
	}

	if te := h.Get("Transfer-Encoding"); strings.HasSuffix(strings.ToLower(strings.TrimSpace(te)), "chunked") {
		return backend.BodyType{Tag: backend.BodyChunked}
	}

	if cl := h.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64); err == nil && n >= 0 {
			return backend.BodyType{Tag: backend.BodyKnownLength, Length: n}
		}
	}

	return backend.BodyType{Tag: backend.BodyStreamClose}
}

// ShouldClose re-exports the should_close law: kept here too so callers
// driving the response-delivery path don't need to reach into pkg/headers
// directly.
func ShouldClose(expectContinue, continueForwarded bool, finalStatus int) bool {
	return headers.ShouldClose(expectContinue, continueForwarded, finalStatus)
}

// Cycle bundles what Deliver needs to relay one backend response to the
// client.
type Cycle struct {
	Backend     *backend.Client
	Client      inbound.Request
	Status      int
	Headers     headers.List
	Body        backend.BodyType
	ShouldClose bool
}

// Deliver streams the backend response described by rc to the client
// using the delivery mode rc.Body.Tag selects. The backend is not closed
// here; the caller owns close-once semantics for the whole cycle.
func Deliver(rc Cycle) error {
	h := headers.RewriteResponse(rc.Headers, rc.ShouldClose)

	switch rc.Body.Tag {
	case backend.BodyEmpty:
		return rc.Client.Reply(rc.Status, h, nil)

	case backend.BodyKnownLength:
		if rc.Body.Length <= constants.SmallBodyThreshold {
			buf := buffer.New(constants.DefaultBodyMemLimit)
			defer buf.Close()
			if _, err := rc.Backend.ReadKnownLengthBody(buf, rc.Body.Length); err != nil {
				return err
			}
			body, err := buf.Reader()
			if err != nil {
				return errors.NewIOError("opening captured response body", err)
			}
			defer body.Close()
			return rc.Client.Reply(rc.Status, h, body)
		}
		if err := rc.Client.Reply(rc.Status, h, nil); err != nil {
			return err
		}
		return rc.Client.SetBodyProducer(func(w io.Writer) error {
			_, err := rc.Backend.ReadKnownLengthBody(w, rc.Body.Length)
			return err
		})

	case backend.BodyStreamClose:
		if err := rc.Client.Reply(rc.Status, h, nil); err != nil {
			return err
		}
		return rc.Client.SetBodyProducer(func(w io.Writer) error {
			_, err := rc.Backend.ReadUntilClose(w)
			return err
		})

	case backend.BodyChunked:
		if err := rc.Client.ReplyChunkedPreamble(rc.Status, h); err != nil {
			return err
		}
		return rc.Client.SetBodyProducer(func(w io.Writer) error {
			_, err := rc.Backend.ReadChunkedBodyVerbatim(w)
			return err
		})

	default:
		return errors.NewProtocolError("unknown response body type", nil)
	}
}
