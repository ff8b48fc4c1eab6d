// Package cycle orchestrates one full relay cycle end to end: upgrade
// middleware, backend connect, request forwarding (with the continue
// arbiter interleaved when called for), backend response read, and
// response relay or byte pipe promotion. It is the single entry point a
// front end calls per request.
package cycle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Willcoder111/vegur/pkg/backend"
	"github.com/Willcoder111/vegur/pkg/bytepipe"
	"github.com/Willcoder111/vegur/pkg/constants"
	"github.com/Willcoder111/vegur/pkg/continuearbiter"
	"github.com/Willcoder111/vegur/pkg/errors"
	"github.com/Willcoder111/vegur/pkg/forward"
	"github.com/Willcoder111/vegur/pkg/headers"
	"github.com/Willcoder111/vegur/pkg/inbound"
	"github.com/Willcoder111/vegur/pkg/relay"
	"github.com/Willcoder111/vegur/pkg/timing"
	"github.com/Willcoder111/vegur/pkg/transport"
	"github.com/Willcoder111/vegur/pkg/upgrade"
)

// Config is the caller-supplied per-cycle configuration: which backend to
// connect to, the request-target to write on the request line, and the
// timeout knobs. Zero timeouts fall back to pkg/constants defaults.
type Config struct {
	Backend transport.Config

	// Target is the request-target written on the request line (e.g.
	// "/a?b=c" or an absolute-form URI), supplied by the front end.
	Target string

	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	ContinueDeadline     time.Duration
	ContinuePollInterval time.Duration
	IdleTimeout          time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = constants.DefaultBackendReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = constants.DefaultBackendWriteTimeout
	}
	if c.ContinueDeadline <= 0 {
		c.ContinueDeadline = constants.DefaultContinueDeadline
	}
	if c.ContinuePollInterval <= 0 {
		c.ContinuePollInterval = constants.ContinuePollInterval
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = constants.DefaultBytePipeIdleTimeout
	}
	return c
}

// Result is the disposition of one relay cycle.
type Result struct {
	Status   int
	Upgraded bool
	Timings  timing.Metrics
}

// Run executes one full relay cycle. The backend connection is always
// closed exactly once before Run returns, on every path.
func Run(ctx context.Context, req inbound.Request, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()
	timer := timing.NewTimer()

	upgraded, err := upgrade.Check(req.Headers())
	if err != nil {
		return Result{}, err
	}
	req.State().Upgraded = upgraded

	be, err := backend.Connect(ctx, cfg.Backend, timer)
	if err != nil {
		return Result{}, err
	}
	defer be.Close()

	bodyDescriptor := classifyRequestBody(req.Headers())
	bodyChunked := bodyDescriptor.Tag == backend.BodyChunked
	expectContinue := req.Headers().ContainsToken("Expect", "100-continue")

	// A fully known, non-chunked body with no Expect: 100-continue race to
	// referee can go out as one write: read it up front and hand it to
	// forward.SendRequest instead of writing headers and body separately.
	oneShot := !expectContinue && bodyDescriptor.Tag == backend.BodyKnownLength
	if oneShot {
		body := make([]byte, bodyDescriptor.Length)
		if _, err := io.ReadFull(req.BodyReader(bodyDescriptor), body); err != nil {
			return Result{}, errors.NewClientIOError("reading request body", err)
		}
		if err := forward.SendRequest(be, req.Method(), cfg.Target, req.Version(), req.Headers(), bodyChunked, body, cfg.WriteTimeout); err != nil {
			return Result{}, err
		}
	} else {
		if err := forward.SendHeaders(be, req.Method(), cfg.Target, req.Version(), req.Headers(), bodyChunked, cfg.WriteTimeout); err != nil {
			return Result{}, err
		}
	}

	var shortCircuit *continuearbiter.Result
	if expectContinue {
		result, err := continuearbiter.Negotiate(req, be, cfg.ContinueDeadline, cfg.ContinuePollInterval)
		if err != nil {
			return Result{}, err
		}
		switch result.Outcome {
		case continuearbiter.ClientFirst:
			req.State().Continue = backend.ContinuePending
		case continuearbiter.BackendContinue:
			req.State().Continue = backend.ContinueForwarded
		case continuearbiter.BackendFinal:
			shortCircuit = &result
		}
	}

	if shortCircuit == nil && !oneShot {
		if _, err := forward.SendBody(be, req, bodyDescriptor); err != nil {
			return Result{}, err
		}
	}

	var status int
	var respHeaders headers.List

	if shortCircuit != nil {
		status, respHeaders = shortCircuit.Status, shortCircuit.Headers
	} else {
		forward100 := func(line string) error {
			conn, _ := req.RawConn()
			_, werr := conn.Write([]byte(line + "\r\n\r\n"))
			return werr
		}
		status, _, respHeaders, err = be.Response(req.State().Continue, req.Version(), cfg.ReadTimeout, timer, forward100)
		if err != nil {
			return Result{}, err
		}
	}

	if upgraded && status == 101 {
		if err := deliverUpgrade(ctx, req, be, respHeaders, cfg.IdleTimeout); err != nil {
			return Result{}, err
		}
		return Result{Status: status, Upgraded: true, Timings: timer.GetMetrics()}, nil
	}

	shouldClose := relay.ShouldClose(expectContinue, req.State().Continue == backend.ContinueForwarded, status)
	bt := relay.Classify(status, req.Method(), respHeaders)

	if err := relay.Deliver(relay.Cycle{
		Backend:     be,
		Client:      req,
		Status:      status,
		Headers:     respHeaders,
		Body:        bt,
		ShouldClose: shouldClose,
	}); err != nil {
		return Result{}, err
	}

	return Result{Status: status, Timings: timer.GetMetrics()}, nil
}

// classifyRequestBody derives the inbound request's body descriptor from
// its headers (request-side counterpart of relay.Classify, which only
// applies to responses since it consults the status code).
func classifyRequestBody(h headers.List) backend.BodyType {
	if te := h.Get("Transfer-Encoding"); strings.HasSuffix(strings.ToLower(strings.TrimSpace(te)), "chunked") {
		return backend.BodyType{Tag: backend.BodyChunked}
	}
	if cl := h.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64); err == nil && n > 0 {
			return backend.BodyType{Tag: backend.BodyKnownLength, Length: n}
		}
	}
	return backend.BodyType{Tag: backend.BodyEmpty}
}

// deliverUpgrade forwards the 101 response plus any backend bytes already
// buffered past its headers, flushes any client-buffered bytes to the
// backend, then hands both sockets to the byte pipe.
func deliverUpgrade(ctx context.Context, req inbound.Request, be *backend.Client, h headers.List, idle time.Duration) error {
	rewritten := headers.RewriteResponse(h, false)

	conn, _ := req.RawConn()
	var preamble bytes.Buffer
	preamble.WriteString(fmt.Sprintf("%s 101 Switching Protocols\r\n", req.Version()))
	for _, p := range rewritten {
		preamble.WriteString(p.Name + ": " + p.Value + "\r\n")
	}
	preamble.WriteString("\r\n")

	if _, err := conn.Write(preamble.Bytes()); err != nil {
		return errors.NewClientIOError("writing 101 preamble", err)
	}

	backendConn, _ := be.RawSocket()
	if err := bytepipe.Splice(conn, req.PeekBuffered(0), backendConn, be.PeekBuffered()); err != nil {
		return err
	}

	return bytepipe.Run(ctx, conn, backendConn, idle)
}
