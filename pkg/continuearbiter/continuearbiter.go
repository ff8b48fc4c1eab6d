// Package continuearbiter resolves the Expect: 100-continue race between
// client-body arrival and backend interim responses, emitting at most one
// 100 Continue to the client.
package continuearbiter

import (
	"io"
	"time"

	"github.com/Willcoder111/vegur/pkg/backend"
	"github.com/Willcoder111/vegur/pkg/errors"
	"github.com/Willcoder111/vegur/pkg/headers"
	"github.com/Willcoder111/vegur/pkg/inbound"
)

// Outcome reports which side resolved the race.
type Outcome uint8

const (
	// ClientFirst: the client sent body bytes before the backend spoke;
	// the caller should forward the body without emitting 100 Continue.
	ClientFirst Outcome = iota
	// BackendContinue: the backend sent 100 Continue first; it has
	// already been forwarded to the client.
	BackendContinue
	// BackendFinal: the backend short-circuited with a non-100 final
	// response; the body must not be forwarded.
	BackendFinal
)

// Result carries the negotiation outcome plus any final response the
// backend already sent (only set when Outcome == BackendFinal).
type Result struct {
	Outcome    Outcome
	Status     int
	StatusLine string
	Headers    headers.List
}

// Negotiate runs the client/backend race: poll the client for
// already-buffered body bytes (zero timeout) and the backend for an
// interim response (pollInterval timeout), alternating until deadline.
func Negotiate(client inbound.Conn, be *backend.Client, deadline time.Duration, pollInterval time.Duration) (Result, error) {
	end := time.Now().Add(deadline)

	for time.Now().Before(end) {
		if buffered := client.PeekBuffered(0); len(buffered) > 0 {
			return Result{Outcome: ClientFirst}, nil
		}

		line, ok, err := be.PollInterim(pollInterval)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			continue
		}

		status, h, ferr := be.ParseAndReadHeaders(line)
		if ferr != nil {
			return Result{}, ferr
		}

		if status == 100 {
			conn, _ := client.RawConn()
			if _, err := io.WriteString(conn, line+"\r\n\r\n"); err != nil {
				return Result{}, errors.NewClientIOError("forwarding 100 continue", err)
			}
			return Result{Outcome: BackendContinue}, nil
		}

		return Result{Outcome: BackendFinal, Status: status, StatusLine: line, Headers: h}, nil
	}

	return Result{}, errors.NewTimeoutError("continue negotiation", deadline)
}
