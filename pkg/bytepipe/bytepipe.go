// Package bytepipe shuttles bytes bidirectionally between two sockets
// after a successful protocol upgrade, with no further HTTP-level
// interpretation. Grounded on the bidirectional-copy shape of a plain TCP
// proxy in the retrieval pack (other_examples' Boyul-Kim-http-proxy
// proxyData), generalized with the idle-timeout-via-deadline discipline
// pkg/backend already uses for backend socket deadlines.
package bytepipe

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/Willcoder111/vegur/pkg/constants"
	"github.com/Willcoder111/vegur/pkg/errors"
)

// Splice writes bytes already buffered on each side across to the other
// connection before the bidirectional copy phase begins.
func Splice(client net.Conn, clientBuffered []byte, upstream net.Conn, upstreamBuffered []byte) error {
	if len(upstreamBuffered) > 0 {
		if _, err := client.Write(upstreamBuffered); err != nil {
			return errors.NewClientIOError("flushing buffered backend bytes", err)
		}
	}
	if len(clientBuffered) > 0 {
		if _, err := upstream.Write(clientBuffered); err != nil {
			return errors.NewUpstreamIOError("flushing buffered client bytes", err)
		}
	}
	return nil
}

// Run shuttles bytes bidirectionally between a and b until either side
// closes or idle elapses with no traffic in a direction. Once either
// direction stops, both connections are torn down so the other direction
// unwinds too. Run returns the outcome of the direction that stopped first
// (nil on a clean close); the error the other direction sees from that
// teardown is discarded.
func Run(ctx context.Context, a, b net.Conn, idle time.Duration) error {
	done := make(chan error, 2)
	go func() { done <- copyDirection(ctx, b, a, idle) }()
	go func() { done <- copyDirection(ctx, a, b, idle) }()

	first := <-done
	a.Close()
	b.Close()
	<-done
	return first
}

func copyDirection(ctx context.Context, dst, src net.Conn, idle time.Duration) error {
	buf := make([]byte, constants.BytePipeBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if idle > 0 {
			if err := src.SetReadDeadline(time.Now().Add(idle)); err != nil {
				return errors.NewUpstreamIOError("setting byte pipe read deadline", err)
			}
		}

		n, err := src.Read(buf)
		if n > 0 {
			if idle > 0 {
				dst.SetWriteDeadline(time.Now().Add(idle))
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return errors.NewUpstreamIOError("byte pipe write", werr)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if errors.IsTimeoutError(err) {
				return errors.NewTimeoutError("byte pipe idle", idle)
			}
			return errors.NewUpstreamIOError("byte pipe read", err)
		}
	}
}
