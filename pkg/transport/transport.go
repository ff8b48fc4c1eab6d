// Package transport dials the backend TCP connection the relay core
// forwards requests to, optionally through an upstream HTTP CONNECT or
// SOCKS5 proxy.
package transport

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/Willcoder111/vegur/pkg/constants"
	"github.com/Willcoder111/vegur/pkg/errors"
	"github.com/Willcoder111/vegur/pkg/timing"
)

// ProxyConfig configures an upstream proxy the backend connection is
// dialed through, for deployments where the backend is only reachable
// behind a bastion/jump host.
type ProxyConfig struct {
	Type     string // "http", "https", or "socks5"
	Host     string
	Port     int
	Username string
	Password string

	// ProxyHeaders are added to the CONNECT request (http/https only).
	ProxyHeaders map[string]string
}

// Config holds backend-connect configuration.
type Config struct {
	Host string
	Port int

	// ConnTimeout bounds the TCP (or proxy) connect. Zero uses
	// constants.DefaultBackendConnectTimeout.
	ConnTimeout time.Duration

	// Proxy optionally routes the backend connection through an upstream
	// proxy.
	Proxy *ProxyConfig
}

// Connect dials the backend described by config, honoring ctx
// cancellation and config.ConnTimeout.
func Connect(ctx context.Context, config Config, timer *timing.Timer) (net.Conn, error) {
	if config.Host == "" {
		return nil, errors.NewClientError("backend host cannot be empty")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, errors.NewClientError("backend port must be between 1 and 65535")
	}

	timeout := config.ConnTimeout
	if timeout <= 0 {
		timeout = constants.DefaultBackendConnectTimeout
	}

	targetAddr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))

	if timer != nil {
		timer.StartConnect()
		defer timer.EndConnect()
	}

	var conn net.Conn
	var err error
	if config.Proxy != nil {
		conn, err = dialViaProxy(ctx, config.Proxy, targetAddr, timeout)
	} else {
		dialer := &net.Dialer{Timeout: timeout}
		conn, err = dialer.DialContext(ctx, "tcp", targetAddr)
	}
	if err != nil {
		return nil, errors.NewUpstreamUnreachableError(config.Host, config.Port, err)
	}

	return conn, nil
}
