package transport

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	netproxy "golang.org/x/net/proxy"
)

// dialViaProxy dials targetAddr through the configured upstream proxy,
// picking the CONNECT or SOCKS5 tunnel path by proxy.Type. TLS-to-proxy and
// SOCKS4 are not supported.
func dialViaProxy(ctx context.Context, proxy *ProxyConfig, targetAddr string, timeout time.Duration) (net.Conn, error) {
	proxyPort := proxy.Port
	if proxyPort == 0 {
		switch proxy.Type {
		case "http", "https":
			proxyPort = 8080
		case "socks5":
			proxyPort = 1080
		}
	}
	proxyAddr := net.JoinHostPort(proxy.Host, strconv.Itoa(proxyPort))

	switch proxy.Type {
	case "http", "https":
		return connectViaHTTPProxy(ctx, proxy, proxyAddr, targetAddr, timeout)
	case "socks5":
		return connectViaSOCKS5Proxy(ctx, proxy, proxyAddr, targetAddr, timeout)
	default:
		return nil, fmt.Errorf("unsupported proxy type: %s", proxy.Type)
	}
}

// connectViaHTTPProxy issues an HTTP CONNECT through proxyAddr to obtain a
// tunnel to targetAddr.
func connectViaHTTPProxy(ctx context.Context, proxy *ProxyConfig, proxyAddr, targetAddr string, timeout time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to proxy: %w", err)
	}

	connectReq := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n", targetAddr, targetAddr)
	for key, value := range proxy.ProxyHeaders {
		connectReq += fmt.Sprintf("%s: %s\r\n", key, value)
	}
	if proxy.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(proxy.Username + ":" + proxy.Password))
		connectReq += fmt.Sprintf("Proxy-Authorization: Basic %s\r\n", auth)
	}
	connectReq += "\r\n"

	if _, err := conn.Write([]byte(connectReq)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send CONNECT request: %w", err)
	}

	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read CONNECT response: %w", err)
	}
	if !strings.Contains(statusLine, " 200") {
		conn.Close()
		return nil, fmt.Errorf("proxy CONNECT failed: %s", strings.TrimSpace(statusLine))
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to read CONNECT response headers: %w", err)
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}

	return conn, nil
}

// connectViaSOCKS5Proxy connects through a SOCKS5 proxy using
// golang.org/x/net/proxy.
func connectViaSOCKS5Proxy(ctx context.Context, proxy *ProxyConfig, proxyAddr, targetAddr string, timeout time.Duration) (net.Conn, error) {
	var auth *netproxy.Auth
	if proxy.Username != "" {
		auth = &netproxy.Auth{User: proxy.Username, Password: proxy.Password}
	}

	dialer, err := netproxy.SOCKS5("tcp", proxyAddr, auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	if ctxDialer, ok := dialer.(netproxy.ContextDialer); ok {
		conn, err := ctxDialer.DialContext(ctx, "tcp", targetAddr)
		if err != nil {
			return nil, fmt.Errorf("SOCKS5 connection failed: %w", err)
		}
		return conn, nil
	}

	conn, err := dialer.Dial("tcp", targetAddr)
	if err != nil {
		return nil, fmt.Errorf("SOCKS5 connection failed: %w", err)
	}
	return conn, nil
}
