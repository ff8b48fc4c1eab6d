package transport

import (
	"fmt"
	"net/url"
	"strconv"
)

var defaultProxyPorts = map[string]int{
	"http":   8080,
	"https":  443,
	"socks5": 1080,
}

// ParseProxyURL parses a proxy URL into a ProxyConfig.
//
// Recognized schemes are http, https, and socks5, each with an implied
// default port (8080, 443, 1080 respectively) when the URL omits one.
// Credentials, when present in the userinfo component, populate
// ProxyConfig.Username/Password.
func ParseProxyURL(raw string) (*ProxyConfig, error) {
	if raw == "" {
		return nil, fmt.Errorf("proxy URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	defaultPort, known := defaultProxyPorts[u.Scheme]
	if u.Scheme == "" {
		return nil, fmt.Errorf("proxy URL must include scheme (http://, https://, or socks5://)")
	}
	if !known {
		return nil, fmt.Errorf("unsupported proxy scheme %q (must be http, https, or socks5)", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("proxy URL must include host")
	}

	port := defaultPort
	if raw := u.Port(); raw != "" {
		port, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy port %q: %w", raw, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("proxy port out of range [1,65535]: %d", port)
		}
	}

	cfg := &ProxyConfig{
		Type: u.Scheme,
		Host: host,
		Port: port,
	}
	if u.User != nil {
		cfg.Username = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	return cfg, nil
}
