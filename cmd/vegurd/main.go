// Command vegurd is a minimal demo front end for the vegur relay core: a
// raw TCP listener, net/http's request-line/header parser, and a single
// static backend target supplied by flag. It exists so the relay's
// request/response data flow can be exercised end to end without a caller
// writing the accept-loop glue from scratch; it is not a production
// reverse proxy (no routing, auth, TLS termination, or config loading —
// those stay the caller's responsibility).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Willcoder111/vegur"
	"github.com/Willcoder111/vegur/pkg/headers"
)

func main() {
	logger := log.New(os.Stdout, "vegurd: ", log.LstdFlags)

	var (
		listenAddr  = flag.String("listen", ":8080", "address to accept client connections on")
		backendAddr = flag.String("backend", "127.0.0.1:9000", "host:port of the single backend to relay to")
		proxyURL    = flag.String("proxy", "", "optional upstream proxy for the backend leg (http://, https://, or socks5://)")
	)
	flag.Parse()

	backendHost, backendPortStr, err := net.SplitHostPort(*backendAddr)
	if err != nil {
		logger.Fatalf("invalid -backend %q: %v", *backendAddr, err)
	}
	backendPort, err := strconv.Atoi(backendPortStr)
	if err != nil {
		logger.Fatalf("invalid -backend port %q: %v", backendPortStr, err)
	}

	backendCfg := vegur.BackendConfig{Host: backendHost, Port: backendPort}
	if *proxyURL != "" {
		pc, err := vegur.ParseProxyURL(*proxyURL)
		if err != nil {
			logger.Fatalf("invalid -proxy %q: %v", *proxyURL, err)
		}
		backendCfg.Proxy = pc
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logger.Fatalf("listen on %s: %v", *listenAddr, err)
	}

	var closing int32
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	go func() {
		<-quit
		logger.Println("shutting down, no longer accepting new connections")
		atomic.StoreInt32(&closing, 1)
		ln.Close()
	}()

	logger.Printf("relaying %s -> %s", *listenAddr, *backendAddr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if atomic.LoadInt32(&closing) == 1 {
				logger.Println("stopped")
				return
			}
			logger.Printf("accept: %v", err)
			continue
		}
		go handleConn(logger, conn, backendCfg)
	}
}

// handleConn parses one inbound request's line and headers with
// net/http's own reader, then hands the parsed request to the relay core
// for the rest of the cycle. Only the first request on a connection is
// relayed: once Run returns, the connection is closed, matching the
// relay's own "Connection: close" framing.
func handleConn(logger *log.Logger, conn net.Conn, backendCfg vegur.BackendConfig) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	httpReq, err := http.ReadRequest(reader)
	if err != nil {
		fmt.Fprintf(conn, "HTTP/1.1 400 Bad Request\r\nConnection: close\r\n\r\n")
		return
	}

	h := headersFromHTTP(httpReq)
	req := vegur.NewRequest(conn, reader, httpReq.Method, versionString(httpReq), h)

	target := httpReq.URL.RequestURI()
	cfg := vegur.Config{Backend: backendCfg, Target: target}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := vegur.Run(ctx, req, cfg)
	if err != nil {
		logger.Printf("%s %s: %v", httpReq.Method, target, err)
		if verr, ok := err.(*vegur.Error); ok && verr.Type == "client" {
			fmt.Fprintf(conn, "HTTP/1.1 400 Bad Request\r\nConnection: close\r\n\r\n")
		}
		return
	}
	logger.Printf("%s %s -> %d (upgraded=%v, ttfb=%v)", httpReq.Method, target, result.Status, result.Upgraded, result.Timings.TTFB)
}

func versionString(r *http.Request) string {
	return fmt.Sprintf("HTTP/%d.%d", r.ProtoMajor, r.ProtoMinor)
}

// headersFromHTTP converts an *http.Request's canonicalized header map
// back into the ordered headers.List the relay core requires, restoring
// the request line's own Host header as a regular entry (net/http lifts
// it onto Request.Host and strips it from Header).
func headersFromHTTP(r *http.Request) headers.List {
	var out headers.List
	if r.Host != "" {
		out = out.Add("Host", r.Host)
	}
	for name, values := range r.Header {
		for _, v := range values {
			out = out.Add(name, v)
		}
	}
	return out
}
