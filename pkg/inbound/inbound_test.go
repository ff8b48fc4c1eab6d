package inbound

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/Willcoder111/vegur/pkg/backend"
	"github.com/Willcoder111/vegur/pkg/headers"
)

func TestReplyWritesStatusHeadersBody(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	req := NewFromConn(client, nil, "GET", "HTTP/1.1", nil)

	done := make(chan struct{})
	var got bytes.Buffer
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := server.Read(buf)
			got.Write(buf[:n])
			if err != nil || got.Len() >= len("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello") {
				break
			}
		}
		close(done)
	}()

	h := headers.List{{Name: "Content-Length", Value: "5"}}
	if err := req.Reply(200, h, strings.NewReader("hello")); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for reply bytes")
	}

	want := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
	if got.String() != want {
		t.Fatalf("reply = %q, want %q", got.String(), want)
	}
}

func TestPeekBufferedZeroTimeoutNoData(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	req := NewFromConn(client, nil, "GET", "HTTP/1.1", nil)
	if b := req.PeekBuffered(0); b != nil {
		t.Fatalf("expected no buffered data, got %q", b)
	}
}

func TestBodyReaderKnownLength(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	go server.Write([]byte("hello world"))

	req := NewFromConn(client, nil, "POST", "HTTP/1.1", nil)
	r := req.BodyReader(backend.BodyType{Tag: backend.BodyKnownLength, Length: 5})

	buf := make([]byte, 10)
	n, _ := r.Read(buf)
	if string(buf[:n]) != "hello" {
		t.Fatalf("body = %q, want hello", string(buf[:n]))
	}
}
