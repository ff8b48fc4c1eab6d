package forward

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/Willcoder111/vegur/pkg/backend"
	"github.com/Willcoder111/vegur/pkg/headers"
	"github.com/Willcoder111/vegur/pkg/inbound"
)

func TestSendRequestWritesLineHeadersBody(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	bc := backend.NewClient(client)

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 512)
		n, _ := server.Read(buf)
		received <- string(buf[:n])
	}()

	h := headers.List{{Name: "Host", Value: "example.com"}}
	if err := SendRequest(bc, "GET", "/a", "HTTP/1.1", h, false, nil, time.Second); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	select {
	case got := <-received:
		if got[:16] != "GET /a HTTP/1.1\r" {
			t.Fatalf("unexpected request line in %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for request bytes")
	}
}

func TestSendBodyKnownLength(t *testing.T) {
	clientServer, clientClient := net.Pipe()
	defer clientClient.Close()
	defer clientServer.Close()

	go clientServer.Write([]byte("hello"))

	req := inbound.NewFromConn(clientClient, bufio.NewReader(clientClient), "POST", "HTTP/1.1", nil)

	backendServer, backendClient := net.Pipe()
	defer backendClient.Close()
	defer backendServer.Close()

	bc := backend.NewClient(backendClient)

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := backendServer.Read(buf)
		received <- string(buf[:n])
	}()

	n, err := SendBody(bc, req, backend.BodyType{Tag: backend.BodyKnownLength, Length: 5})
	if err != nil {
		t.Fatalf("SendBody: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5", n)
	}

	select {
	case got := <-received:
		if got != "hello" {
			t.Fatalf("backend received %q, want hello", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for forwarded body")
	}
}
