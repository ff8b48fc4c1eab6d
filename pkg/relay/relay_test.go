package relay

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/Willcoder111/vegur/pkg/backend"
	"github.com/Willcoder111/vegur/pkg/headers"
	"github.com/Willcoder111/vegur/pkg/inbound"
)

func TestClassifyEmpty(t *testing.T) {
	bt := Classify(204, "GET", nil)
	if bt.Tag != backend.BodyEmpty {
		t.Fatalf("tag = %v, want BodyEmpty", bt.Tag)
	}
	bt = Classify(200, "HEAD", nil)
	if bt.Tag != backend.BodyEmpty {
		t.Fatalf("HEAD tag = %v, want BodyEmpty", bt.Tag)
	}
}

func TestClassifyChunked(t *testing.T) {
	h := headers.List{{Name: "Transfer-Encoding", Value: "chunked"}}
	bt := Classify(200, "GET", h)
	if bt.Tag != backend.BodyChunked {
		t.Fatalf("tag = %v, want BodyChunked", bt.Tag)
	}
}

func TestClassifyKnownLength(t *testing.T) {
	h := headers.List{{Name: "Content-Length", Value: "42"}}
	bt := Classify(200, "GET", h)
	if bt.Tag != backend.BodyKnownLength || bt.Length != 42 {
		t.Fatalf("bt = %+v, want KnownLength(42)", bt)
	}
}

func TestClassifyStreamToClose(t *testing.T) {
	bt := Classify(200, "GET", nil)
	if bt.Tag != backend.BodyStreamClose {
		t.Fatalf("tag = %v, want BodyStreamClose", bt.Tag)
	}
}

func TestDeliverKnownLengthSmall(t *testing.T) {
	backendServer, backendClient := net.Pipe()
	defer backendClient.Close()
	defer backendServer.Close()
	go backendServer.Write([]byte("hello"))
	be := backend.NewClient(backendClient)

	clientServer, clientClient := net.Pipe()
	defer clientClient.Close()
	defer clientServer.Close()
	req := inbound.NewFromConn(clientClient, bufio.NewReader(clientClient), "GET", "HTTP/1.1", nil)

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 256)
		got := ""
		for len(got) < len("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello") {
			n, err := clientServer.Read(buf)
			got += string(buf[:n])
			if err != nil {
				break
			}
		}
		received <- got
	}()

	err := Deliver(Cycle{
		Backend: be,
		Client:  req,
		Status:  200,
		Headers: headers.List{{Name: "Content-Length", Value: "5"}},
		Body:    backend.BodyType{Tag: backend.BodyKnownLength, Length: 5},
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	select {
	case got := <-received:
		want := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
		if got != want {
			t.Fatalf("client received %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
}

func TestDeliverChunkedVerbatim(t *testing.T) {
	wire := "5\r\nhello\r\n0\r\n\r\n"
	backendServer, backendClient := net.Pipe()
	defer backendClient.Close()
	defer backendServer.Close()
	go backendServer.Write([]byte(wire))
	be := backend.NewClient(backendClient)

	clientServer, clientClient := net.Pipe()
	defer clientClient.Close()
	defer clientServer.Close()
	req := inbound.NewFromConn(clientClient, bufio.NewReader(clientClient), "GET", "HTTP/1.1", nil)

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 256)
		got := ""
		want := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" + wire
		for len(got) < len(want) {
			n, err := clientServer.Read(buf)
			got += string(buf[:n])
			if err != nil {
				break
			}
		}
		received <- got
	}()

	err := Deliver(Cycle{
		Backend: be,
		Client:  req,
		Status:  200,
		Headers: headers.List{{Name: "Transfer-Encoding", Value: "chunked"}},
		Body:    backend.BodyType{Tag: backend.BodyChunked},
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	select {
	case got := <-received:
		want := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" + wire
		if got != want {
			t.Fatalf("client received %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
}
