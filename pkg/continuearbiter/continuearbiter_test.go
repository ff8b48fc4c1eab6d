package continuearbiter

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/Willcoder111/vegur/pkg/backend"
	"github.com/Willcoder111/vegur/pkg/inbound"
)

func TestNegotiateClientFirst(t *testing.T) {
	clientServer, clientClient := net.Pipe()
	defer clientClient.Close()
	defer clientServer.Close()

	go clientServer.Write([]byte("body-bytes"))

	req := inbound.NewFromConn(clientClient, bufio.NewReader(clientClient), "POST", "HTTP/1.1", nil)

	backendServer, backendClient := net.Pipe()
	defer backendClient.Close()
	defer backendServer.Close()
	be := backend.NewClient(backendClient)

	result, err := Negotiate(req, be, time.Second, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if result.Outcome != ClientFirst {
		t.Fatalf("outcome = %v, want ClientFirst", result.Outcome)
	}
}

func TestNegotiateBackendContinueFirst(t *testing.T) {
	clientServer, clientClient := net.Pipe()
	defer clientClient.Close()
	defer clientServer.Close()

	req := inbound.NewFromConn(clientClient, bufio.NewReader(clientClient), "POST", "HTTP/1.1", nil)

	backendServer, backendClient := net.Pipe()
	defer backendClient.Close()
	defer backendServer.Close()
	be := backend.NewClient(backendClient)

	go backendServer.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := clientServer.Read(buf)
		received <- string(buf[:n])
	}()

	result, err := Negotiate(req, be, time.Second, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if result.Outcome != BackendContinue {
		t.Fatalf("outcome = %v, want BackendContinue", result.Outcome)
	}

	select {
	case got := <-received:
		if got != "HTTP/1.1 100 Continue\r\n\r\n" {
			t.Fatalf("forwarded = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for forwarded 100 continue")
	}
}

func TestNegotiateBackendFinalShortCircuit(t *testing.T) {
	clientServer, clientClient := net.Pipe()
	defer clientClient.Close()
	defer clientServer.Close()

	req := inbound.NewFromConn(clientClient, bufio.NewReader(clientClient), "POST", "HTTP/1.1", nil)

	backendServer, backendClient := net.Pipe()
	defer backendClient.Close()
	defer backendServer.Close()
	be := backend.NewClient(backendClient)

	go backendServer.Write([]byte("HTTP/1.1 417 Expectation Failed\r\nContent-Length: 0\r\n\r\n"))

	result, err := Negotiate(req, be, time.Second, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if result.Outcome != BackendFinal || result.Status != 417 {
		t.Fatalf("result = %+v, want BackendFinal/417", result)
	}
}
