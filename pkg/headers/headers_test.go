package headers

import "testing"

func TestListGetCaseInsensitive(t *testing.T) {
	h := List{{"Content-Type", "text/plain"}}
	if got := h.Get("content-type"); got != "text/plain" {
		t.Fatalf("Get = %q, want text/plain", got)
	}
}

func TestRewriteIdempotent(t *testing.T) {
	h := List{
		{"Host", "example.com"},
		{"Connection", "keep-alive"},
		{"Content-Length", "5"},
	}

	once := Rewrite(h, false)
	twice := Rewrite(once, false)

	if len(once) != len(twice) {
		t.Fatalf("rewrite not idempotent: once=%v twice=%v", once, twice)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("rewrite not idempotent at %d: once=%v twice=%v", i, once[i], twice[i])
		}
	}
}

func TestRewriteDropsHostAndKeepAlive(t *testing.T) {
	h := List{
		{"Host", "example.com"},
		{"Connection", "keep-alive"},
	}
	out := Rewrite(h, false)

	if out.Contains("Host") {
		t.Fatalf("expected Host dropped, got %v", out)
	}
	if !out.ContainsToken("Connection", "close") {
		t.Fatalf("expected Connection: close, got %v", out)
	}
	if out.ContainsToken("Connection", "keep-alive") {
		t.Fatalf("expected keep-alive token removed, got %v", out)
	}
}

func TestRewriteKeepsContentLengthForKnownLengthBody(t *testing.T) {
	h := List{{"Content-Length", "42"}}
	out := Rewrite(h, false)
	if out.Get("Content-Length") != "42" {
		t.Fatalf("expected Content-Length preserved for known-length body, got %v", out)
	}
}

func TestRewriteDropsContentLengthForChunkedBody(t *testing.T) {
	h := List{{"Content-Length", "42"}}
	out := Rewrite(h, true)
	if out.Contains("Content-Length") {
		t.Fatalf("expected Content-Length dropped when body is chunked, got %v", out)
	}
}

func TestShouldCloseLaw(t *testing.T) {
	cases := []struct {
		expect, forwarded bool
		status            int
		want              bool
	}{
		{true, false, 200, true},
		{true, true, 200, false},
		{false, false, 200, false},
		{true, false, 100, false},
	}
	for _, c := range cases {
		if got := ShouldClose(c.expect, c.forwarded, c.status); got != c.want {
			t.Fatalf("ShouldClose(%v,%v,%d) = %v, want %v", c.expect, c.forwarded, c.status, got, c.want)
		}
	}
}

func TestRewriteResponseAddsCloseOnlyWhenShouldClose(t *testing.T) {
	h := List{{"Connection", "keep-alive"}}

	closed := RewriteResponse(h, true)
	if !closed.ContainsToken("Connection", "close") {
		t.Fatalf("expected Connection: close, got %v", closed)
	}

	open := RewriteResponse(h, false)
	if open.ContainsToken("Connection", "close") {
		t.Fatalf("did not expect Connection: close, got %v", open)
	}
}
