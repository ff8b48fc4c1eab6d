package headers

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// isKeepAliveToken reports whether a Connection token spells keep-alive,
// accepting both the canonical "keep-alive" and the common "keepalive" typo.
func isKeepAliveToken(tok string) bool {
	norm := strings.ToLower(strings.ReplaceAll(tok, "-", ""))
	return norm == "keepalive"
}

// removeConnectionToken returns a copy of h with token removed from every
// Connection header value, dropping the Connection header entirely if no
// tokens remain.
func removeConnectionToken(h List, match func(string) bool) List {
	out := make(List, 0, len(h))
	for _, p := range h {
		if !strings.EqualFold(p.Name, "Connection") {
			out = append(out, p)
			continue
		}
		var kept []string
		for _, tok := range tokens(p.Value) {
			if !match(tok) {
				kept = append(kept, tok)
			}
		}
		if len(kept) > 0 {
			out = append(out, Pair{Name: p.Name, Value: strings.Join(kept, ", ")})
		}
	}
	return out
}

// addConnectionToken returns a copy of h with token present in the
// Connection header, merging into an existing Connection header if one
// exists rather than adding a duplicate header.
func addConnectionToken(h List, token string) List {
	for i, p := range h {
		if strings.EqualFold(p.Name, "Connection") {
			if httpContainsTokenFold(tokens(p.Value), token) {
				return h
			}
			out := h.Clone()
			out[i].Value = p.Value + ", " + token
			return out
		}
	}
	return h.Add("Connection", token)
}

func httpContainsTokenFold(toks []string, token string) bool {
	for _, t := range toks {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}

// dropInvalidValues returns a copy of h with any pair whose value contains
// a control byte or other character httpguts.ValidHeaderFieldValue rejects
// removed outright, rather than forwarded to the other side verbatim.
func dropInvalidValues(h List) List {
	out := make(List, 0, len(h))
	for _, p := range h {
		if httpguts.ValidHeaderFieldValue(p.Value) {
			out = append(out, p)
		}
	}
	return out
}

// Rewrite applies the request-side header rewrite pipeline: drop
// Connection: keep-alive, drop Host, drop Content-Length when the body is
// chunked, then ensure Connection: close is present. Neither Rewrite nor
// pkg/forward adds a Host header back, so the forwarded request carries
// none. Any
// header value that fails RFC 7230 field-value validation is dropped
// rather than forwarded.
//
// Rewrite is pure and idempotent: Rewrite(Rewrite(h, chunked)) equals
// Rewrite(h, chunked) for any h.
func Rewrite(h List, bodyIsChunked bool) List {
	out := dropInvalidValues(h)
	out = removeConnectionToken(out, isKeepAliveToken)
	out = out.Del("Host")
	if bodyIsChunked {
		out = out.Del("Content-Length")
	}
	out = addConnectionToken(out, "close")
	return out
}

// RewriteResponse applies the response-side header rewrite: remove
// Connection: keep-alive, drop header values that fail field-value
// validation, and append Connection: close when shouldClose holds.
func RewriteResponse(h List, shouldClose bool) List {
	out := dropInvalidValues(h)
	out = removeConnectionToken(out, isKeepAliveToken)
	if shouldClose {
		out = addConnectionToken(out, "close")
	}
	return out
}

// ShouldClose reports whether a response triggers Connection: close: the
// request carried Expect: 100-continue without a 100 having been
// forwarded to the client, and the final status is >= 200.
func ShouldClose(expectContinue, continueForwarded bool, finalStatus int) bool {
	return expectContinue && !continueForwarded && finalStatus >= 200
}
