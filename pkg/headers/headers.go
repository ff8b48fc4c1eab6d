// Package headers provides an order-preserving HTTP header list and the
// request/response rewrite pipelines the relay applies before forwarding.
package headers

import (
	"net/textproto"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Pair is a single (name, value) header entry.
type Pair struct {
	Name  string
	Value string
}

// List is an ordered sequence of header pairs. Names are compared
// case-insensitively; order is preserved on forwarding except where a
// rewrite pipeline explicitly changes it.
type List []Pair

// Get returns the first value for name, case-insensitively, or "" if absent.
func (l List) Get(name string) string {
	for _, p := range l {
		if strings.EqualFold(p.Name, name) {
			return p.Value
		}
	}
	return ""
}

// Values returns every value for name, in order, case-insensitively.
func (l List) Values(name string) []string {
	var out []string
	for _, p := range l {
		if strings.EqualFold(p.Name, name) {
			out = append(out, p.Value)
		}
	}
	return out
}

// Contains reports whether name appears at all.
func (l List) Contains(name string) bool {
	for _, p := range l {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// Del returns a copy of l with every pair named name removed.
func (l List) Del(name string) List {
	out := make(List, 0, len(l))
	for _, p := range l {
		if !strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	return out
}

// Set returns a copy of l with every existing pair named name removed and a
// single new pair (name, value) appended.
func (l List) Set(name, value string) List {
	out := l.Del(name)
	return append(out, Pair{Name: name, Value: value})
}

// Add returns a copy of l with (name, value) appended, leaving any existing
// pairs of the same name untouched.
func (l List) Add(name, value string) List {
	out := make(List, len(l), len(l)+1)
	copy(out, l)
	return append(out, Pair{Name: name, Value: value})
}

// Clone returns an independent copy of l.
func (l List) Clone() List {
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Canonical returns name in canonical MIME header casing, matching the
// casing net/textproto and net/http use.
func Canonical(name string) string {
	return textproto.CanonicalMIMEHeaderKey(name)
}

// tokens splits a comma-separated header value into trimmed, non-empty
// tokens, following the same RFC 7230 list grammar httpguts validates
// against.
func tokens(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ContainsToken reports whether any value of header name, taken as a
// comma-separated token list, case-insensitively equals token.
func (l List) ContainsToken(name, token string) bool {
	for _, v := range l.Values(name) {
		if httpguts.HeaderValuesContainsToken([]string{v}, token) {
			return true
		}
	}
	return false
}

// Tokens returns every token in every value of header name, in order.
func (l List) Tokens(name string) []string {
	var out []string
	for _, v := range l.Values(name) {
		out = append(out, tokens(v)...)
	}
	return out
}
