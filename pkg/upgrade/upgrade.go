// Package upgrade inspects Connection/Upgrade request headers and marks a
// request as an upgrade candidate, or rejects a malformed one.
package upgrade

import (
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/Willcoder111/vegur/pkg/errors"
	"github.com/Willcoder111/vegur/pkg/headers"
)

// Check parses h's Connection token list. If it does not contain
// "upgrade" (case-insensitive), Check returns upgraded=false with no
// error: the request passes through unchanged. If it does, Upgrade must
// be present and carry at least one protocol token, each of the form
// token or token/token; a missing, empty, or malformed Upgrade header is
// a client error (400). Check does not interpret which protocol was
// requested — the relay decides later whether the backend honored it.
func Check(h headers.List) (upgraded bool, err error) {
	if !h.ContainsToken("Connection", "upgrade") {
		return false, nil
	}

	tokens := h.Tokens("Upgrade")
	if len(tokens) == 0 {
		return false, errors.NewClientError("Connection: upgrade asserted without a valid Upgrade header")
	}
	for _, tok := range tokens {
		for _, part := range strings.SplitN(tok, "/", 2) {
			if part == "" || strings.IndexFunc(part, func(r rune) bool { return !httpguts.IsTokenRune(r) }) >= 0 {
				return false, errors.NewClientError("malformed Upgrade protocol token")
			}
		}
	}

	return true, nil
}
