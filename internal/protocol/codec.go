// Package protocol implements C7/C8/C9: the line-oriented wire format
// (§4.5), the TCP server that dispatches requests to a shared
// engine.Store, and the client that speaks the same format.
package protocol

import "strings"

// ParseRequest splits a request line into space-separated tokens,
// discarding empty tokens from repeated or leading/trailing spaces.
// Grounded on original_source/project-3/src/codec.rs's
// parse_request_from_line.
func ParseRequest(line string) []string {
	return strings.Fields(line)
}

// Response text constants, shared verbatim between server and client so
// the client's parsing in client.go stays in lockstep with what the
// server actually writes (§9's resolution of the "quoted debug vs plain
// text" ambiguity: plain text, always).
const (
	RespOK             = "OK"
	RespKeyNotFound    = "Key not found"
	RespInvalidRequest = "invalid request"
)
