package nbx

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var errNotNumeric = errors.New("not a number")

// TransportError wraps a failure below the HTTP layer (dial, TLS, timeout).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports malformed base64 key material or a response body that is not JSON.
type DecodeError struct {
	Input string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode " + e.Input
	}
	return fmt.Sprintf("decode %s: %v", e.Input, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProtocolError means the exchange answered with JSON that lacks an expected field.
type ProtocolError struct {
	Field  string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: field %q %s", e.Field, e.Reason)
}

// ParseError reports a numeric field that could not be parsed.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFoundError is returned when a lookup yields an empty collection.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// ValidationError rejects caller input before anything is sent.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// StatusError carries a non-2xx answer from an endpoint that has no typed outcome.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, truncate(strings.TrimSpace(e.Body), maxErrorBody))
}

const maxErrorBody = 256

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
