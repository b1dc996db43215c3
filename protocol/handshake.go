// File: protocol/handshake.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw-bytes WebSocket handshake: detects the HTTP upgrade request, extracts
// Sec-WebSocket-Key and composes the 101 response without net/http.

package protocol

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/momentics/hioload-gps/api"
)

const (
	WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	// MaxHandshakeSize bounds the buffered request head.
	MaxHandshakeSize = 8192

	crlf = "\r\n"
)

var (
	ErrMissingWebSocketKey = errors.New("missing Sec-WebSocket-Key header")
	ErrHandshakeTooLarge   = errors.New("handshake request too large")
)

var secKeyPattern = regexp.MustCompile(`(?im)^Sec-WebSocket-Key:[ \t]*(.*)$`)

// HandshakeError wraps a failure to negotiate the upgrade.
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string { return "handshake: " + e.Err.Error() }

func (e *HandshakeError) Unwrap() error { return e.Err }

// Is makes every HandshakeError match api.ErrHandshake.
func (e *HandshakeError) Is(target error) bool { return target == api.ErrHandshake }

// IsHandshakeRequest reports whether raw starts with an HTTP GET request line.
func IsHandshakeRequest(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte("GET"))
}

// HandshakeComplete returns the offset just past the blank line that ends the
// request head, or -1 if the head has not been fully received.
func HandshakeComplete(raw []byte) int {
	i := bytes.Index(raw, []byte(crlf+crlf))
	if i < 0 {
		return -1
	}
	return i + 4
}

// ComputeAcceptKey computes the Sec-WebSocket-Accept value from the client's key.
// This implements the algorithm specified in RFC6455 Section 1.3.
func ComputeAcceptKey(clientKey string) string {
	hash := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// ExtractWebSocketKey returns the trimmed Sec-WebSocket-Key value of request.
func ExtractWebSocketKey(request string) (string, error) {
	m := secKeyPattern.FindStringSubmatch(request)
	if m == nil {
		return "", &HandshakeError{Err: ErrMissingWebSocketKey}
	}
	key := strings.TrimSpace(m[1])
	if key == "" {
		return "", &HandshakeError{Err: ErrMissingWebSocketKey}
	}
	return key, nil
}

// ComposeHandshakeResponse builds the 101 Switching Protocols response for request.
func ComposeHandshakeResponse(request string) ([]byte, error) {
	key, err := ExtractWebSocketKey(request)
	if err != nil {
		return nil, err
	}
	resp := fmt.Sprintf("HTTP/1.1 101 Switching Protocols"+crlf+
		"Connection: Upgrade"+crlf+
		"Upgrade: websocket"+crlf+
		"Sec-WebSocket-Accept: %s"+crlf+crlf, ComputeAcceptKey(key))
	return []byte(resp), nil
}
