// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"time"
)

// Transport abstracts the byte stream beneath one WebSocket connection.
// net.Conn satisfies it.
type Transport interface {
	// Read blocks until at least one byte is available or the stream fails.
	Read(p []byte) (n int, err error)

	// Write writes the whole buffer or returns an error.
	Write(p []byte) (n int, err error)

	// Close releases the stream; pending Read calls return an error.
	Close() error

	// SetReadDeadline bounds the next Read; zero disables the deadline.
	SetReadDeadline(t time.Time) error
}

// Validator is the acceptance gate applied to every text payload
// before it may reach a RecordStore.
type Validator interface {
	Validate(text string) bool
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(text string) bool

// Validate calls f(text).
func (f ValidatorFunc) Validate(text string) bool {
	return f(text)
}

// Record is one decoded GPS sample.
type Record struct {
	DeviceID  uint32
	Timestamp uint64
	Lat       float64
	Lon       float64
}

// RecordStore persists records. Implementations must accept concurrent calls
// from many connections; every call is a single self-contained insert.
type RecordStore interface {
	StoreRecord(ctx context.Context, rec Record) error
}
