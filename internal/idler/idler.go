// SPDX-License-Identifier: MIT

// Package idler defines the port to the external Steam client session.
// The real authentication handshake and idling protocol live behind this
// interface; the orchestration core only consumes its typed event stream.
package idler

import "context"

// Event is one tagged message from the client session's event stream.
// Delivery is at-least-once: consumers must treat duplicates as no-ops.
type Event interface{ isEvent() }

// QrCodeEvent carries the raw challenge data for a Steam Guard QR code.
type QrCodeEvent struct {
	Data string
}

// LoggedOnEvent signals a completed authentication handshake.
type LoggedOnEvent struct{}

// ErrorEvent signals a fatal session failure.
type ErrorEvent struct {
	Message string
}

// DisconnectedEvent signals that the upstream connection is gone.
// It is terminal; the event channel is closed after it is emitted.
type DisconnectedEvent struct{}

func (QrCodeEvent) isEvent()       {}
func (LoggedOnEvent) isEvent()     {}
func (ErrorEvent) isEvent()        {}
func (DisconnectedEvent) isEvent() {}

// Idler is one user's client session handle. Login is the asynchronous
// entry point: it returns once the login request is issued, and the outcome
// arrives on Events. StartIdle, StopIdle and Logout may suspend the caller
// while the external system responds.
type Idler interface {
	Login(ctx context.Context) error
	StartIdle(ctx context.Context, gameIDs []int) error
	StopIdle(ctx context.Context) error
	Logout(ctx context.Context) error

	// Events returns the session's event stream. The channel is closed
	// once the session is terminally disconnected or logged out.
	Events() <-chan Event
}

// Options configure a new client session.
type Options struct {
	AccountName string
	// DataDir is the per-user directory owned by the client session
	// (sentry files, refresh tokens). Provisioned before construction.
	DataDir string
}

// Factory constructs Idler handles. The daemon wires either the real
// implementation or the virtual simulator.
type Factory interface {
	New(ctx context.Context, opts Options) (Idler, error)
}
