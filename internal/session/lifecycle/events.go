// SPDX-License-Identifier: MIT

// Package lifecycle owns the session state machine. Every mutation of a
// session record's state goes through this table; illegal edges are
// rejected centrally instead of being representable.
package lifecycle

// EventKind names one cause of a state transition.
type EventKind string

const (
	EvQrReady    EventKind = "qr_ready"
	EvLoggedOn   EventKind = "logged_on"
	EvStartIdle  EventKind = "start_idle"
	EvStopIdle   EventKind = "stop_idle"
	EvError      EventKind = "error"
	EvDisconnect EventKind = "disconnect"
)
