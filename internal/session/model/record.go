// SPDX-License-Identifier: MIT

package model

import "github.com/vurafps/Webpanel/internal/idler"

// SessionState is the client-visible lifecycle for a per-user session.
// The happy path is Initializing -> QrReady -> LoggedIn -> Idling;
// Disconnected and Error are absorbing.
type SessionState string

const (
	StateInitializing SessionState = "initializing"
	StateQrReady      SessionState = "qr_ready"
	StateLoggedIn     SessionState = "logged_in"
	StateIdling       SessionState = "idling"
	StateDisconnected SessionState = "disconnected"
	StateError        SessionState = "error"
)

// IsTerminal reports whether the state is absorbing. Terminal records are
// removed from the registry, never reused.
func (s SessionState) IsTerminal() bool {
	return s == StateDisconnected || s == StateError
}

// LoggedOn reports whether the session holds an authenticated Steam connection.
func (s SessionState) LoggedOn() bool {
	return s == StateLoggedIn || s == StateIdling
}

// RegistryTag marks which logical registry currently owns a record.
// A record is pending until the loggedOn event promotes it.
type RegistryTag string

const (
	RegistryPending RegistryTag = "pending"
	RegistryActive  RegistryTag = "active"
)

// SessionRecord is the single source of truth for one user's session.
// All mutation goes through the store's Transition/Promote/Remove entry
// points; no other component writes these fields.
type SessionRecord struct {
	Username string
	State    SessionState
	Registry RegistryTag

	// Idler is the exclusively owned handle to the external client session.
	// Exactly one registry slot owns it at any time.
	Idler idler.Idler

	// QRPath points at the artifact manager's QR image while the login
	// challenge is pending. Empty outside the QrReady window.
	QRPath string

	// LastError carries the failure description; set only in StateError.
	LastError string

	// GameIDs is the ordered idling list; non-empty only in StateIdling.
	GameIDs []int

	CreatedAtUnix int64
	UpdatedAtUnix int64
}

// Clone returns a copy safe to hand outside the store. The Idler handle and
// the game ID slice header are shared deliberately: the handle identity is
// the point, and GameIDs is copied to keep callers from aliasing store state.
func (r *SessionRecord) Clone() SessionRecord {
	cp := *r
	if r.GameIDs != nil {
		cp.GameIDs = append([]int(nil), r.GameIDs...)
	}
	return cp
}
