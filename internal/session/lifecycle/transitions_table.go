// SPDX-License-Identifier: MIT

package lifecycle

import "github.com/vurafps/Webpanel/internal/session/model"

// Transition is a single allowed edge in the lifecycle state machine.
type Transition struct {
	From  model.SessionState
	To    model.SessionState
	Event EventKind
}

// Outcome classifies a state+event pair.
type Outcome int

const (
	// OutcomeApply: the edge is legal, apply it.
	OutcomeApply Outcome = iota
	// OutcomeIgnore: duplicate or stale delivery; drop without error.
	// Events may be delivered more than once by the client session.
	OutcomeIgnore
	// OutcomeReject: the edge violates the state machine.
	OutcomeReject
)

var transitionsTable = []Transition{
	// Login path
	{From: model.StateInitializing, To: model.StateQrReady, Event: EvQrReady},
	{From: model.StateQrReady, To: model.StateQrReady, Event: EvQrReady},        // QR rotation
	{From: model.StateInitializing, To: model.StateLoggedIn, Event: EvLoggedOn}, // cached credentials skip the QR phase
	{From: model.StateQrReady, To: model.StateLoggedIn, Event: EvLoggedOn},

	// Idle path
	{From: model.StateLoggedIn, To: model.StateIdling, Event: EvStartIdle},
	{From: model.StateIdling, To: model.StateIdling, Event: EvStartIdle}, // replace game list
	{From: model.StateIdling, To: model.StateLoggedIn, Event: EvStopIdle},

	// Failure, reachable from any non-terminal state
	{From: model.StateInitializing, To: model.StateError, Event: EvError},
	{From: model.StateQrReady, To: model.StateError, Event: EvError},
	{From: model.StateLoggedIn, To: model.StateError, Event: EvError},
	{From: model.StateIdling, To: model.StateError, Event: EvError},

	// Disconnect, reachable from any non-terminal state
	{From: model.StateInitializing, To: model.StateDisconnected, Event: EvDisconnect},
	{From: model.StateQrReady, To: model.StateDisconnected, Event: EvDisconnect},
	{From: model.StateLoggedIn, To: model.StateDisconnected, Event: EvDisconnect},
	{From: model.StateIdling, To: model.StateDisconnected, Event: EvDisconnect},
}

// ignoredTable lists deliveries that are expected duplicates: the client
// session may re-emit loggedOn. A QR challenge after login is NOT listed;
// state only moves forward along the login path, so it rejects.
var ignoredTable = []struct {
	From  model.SessionState
	Event EventKind
}{
	{model.StateLoggedIn, EvLoggedOn},
	{model.StateIdling, EvLoggedOn},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from model.SessionState, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Decide classifies a state+event pair. Terminal states absorb every
// event; the listed duplicate deliveries are ignored; everything the
// table does not permit is rejected.
func Decide(from model.SessionState, ev EventKind) (Transition, Outcome) {
	if tr, ok := TransitionFor(from, ev); ok {
		return tr, OutcomeApply
	}
	if from.IsTerminal() {
		return Transition{}, OutcomeIgnore
	}
	for _, ig := range ignoredTable {
		if ig.From == from && ig.Event == ev {
			return Transition{}, OutcomeIgnore
		}
	}
	return Transition{}, OutcomeReject
}
