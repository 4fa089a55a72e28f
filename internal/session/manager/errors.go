// SPDX-License-Identifier: MIT

package manager

import "errors"

var (
	// ErrDuplicateSession: login requested for a user with an existing
	// record in either registry. The existing record is untouched.
	ErrDuplicateSession = errors.New("session already exists for user")
	// ErrInvalidUsername: the username cannot be used as a registry key
	// or filesystem path component.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrNotLoggedIn: the action needs an authenticated session.
	ErrNotLoggedIn = errors.New("user not logged in")
	// ErrNotIdling: stop-idle on a session that is not idling.
	ErrNotIdling = errors.New("user not idling")
	// ErrNoGames: start-idle with no valid game IDs.
	ErrNoGames = errors.New("no valid game ids")
	// ErrShuttingDown: the orchestrator no longer accepts new sessions.
	ErrShuttingDown = errors.New("orchestrator shutting down")
)
