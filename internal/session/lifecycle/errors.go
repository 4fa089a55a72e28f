// SPDX-License-Identifier: MIT

package lifecycle

import "errors"

// ErrIllegalTransition marks an edge the state machine forbids. It is not
// reachable from external input; if it fires, the caller treats it as a
// programming-invariant failure and forces the record into the error state.
var ErrIllegalTransition = errors.New("illegal state transition")
