// SPDX-License-Identifier: MIT

package lifecycle

import (
	"time"

	"github.com/vurafps/Webpanel/internal/session/model"
)

// ApplyTransition mutates the session record according to the transition,
// maintaining the field invariants that ride along with state:
// the QR path exists only during the QR challenge window, the error text
// only in the error state, and the game list only while idling.
func ApplyTransition(rec *model.SessionRecord, tr Transition, now time.Time) {
	rec.State = tr.To

	if tr.To != model.StateQrReady {
		rec.QRPath = ""
	}
	if tr.To != model.StateError {
		rec.LastError = ""
	}
	if tr.To != model.StateIdling {
		rec.GameIDs = nil
	}

	rec.UpdatedAtUnix = now.Unix()
}
