// SPDX-License-Identifier: MIT

package manager

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vurafps/Webpanel/internal/idler"
	wplog "github.com/vurafps/Webpanel/internal/log"
	"github.com/vurafps/Webpanel/internal/session/lifecycle"
	"github.com/vurafps/Webpanel/internal/session/model"
	"github.com/vurafps/Webpanel/internal/session/store"
)

// consumeEvents is the bridge between one idler's event stream and the
// session store. It runs as a single goroutine per session so every event
// for a username is applied in arrival order, and each application runs
// under the same per-user exclusion boundary as the facade's use-cases.
// Duplicate deliveries hit either a lifecycle no-op or a NotFound, both of
// which are dropped silently.
func (o *Orchestrator) consumeEvents(ctx context.Context, username string, handle idler.Idler) {
	logger := wplog.WithComponent("event-bridge").With().Str(wplog.FieldUsername, username).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-handle.Events():
			if !ok {
				return
			}
			switch e := ev.(type) {
			case idler.QrCodeEvent:
				idlerEventsTotal.WithLabelValues("qr_code").Inc()
				o.handleQrCode(logger, username, e.Data)
			case idler.LoggedOnEvent:
				idlerEventsTotal.WithLabelValues("logged_on").Inc()
				o.handleLoggedOn(logger, username, handle)
			case idler.ErrorEvent:
				idlerEventsTotal.WithLabelValues("error").Inc()
				o.handleIdlerError(logger, username, e.Message)
			case idler.DisconnectedEvent:
				idlerEventsTotal.WithLabelValues("disconnected").Inc()
				o.handleDisconnected(logger, username)
			default:
				logger.Warn().Msgf("unknown idler event %T", ev)
			}
		}
	}
}

func (o *Orchestrator) handleQrCode(logger zerolog.Logger, username, data string) {
	_ = o.Store.WithUser(username, func() error {
		path, err := o.Artifacts.WriteQR(username, data)
		if err != nil {
			logger.Error().Err(err).Msg("qr artifact write failed")
			o.forceError(logger, username, "failed to generate QR code")
			return nil
		}

		_, applied, err := o.Store.Transition(username, lifecycle.EvQrReady, func(r *model.SessionRecord) {
			r.QRPath = path
		})
		switch {
		case errors.Is(err, store.ErrNotFound):
			// The session was torn down while we wrote the file.
			if err := o.Artifacts.DeleteQR(username); err != nil {
				logger.Warn().Err(err).Msg("orphan qr cleanup failed")
			}
		case err != nil:
			// The record forced into the error state has no QR window
			// anymore; the freshly written file must not outlive it.
			logger.Error().Err(err).Msg("qr transition rejected")
			if err := o.Artifacts.DeleteQR(username); err != nil {
				logger.Warn().Err(err).Msg("orphan qr cleanup failed")
			}
		case applied:
			logger.Info().Str(wplog.FieldPath, path).Str(wplog.FieldEvent, "qr.ready").Msg("qr code saved")
		}
		return nil
	})
}

func (o *Orchestrator) handleLoggedOn(logger zerolog.Logger, username string, handle idler.Idler) {
	_ = o.Store.WithUser(username, func() error {
		_, applied, err := o.Store.Transition(username, lifecycle.EvLoggedOn, nil)
		if errors.Is(err, store.ErrNotFound) {
			// A logout raced the login completion. The record is gone, so
			// the promotion is abandoned and the handle discarded; no
			// orphaned active session may remain.
			promotionsAbandoned.Inc()
			o.logoutQuietly(username, handle)
			return nil
		}
		if err != nil {
			logger.Error().Err(err).Msg("loggedOn transition rejected")
			return nil
		}
		if !applied {
			return nil // duplicate delivery
		}

		if _, err := o.Store.Promote(username); err != nil {
			// Unreachable while the per-user lock is held across the
			// transition and the promote; treat as invariant failure.
			logger.Error().Err(err).Msg("promotion failed after loggedOn")
			o.forceError(logger, username, "session promotion failed")
			return nil
		}
		logger.Info().Str(wplog.FieldEvent, "login.completed").Msg("logged in successfully")
		return nil
	})
}

func (o *Orchestrator) handleIdlerError(logger zerolog.Logger, username, message string) {
	_ = o.Store.WithUser(username, func() error {
		o.forceError(logger, username, message)
		return nil
	})
}

// handleDisconnected tears the session down: artifact first, then record,
// per the cleanup ordering choice (a dangling record self-heals, a dangling
// file would not). Duplicate delivery finds nothing and is a no-op.
func (o *Orchestrator) handleDisconnected(logger zerolog.Logger, username string) {
	_ = o.Store.WithUser(username, func() error {
		if err := o.Artifacts.DeleteQR(username); err != nil {
			logger.Warn().Err(err).Msg("qr cleanup failed on disconnect")
		}

		// Recorded for the transition metric; the record is removed either way.
		_, _, _ = o.Store.Transition(username, lifecycle.EvDisconnect, nil)

		if _, ok := o.Store.Remove(username); ok {
			logger.Info().Str(wplog.FieldEvent, "session.disconnected").Msg("session removed after disconnect")
		}
		return nil
	})
}

// forceError moves the record into the error state; the record remains
// queryable until explicitly removed.
func (o *Orchestrator) forceError(logger zerolog.Logger, username, message string) {
	_, _, err := o.Store.Transition(username, lifecycle.EvError, func(r *model.SessionRecord) {
		r.LastError = message
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error().Err(err).Msg("error transition rejected")
	}
}
