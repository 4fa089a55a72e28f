// SPDX-License-Identifier: MIT

// Package manager implements the session use-cases on top of the store,
// plus the event bridge that applies idler events to session records.
package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/vurafps/Webpanel/internal/artifact"
	"github.com/vurafps/Webpanel/internal/idler"
	wplog "github.com/vurafps/Webpanel/internal/log"
	"github.com/vurafps/Webpanel/internal/session/lifecycle"
	"github.com/vurafps/Webpanel/internal/session/model"
	"github.com/vurafps/Webpanel/internal/session/store"
)

// usernames double as registry keys and path components under the users
// and QR roots, so the safe set is restricted accordingly.
var safeUsernameRe = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,64}$`)

// Orchestrator is the facade for all session use-cases. Every state read is
// potentially stale the instant after it is read: asynchronous idler events
// mutate the same records, so compound operations run under the store's
// per-user exclusion boundary.
type Orchestrator struct {
	Store     *store.Store
	Artifacts *artifact.Manager
	Factory   idler.Factory
	UsersDir  string

	// LogoutTimeout bounds best-effort logout calls during cleanup.
	LogoutTimeout time.Duration

	rootCtx   context.Context
	consumers consumerRegistry
}

// New wires an orchestrator. ctx is the daemon's root context: event
// consumers stop when it is cancelled.
func New(ctx context.Context, st *store.Store, art *artifact.Manager, factory idler.Factory, usersDir string) *Orchestrator {
	return &Orchestrator{
		Store:         st,
		Artifacts:     art,
		Factory:       factory,
		UsersDir:      usersDir,
		LogoutTimeout: 5 * time.Second,
		rootCtx:       ctx,
	}
}

// BeginLogin creates a pending record, wires the event bridge to a fresh
// idler handle, and issues the asynchronous login request. It returns once
// the request is accepted; the outcome arrives through Status polling.
func (o *Orchestrator) BeginLogin(ctx context.Context, username string) error {
	if !safeUsernameRe.MatchString(username) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	logger := wplog.WithComponentFromContext(ctx, "orchestrator")

	return o.Store.WithUser(username, func() error {
		userDir := filepath.Join(o.UsersDir, username)
		if err := os.MkdirAll(userDir, 0o750); err != nil {
			return fmt.Errorf("provision user dir: %w", err)
		}

		handle, err := o.Factory.New(ctx, idler.Options{AccountName: username, DataDir: userDir})
		if err != nil {
			return fmt.Errorf("create idler: %w", err)
		}

		if _, err := o.Store.Create(username, handle); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				loginsTotal.WithLabelValues("duplicate").Inc()
				return fmt.Errorf("%w: %s", ErrDuplicateSession, username)
			}
			return err
		}

		if !o.consumers.Go(func() { o.consumeEvents(o.rootCtx, username, handle) }) {
			o.Store.Remove(username)
			return ErrShuttingDown
		}

		// The login outlives the request that started it; the handle's
		// lifetime is bound to the daemon, not the caller.
		if err := handle.Login(o.rootCtx); err != nil {
			// The request never left; take the record back out so the
			// user can retry immediately.
			o.Store.Remove(username)
			o.logoutQuietly(username, handle)
			loginsTotal.WithLabelValues("rejected").Inc()
			return fmt.Errorf("idler login: %w", err)
		}

		loginsTotal.WithLabelValues("accepted").Inc()
		logger.Info().Str(wplog.FieldUsername, username).Str(wplog.FieldEvent, "login.started").Msg("login process started")
		return nil
	})
}

// StatusView is the polled login status.
type StatusView struct {
	Status   string
	Username string
	QRCode   string
	Error    string
}

// StatusNotFound is the distinct status for unknown usernames; a status
// query never fails the caller.
const StatusNotFound = "not_found"

// Status reports the user's login lifecycle state.
func (o *Orchestrator) Status(username string) StatusView {
	rec, ok := o.Store.Get(username)
	if !ok {
		return StatusView{Status: StatusNotFound, Username: username}
	}

	view := StatusView{Username: username, Error: rec.LastError}
	switch rec.State {
	case model.StateIdling:
		// The login surface does not distinguish idling from logged in.
		view.Status = string(model.StateLoggedIn)
	default:
		view.Status = string(rec.State)
	}
	if rec.QRPath != "" {
		view.QRCode = o.Artifacts.PublicPath(username)
	}
	return view
}

// StartIdling forwards the game list to the user's idler and transitions the
// record to idling. Calling it while already idling replaces the list.
func (o *Orchestrator) StartIdling(ctx context.Context, username string, gameIDs []int) error {
	if len(gameIDs) == 0 {
		return ErrNoGames
	}
	for _, id := range gameIDs {
		if id <= 0 {
			return fmt.Errorf("%w: game id %d", ErrNoGames, id)
		}
	}

	return o.Store.WithUser(username, func() error {
		rec, ok := o.Store.Get(username)
		if !ok || !rec.State.LoggedOn() || rec.Registry != model.RegistryActive {
			return ErrNotLoggedIn
		}

		if err := rec.Idler.StartIdle(ctx, gameIDs); err != nil {
			return fmt.Errorf("idler start idle: %w", err)
		}

		_, _, err := o.Store.Transition(username, lifecycle.EvStartIdle, func(r *model.SessionRecord) {
			r.GameIDs = append([]int(nil), gameIDs...)
		})
		return err
	})
}

// StopIdling stops the user's idler and transitions the record back to
// logged in, clearing the game list.
func (o *Orchestrator) StopIdling(ctx context.Context, username string) error {
	return o.Store.WithUser(username, func() error {
		rec, ok := o.Store.Get(username)
		if !ok || !rec.State.LoggedOn() {
			return ErrNotLoggedIn
		}
		if rec.State != model.StateIdling {
			return ErrNotIdling
		}

		if err := rec.Idler.StopIdle(ctx); err != nil {
			return fmt.Errorf("idler stop idle: %w", err)
		}

		_, _, err := o.Store.Transition(username, lifecycle.EvStopIdle, nil)
		return err
	})
}

// IdleStatusView reports idling state; unknown users read as logged out
// rather than failing.
type IdleStatusView struct {
	Username string
	LoggedIn bool
	Idling   bool
	GameIDs  []int
}

// IdleStatus reports whether the user is logged in and what they idle.
func (o *Orchestrator) IdleStatus(username string) IdleStatusView {
	view := IdleStatusView{Username: username, GameIDs: []int{}}
	rec, ok := o.Store.Get(username)
	if !ok || rec.Registry != model.RegistryActive {
		return view
	}
	view.LoggedIn = rec.State.LoggedOn()
	view.Idling = rec.State == model.StateIdling
	if len(rec.GameIDs) > 0 {
		view.GameIDs = rec.GameIDs
	}
	return view
}

// EndSession logs the user out and removes every trace of the session:
// artifact first, then the record, then a best-effort idler logout.
// Idempotent; cleanup failures are logged, never surfaced, so a failed
// logout can always be retried.
func (o *Orchestrator) EndSession(ctx context.Context, username string) {
	logger := wplog.WithComponentFromContext(ctx, "orchestrator")

	_ = o.Store.WithUser(username, func() error {
		// Artifact deletion is safe regardless of record existence; this
		// also sweeps a dangling file left by a crash mid-cleanup.
		if err := o.Artifacts.DeleteQR(username); err != nil {
			logger.Warn().Err(err).Str(wplog.FieldUsername, username).Msg("qr cleanup failed during logout")
		}

		rec, ok := o.Store.Remove(username)
		if !ok {
			return nil
		}
		o.logoutQuietly(username, rec.Idler)
		logger.Info().Str(wplog.FieldUsername, username).Str(wplog.FieldEvent, "session.ended").Msg("session removed")
		return nil
	})
}

// Health returns the registry sizes for the health endpoint.
func (o *Orchestrator) Health() (pending, active int) {
	return o.Store.Counts()
}

// Shutdown ends every session best-effort and joins the event consumers.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	for _, username := range o.Store.Usernames() {
		o.EndSession(ctx, username)
	}
	return o.consumers.CloseAndWait(ctx)
}

func (o *Orchestrator) logoutQuietly(username string, handle idler.Idler) {
	ctx, cancel := context.WithTimeout(context.Background(), o.LogoutTimeout)
	defer cancel()
	if err := handle.Logout(ctx); err != nil {
		logger := wplog.WithComponent("orchestrator")
		logger.Warn().Err(err).Str(wplog.FieldUsername, username).Msg("idler logout failed")
	}
}
