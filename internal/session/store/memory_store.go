// SPDX-License-Identifier: MIT

// Package store is the authoritative in-memory registry of session records.
// One map keyed by username replaces the pending/active dictionary pair: the
// record carries its registry tag, so a user can never appear in both.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vurafps/Webpanel/internal/idler"
	"github.com/vurafps/Webpanel/internal/session/lifecycle"
	"github.com/vurafps/Webpanel/internal/session/model"
)

var (
	// ErrAlreadyExists signals a username that already owns a record in
	// either registry.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrNotFound signals an absent record.
	ErrNotFound = errors.New("session not found")
)

// Store holds all session records. Single operations are atomic under the
// store lock; compound sequences (read, call the client session, write)
// serialize per username through WithUser.
type Store struct {
	mu      sync.RWMutex
	records map[string]*model.SessionRecord

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		records: make(map[string]*model.SessionRecord),
		locks:   make(map[string]*sync.Mutex),
	}
}

// WithUser runs fn under the username's exclusion boundary. Transitions for
// one user are strictly serialized; different usernames proceed
// independently. Lock entries are retained for the daemon's lifetime, which
// is bounded by the distinct-user population.
func (s *Store) WithUser(username string, fn func() error) error {
	mu := s.userLock(username)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

func (s *Store) userLock(username string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.locks[username]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[username] = mu
	}
	return mu
}

// Create inserts a pending record in the initializing state. It fails with
// ErrAlreadyExists if the username owns a record in either registry: at most
// one session record may exist per username at any instant.
func (s *Store) Create(username string, handle idler.Idler) (model.SessionRecord, error) {
	now := time.Now().Unix()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[username]; ok {
		return model.SessionRecord{}, fmt.Errorf("create %q: %w", username, ErrAlreadyExists)
	}
	rec := &model.SessionRecord{
		Username:      username,
		State:         model.StateInitializing,
		Registry:      model.RegistryPending,
		Idler:         handle,
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	s.records[username] = rec
	recordRegistrySizes(s.countsLocked())
	return rec.Clone(), nil
}

// Get returns a copy of the record.
func (s *Store) Get(username string) (model.SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[username]
	if !ok {
		return model.SessionRecord{}, false
	}
	return rec.Clone(), true
}

// Promote atomically moves a record from the pending to the active registry.
// It fails with ErrNotFound if the record is absent and ErrAlreadyExists if
// it was already promoted.
func (s *Store) Promote(username string) (model.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[username]
	if !ok {
		return model.SessionRecord{}, fmt.Errorf("promote %q: %w", username, ErrNotFound)
	}
	if rec.Registry == model.RegistryActive {
		return model.SessionRecord{}, fmt.Errorf("promote %q: %w", username, ErrAlreadyExists)
	}
	rec.Registry = model.RegistryActive
	rec.UpdatedAtUnix = time.Now().Unix()
	recordRegistrySizes(s.countsLocked())
	return rec.Clone(), nil
}

// Remove deletes the record from whichever registry holds it and returns the
// removed copy so the caller can dispose of the client session handle.
// Idempotent: removing an absent username is not an error.
func (s *Store) Remove(username string) (model.SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[username]
	if !ok {
		return model.SessionRecord{}, false
	}
	delete(s.records, username)
	recordRegistrySizes(s.countsLocked())
	return rec.Clone(), true
}

// Transition applies the event's state change plus the optional field update
// as one atomic step. The returned bool reports whether the record changed:
// duplicate deliveries on terminal or already-advanced records are dropped
// without error. An edge the table forbids returns ErrIllegalTransition and
// forces the record into the error state, since reaching it means a
// programming error rather than bad external input.
func (s *Store) Transition(username string, ev lifecycle.EventKind, mutate func(*model.SessionRecord)) (model.SessionRecord, bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[username]
	if !ok {
		return model.SessionRecord{}, false, fmt.Errorf("transition %q: %w", username, ErrNotFound)
	}

	tr, outcome := lifecycle.Decide(rec.State, ev)
	switch outcome {
	case lifecycle.OutcomeIgnore:
		return rec.Clone(), false, nil
	case lifecycle.OutcomeReject:
		from := rec.State
		if forced, ok := lifecycle.TransitionFor(rec.State, lifecycle.EvError); ok {
			lifecycle.ApplyTransition(rec, forced, now)
			rec.LastError = fmt.Sprintf("illegal transition: %s + %s", from, ev)
		}
		recordTransitionRejected(string(from), string(ev))
		return rec.Clone(), false, fmt.Errorf("transition %q: %s + %s: %w", username, from, ev, lifecycle.ErrIllegalTransition)
	}

	from := rec.State
	lifecycle.ApplyTransition(rec, tr, now)
	if mutate != nil {
		mutate(rec)
	}
	recordTransition(string(from), string(rec.State))
	return rec.Clone(), true, nil
}

// Counts returns the pending and active registry sizes.
func (s *Store) Counts() (pending, active int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countsLocked()
}

func (s *Store) countsLocked() (pending, active int) {
	for _, rec := range s.records {
		if rec.Registry == model.RegistryActive {
			active++
		} else {
			pending++
		}
	}
	return pending, active
}

// Usernames returns a snapshot of all registered usernames.
func (s *Store) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for name := range s.records {
		out = append(out, name)
	}
	return out
}
