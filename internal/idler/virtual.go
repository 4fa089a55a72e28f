// SPDX-License-Identifier: MIT

package idler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// VirtualFactory builds VirtualIdler handles. Used by tests and by the
// daemon's virtual mode, where no real Steam connection exists.
type VirtualFactory struct {
	// QrDelay and LoginDelay pace the simulated handshake.
	QrDelay    time.Duration
	LoginDelay time.Duration
	// AutoLogin controls whether the simulator completes the handshake on
	// its own. When false the session stays in the QR-challenge phase until
	// CompleteLogin is called on the handle.
	AutoLogin bool
}

func (f *VirtualFactory) New(_ context.Context, opts Options) (Idler, error) {
	if opts.AccountName == "" {
		return nil, fmt.Errorf("virtual idler: account name required")
	}
	qrDelay := f.QrDelay
	if qrDelay == 0 {
		qrDelay = 20 * time.Millisecond
	}
	loginDelay := f.LoginDelay
	if loginDelay == 0 {
		loginDelay = 50 * time.Millisecond
	}
	return &VirtualIdler{
		account:    opts.AccountName,
		qrDelay:    qrDelay,
		loginDelay: loginDelay,
		autoLogin:  f.AutoLogin,
		events:     make(chan Event, 64),
	}, nil
}

// VirtualIdler simulates the client session: Login emits a QR challenge and,
// in auto-login mode, a loggedOn event shortly after. Logout emits
// disconnected and closes the stream, mirroring the real client's contract.
type VirtualIdler struct {
	account    string
	qrDelay    time.Duration
	loginDelay time.Duration
	autoLogin  bool

	mu      sync.Mutex
	started bool
	closed  bool
	idling  []int

	events chan Event
}

func (v *VirtualIdler) Events() <-chan Event { return v.events }

func (v *VirtualIdler) Login(ctx context.Context) error {
	v.mu.Lock()
	if v.started {
		v.mu.Unlock()
		return fmt.Errorf("virtual idler: login already started for %s", v.account)
	}
	v.started = true
	v.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			v.emit(DisconnectedEvent{})
			v.closeStream()
			return
		case <-time.After(v.qrDelay):
		}
		v.emit(QrCodeEvent{Data: "otpauth://steam/" + v.account + "/" + uuid.New().String()})

		if !v.autoLogin {
			return
		}
		select {
		case <-ctx.Done():
			v.emit(DisconnectedEvent{})
			v.closeStream()
			return
		case <-time.After(v.loginDelay):
		}
		v.emit(LoggedOnEvent{})
	}()
	return nil
}

// CompleteLogin emits the loggedOn event, simulating the user scanning the
// QR code. Only meaningful when AutoLogin is disabled.
func (v *VirtualIdler) CompleteLogin() {
	v.emit(LoggedOnEvent{})
}

// Fail emits a fatal session error.
func (v *VirtualIdler) Fail(msg string) {
	v.emit(ErrorEvent{Message: msg})
}

// Drop simulates an upstream connection loss.
func (v *VirtualIdler) Drop() {
	v.emit(DisconnectedEvent{})
	v.closeStream()
}

func (v *VirtualIdler) StartIdle(ctx context.Context, gameIDs []int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("virtual idler: session closed")
	}
	v.idling = append([]int(nil), gameIDs...)
	return nil
}

func (v *VirtualIdler) StopIdle(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.idling = nil
	return nil
}

func (v *VirtualIdler) Logout(ctx context.Context) error {
	v.emit(DisconnectedEvent{})
	v.closeStream()
	return nil
}

// Idling returns the currently simulated idle list.
func (v *VirtualIdler) Idling() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]int(nil), v.idling...)
}

func (v *VirtualIdler) emit(ev Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	select {
	case v.events <- ev:
	default:
		// drop on backpressure to avoid producer blockage
	}
}

func (v *VirtualIdler) closeStream() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	close(v.events)
}
