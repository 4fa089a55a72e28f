// SPDX-License-Identifier: MIT

package idler

import (
	"context"
	"testing"
	"time"
)

func collectUntil(t *testing.T, events <-chan Event, want int) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(2 * time.Second)
	for len(got) < want {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out after %d/%d events", len(got), want)
		}
	}
	return got
}

func TestVirtualIdler_AutoLoginHandshake(t *testing.T) {
	f := &VirtualFactory{QrDelay: time.Millisecond, LoginDelay: time.Millisecond, AutoLogin: true}
	h, err := f.New(context.Background(), Options{AccountName: "alice"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := h.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	got := collectUntil(t, h.Events(), 2)
	if _, ok := got[0].(QrCodeEvent); !ok {
		t.Fatalf("first event = %T, want QrCodeEvent", got[0])
	}
	if _, ok := got[1].(LoggedOnEvent); !ok {
		t.Fatalf("second event = %T, want LoggedOnEvent", got[1])
	}
}

func TestVirtualIdler_ManualCompletion(t *testing.T) {
	f := &VirtualFactory{QrDelay: time.Millisecond}
	h, err := f.New(context.Background(), Options{AccountName: "bob"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	v := h.(*VirtualIdler)

	if err := v.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	got := collectUntil(t, v.Events(), 1)
	if _, ok := got[0].(QrCodeEvent); !ok {
		t.Fatalf("event = %T, want QrCodeEvent", got[0])
	}

	v.CompleteLogin()
	got = collectUntil(t, v.Events(), 1)
	if _, ok := got[0].(LoggedOnEvent); !ok {
		t.Fatalf("event = %T, want LoggedOnEvent", got[0])
	}
}

func TestVirtualIdler_LoginTwiceFails(t *testing.T) {
	f := &VirtualFactory{AutoLogin: false}
	h, _ := f.New(context.Background(), Options{AccountName: "carol"})

	if err := h.Login(context.Background()); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if err := h.Login(context.Background()); err == nil {
		t.Fatal("second login succeeded")
	}
}

func TestVirtualIdler_LogoutClosesStream(t *testing.T) {
	f := &VirtualFactory{AutoLogin: false}
	h, _ := f.New(context.Background(), Options{AccountName: "dave"})

	if err := h.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}

	ev, ok := <-h.Events()
	if !ok {
		t.Fatal("stream closed before the disconnect event")
	}
	if _, isDisc := ev.(DisconnectedEvent); !isDisc {
		t.Fatalf("event = %T, want DisconnectedEvent", ev)
	}
	if _, ok := <-h.Events(); ok {
		t.Fatal("stream still open after disconnect")
	}

	// Idempotent: a second logout neither panics nor emits.
	if err := h.Logout(context.Background()); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestVirtualIdler_IdleList(t *testing.T) {
	f := &VirtualFactory{}
	h, _ := f.New(context.Background(), Options{AccountName: "erin"})
	v := h.(*VirtualIdler)

	if err := v.StartIdle(context.Background(), []int{730, 440}); err != nil {
		t.Fatalf("start idle: %v", err)
	}
	if got := v.Idling(); len(got) != 2 || got[0] != 730 {
		t.Fatalf("idling = %v", got)
	}
	if err := v.StopIdle(context.Background()); err != nil {
		t.Fatalf("stop idle: %v", err)
	}
	if got := v.Idling(); len(got) != 0 {
		t.Fatalf("idling after stop = %v", got)
	}
}

func TestVirtualFactory_RequiresAccountName(t *testing.T) {
	f := &VirtualFactory{}
	if _, err := f.New(context.Background(), Options{}); err == nil {
		t.Fatal("factory accepted empty account name")
	}
}
