package status

import (
	"testing"

	"github.com/matheus3301/tradechat/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Connecting},
		{Booting, AuthRequired},
		{Booting, Offline},
		{Booting, Error},
		{AuthRequired, Connecting},
		{Connecting, Online},
		{Connecting, Reconnecting},
		{Online, Reconnecting},
		{Online, AuthRequired},
		{Reconnecting, Connecting},
		{Reconnecting, Offline},
		{Offline, Connecting},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if m.CanTransition(Online) {
		t.Error("CanTransition(BOOTING -> ONLINE) = true")
	}
	if err := m.Transition(Online); err == nil {
		t.Error("Transition(BOOTING -> ONLINE) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state = %s, want BOOTING (unchanged)", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("feed.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.TransitionWith(Offline, "feed_url not configured"); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindFeedStatusChanged {
		t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindFeedStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Offline {
		t.Errorf("change = %v -> %v, want BOOTING -> OFFLINE", change.From, change.To)
	}
	if change.Reason != "feed_url not configured" || m.Reason() != change.Reason {
		t.Errorf("reason = %q / %q", change.Reason, m.Reason())
	}
}

// TestReconnectCycle walks the loop the feed runs after a dropped socket:
// ONLINE → RECONNECTING → CONNECTING → ONLINE.
func TestReconnectCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Online)

	for _, s := range []State{Reconnecting, Connecting, Online} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Online {
		t.Errorf("final state = %s, want ONLINE", m.Current())
	}
}

// TestRejectedCookie covers a session cookie that expires while online.
func TestRejectedCookie(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Online)

	if err := m.Transition(AuthRequired); err != nil {
		t.Fatalf("ONLINE -> AUTH_REQUIRED: %v", err)
	}
	if err := m.Transition(Online); err == nil {
		t.Fatal("AUTH_REQUIRED -> ONLINE should go through CONNECTING")
	}
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}
}

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:      {},
		AuthRequired: {AuthRequired},
		Connecting:   {Connecting},
		Online:       {Connecting, Online},
		Reconnecting: {Connecting, Online, Reconnecting},
		Offline:      {Offline},
		Error:        {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
