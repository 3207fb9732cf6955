package status

import (
	"testing"
	"time"

	"github.com/matheus3301/nchat/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Disconnected {
		t.Errorf("initial state = %s, want DISCONNECTED", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		path []State
	}{
		{[]State{Connecting}},
		{[]State{Connecting, Open}},
		{[]State{Connecting, Disconnected}},
		{[]State{Connecting, Closing, Disconnected}},
		{[]State{Connecting, Open, Disconnected}},
		{[]State{Connecting, Open, Closing, Disconnected}},
		{[]State{Connecting, Open, Disconnected, Connecting, Open}},
	}
	for _, tt := range tests {
		name := ""
		for _, s := range tt.path {
			name += "->" + string(s)
		}
		t.Run(name, func(t *testing.T) {
			m := NewMachine(nil)
			for _, s := range tt.path {
				if err := m.Transition(s); err != nil {
					t.Fatalf("Transition(%s) error = %v", s, err)
				}
			}
			if got := m.Current(); got != tt.path[len(tt.path)-1] {
				t.Errorf("state = %s, want %s", got, tt.path[len(tt.path)-1])
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	tests := []struct {
		walk []State
		to   State
	}{
		{nil, Open},
		{nil, Closing},
		{[]State{Connecting, Open}, Connecting},
		{[]State{Connecting, Closing}, Open},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, s := range tt.walk {
			if err := m.Transition(s); err != nil {
				t.Fatal(err)
			}
		}
		if err := m.Transition(tt.to); err == nil {
			t.Errorf("Transition(%s -> %s) should fail", m.Current(), tt.to)
		}
	}
}

func TestIs(t *testing.T) {
	m := NewMachine(nil)
	if !m.Is(Disconnected, Closing) {
		t.Error("Is(Disconnected, Closing) = false, want true")
	}
	if m.Is(Connecting, Open) {
		t.Error("Is(Connecting, Open) = true, want false")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("channel.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
		}
		if change.From != Disconnected || change.To != Connecting {
			t.Errorf("change = %+v, want DISCONNECTED->CONNECTING", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status event")
	}
}
