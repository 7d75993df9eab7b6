package approval

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPriorityRequiresApproval(t *testing.T) {
	tests := []struct {
		priority Priority
		want     bool
	}{
		{PriorityCritical, true},
		{PriorityUrgent, true},
		{PriorityHigh, false},
		{PriorityMedium, false},
		{PriorityLow, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			if got := tt.priority.RequiresApproval(); got != tt.want {
				t.Errorf("RequiresApproval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriorityValid(t *testing.T) {
	for _, p := range Priorities() {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if Priority("blocker").Valid() {
		t.Error("unknown priority reported valid")
	}
}

func TestAuthorizedReactionApproves(t *testing.T) {
	m := NewManager(time.Hour)
	ticket := NewTicket("Add dash move", "double tap to dash", PriorityCritical, "user1", "NeonLadder")

	outcomes := m.Track(ticket, "msg1")

	if !m.HandleReaction("msg1", "admin1", true) {
		t.Fatal("authorized reaction did not resolve ticket")
	}

	select {
	case outcome := <-outcomes:
		if outcome.State != StateApproved {
			t.Errorf("state = %s, want approved", outcome.State)
		}
		if outcome.ApproverID != "admin1" {
			t.Errorf("approver = %s", outcome.ApproverID)
		}
		if ticket.State != StateApproved {
			t.Errorf("ticket state = %s", ticket.State)
		}
	case <-time.After(time.Second):
		t.Fatal("no outcome delivered")
	}

	if m.Pending() != 0 {
		t.Errorf("pending = %d after resolution", m.Pending())
	}
}

func TestUnauthorizedReactionNeverTransitions(t *testing.T) {
	m := NewManager(time.Hour)
	ticket := NewTicket("t", "d", PriorityUrgent, "user1", "NeonLadder")
	outcomes := m.Track(ticket, "msg1")

	if m.HandleReaction("msg1", "rando", false) {
		t.Fatal("unauthorized reaction resolved ticket")
	}

	select {
	case outcome := <-outcomes:
		t.Fatalf("unexpected outcome: %+v", outcome)
	case <-time.After(50 * time.Millisecond):
	}

	if ticket.State != StatePending {
		t.Errorf("ticket state = %s, want pending", ticket.State)
	}
}

func TestWindowExpiry(t *testing.T) {
	m := NewManager(50 * time.Millisecond)
	ticket := NewTicket("t", "d", PriorityCritical, "user1", "NeonLadder")
	outcomes := m.Track(ticket, "msg1")

	select {
	case outcome := <-outcomes:
		if outcome.State != StateExpired {
			t.Errorf("state = %s, want expired", outcome.State)
		}
		if outcome.ApproverID != "" {
			t.Errorf("expired outcome has approver %q", outcome.ApproverID)
		}
	case <-time.After(time.Second):
		t.Fatal("expiry never fired")
	}

	// A late reaction must not produce a second transition.
	if m.HandleReaction("msg1", "admin1", true) {
		t.Error("reaction resolved an already expired ticket")
	}
	if ticket.State != StateExpired {
		t.Errorf("ticket state = %s after late reaction", ticket.State)
	}
}

func TestFirstQualifyingReactionWins(t *testing.T) {
	m := NewManager(time.Hour)
	ticket := NewTicket("t", "d", PriorityCritical, "user1", "NeonLadder")
	outcomes := m.Track(ticket, "msg1")

	var wg sync.WaitGroup
	resolved := make([]bool, 10)
	for i := range resolved {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			resolved[n] = m.HandleReaction("msg1", "admin", true)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, r := range resolved {
		if r {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("%d reactions won, want exactly 1", wins)
	}

	// Exactly one outcome on the channel.
	<-outcomes
	select {
	case outcome := <-outcomes:
		t.Fatalf("second outcome delivered: %+v", outcome)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConcurrentTicketsAreIndependent(t *testing.T) {
	m := NewManager(50 * time.Millisecond)

	approved := m.Track(NewTicket("a", "d", PriorityCritical, "u", "R"), "msgA")
	expired := m.Track(NewTicket("b", "d", PriorityUrgent, "u", "R"), "msgB")

	if !m.HandleReaction("msgA", "admin", true) {
		t.Fatal("ticket A did not resolve")
	}

	outA := <-approved
	if outA.State != StateApproved {
		t.Errorf("ticket A state = %s", outA.State)
	}

	select {
	case outB := <-expired:
		if outB.State != StateExpired {
			t.Errorf("ticket B state = %s", outB.State)
		}
	case <-time.After(time.Second):
		t.Fatal("ticket B never expired")
	}
}

func TestReactionOnUntrackedMessage(t *testing.T) {
	m := NewManager(time.Hour)
	if m.HandleReaction("nope", "admin", true) {
		t.Error("reaction on untracked message resolved something")
	}
}

func TestReactionRacingTrack(t *testing.T) {
	m := NewManager(time.Hour)

	for i := 0; i < 200; i++ {
		msgID := fmt.Sprintf("msg%d", i)

		resolved := make(chan struct{})
		go func() {
			// Spin until the ticket becomes visible, so the reaction lands
			// as close to Track's map insert as possible.
			for !m.HandleReaction(msgID, "admin", true) {
			}
			close(resolved)
		}()

		outcomes := m.Track(NewTicket("t", "d", PriorityCritical, "u", "R"), msgID)

		select {
		case <-resolved:
		case <-time.After(time.Second):
			t.Fatal("reaction never resolved the ticket")
		}

		select {
		case outcome := <-outcomes:
			if outcome.State != StateApproved {
				t.Fatalf("state = %s, want approved", outcome.State)
			}
		case <-time.After(time.Second):
			t.Fatal("no outcome delivered")
		}
	}
}

func TestTrackStampsDeadlineFromWindow(t *testing.T) {
	m := NewManager(time.Hour)
	ticket := NewTicket("t", "d", PriorityCritical, "u", "R")

	m.Track(ticket, "msg1")

	want := time.Now().Add(time.Hour)
	if diff := ticket.Deadline.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("deadline = %v, want about %v", ticket.Deadline, want)
	}
}
