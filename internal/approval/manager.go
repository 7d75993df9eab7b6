package approval

import (
	"log/slog"
	"sync"
	"time"

	"github.com/irsiksoftware/ladderbot/internal/logging"
)

// Manager tracks pending tickets keyed by the chat message awaiting
// reactions. Each ticket combines a timer and an event subscription into a
// single resolution path: whichever fires first wins, and the other can
// never fire afterwards. Concurrent tickets are independent.
type Manager struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingTicket
	log     *slog.Logger
}

type pendingTicket struct {
	ticket    *Ticket
	outcomeCh chan Outcome
	timer     *time.Timer
}

// NewManager creates a manager with the given approval window. A zero
// window uses DefaultWindow.
func NewManager(window time.Duration) *Manager {
	if window == 0 {
		window = DefaultWindow
	}
	return &Manager{
		window:  window,
		pending: make(map[string]*pendingTicket),
		log:     logging.WithComponent("approval"),
	}
}

// Track registers a pending ticket against the message carrying its
// approval reaction and returns a channel that yields exactly one Outcome:
// Approved on the first qualifying reaction, or Expired when the window
// elapses. The ticket's deadline is stamped from the manager's window.
func (m *Manager) Track(ticket *Ticket, messageID string) <-chan Outcome {
	pt := &pendingTicket{
		ticket:    ticket,
		outcomeCh: make(chan Outcome, 1),
	}
	ticket.Deadline = time.Now().Add(m.window)

	// The timer must be in place before the map entry is visible, or a
	// racing reaction could resolve a ticket whose timer is still nil.
	m.mu.Lock()
	pt.timer = time.AfterFunc(m.window, func() {
		m.resolve(messageID, StateExpired, "")
	})
	m.pending[messageID] = pt
	m.mu.Unlock()

	m.log.Info("Tracking approval ticket",
		slog.String("ticket_id", ticket.ID),
		slog.String("message_id", messageID),
		slog.String("priority", string(ticket.Priority)),
		slog.Time("deadline", ticket.Deadline))

	return pt.outcomeCh
}

// HandleReaction processes a reaction on a tracked message. Only an
// authorized actor triggers the Approved transition; unauthorized or
// unrelated reactions leave the ticket pending. Returns true when the
// reaction resolved a ticket.
func (m *Manager) HandleReaction(messageID, userID string, authorized bool) bool {
	if !authorized {
		m.mu.Lock()
		_, tracked := m.pending[messageID]
		m.mu.Unlock()
		if tracked {
			m.log.Debug("Ignoring unauthorized approval reaction",
				slog.String("message_id", messageID),
				slog.String("user_id", userID))
		}
		return false
	}
	return m.resolve(messageID, StateApproved, userID)
}

// Pending returns the number of tickets still awaiting resolution.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// resolve fires the terminal transition for a tracked message. Removal
// from the pending map under the lock guarantees exactly one transition
// per ticket no matter how many reactions or timer fires race.
func (m *Manager) resolve(messageID string, state State, approverID string) bool {
	m.mu.Lock()
	pt, ok := m.pending[messageID]
	if ok {
		delete(m.pending, messageID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	pt.timer.Stop()
	pt.ticket.State = state

	outcome := Outcome{
		Ticket:     pt.ticket,
		State:      state,
		ApproverID: approverID,
		DecidedAt:  time.Now(),
	}
	pt.outcomeCh <- outcome

	m.log.Info("Approval ticket resolved",
		slog.String("ticket_id", pt.ticket.ID),
		slog.String("state", string(state)),
		slog.String("approved_by", approverID))
	return true
}
