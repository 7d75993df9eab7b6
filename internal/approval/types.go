// Package approval manages the reaction-gated, time-bounded approval of
// high-priority work item submissions.
package approval

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalEmoji is the reaction that acknowledges a pending ticket.
const ApprovalEmoji = "✅"

// DefaultWindow is how long a ticket waits for acknowledgement before it
// expires.
const DefaultWindow = 24 * time.Hour

// State is the lifecycle state of a ticket.
type State string

const (
	// StatePending means the ticket awaits an authorized acknowledgement.
	StatePending State = "pending_approval"

	// StateApproved is terminal: an authorized user acknowledged in time.
	StateApproved State = "approved"

	// StateExpired is terminal: the window elapsed with no acknowledgement.
	StateExpired State = "expired"
)

// Priority is the severity a requester assigns to a submission.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityUrgent   Priority = "urgent"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists all valid priorities, highest first.
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// RequiresApproval reports whether submissions at this priority are gated
// behind admin acknowledgement. Only the two highest severities are.
func (p Priority) RequiresApproval() bool {
	return p == PriorityCritical || p == PriorityUrgent
}

// Label returns the tracker label for the priority.
func (p Priority) Label() string {
	return "priority: " + string(p)
}

// Emoji returns the indicator shown next to the priority in chat.
func (p Priority) Emoji() string {
	switch p {
	case PriorityCritical:
		return "🔴"
	case PriorityUrgent:
		return "🟠"
	case PriorityHigh:
		return "🟡"
	case PriorityMedium:
		return "🟢"
	default:
		return "🔵"
	}
}

// Ticket is one gated submission. It is created in StatePending and moves
// exactly once to StateApproved or StateExpired.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Priority    Priority
	RequesterID string
	Repository  string
	CreatedAt   time.Time
	Deadline    time.Time
	State       State
}

// NewTicket creates a pending ticket. The deadline is stamped by
// Manager.Track from its configured window.
func NewTicket(title, description string, priority Priority, requesterID, repository string) *Ticket {
	return &Ticket{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Priority:    priority,
		RequesterID: requesterID,
		Repository:  repository,
		CreatedAt:   time.Now(),
		State:       StatePending,
	}
}

// Outcome reports the terminal transition of a ticket.
type Outcome struct {
	Ticket     *Ticket
	State      State
	ApproverID string // set when State is StateApproved
	DecidedAt  time.Time
}
