// Package queue defines message payloads exchanged over the message
// broker and the background consumer that drains them.
package queue

// BorrowEventQueue is the durable queue carrying lifecycle events.
const BorrowEventQueue = "borrow.events"

// BorrowEvent is published after a borrow-request transition commits.
// It carries enough context for downstream consumers to log or notify
// without querying the primary database.  Publishing is best-effort;
// the lifecycle's correctness never depends on a delivered event.
type BorrowEvent struct {
	RequestID   uint64 `json:"request_id"`
	BookID      uint64 `json:"book_id"`
	BookTitle   string `json:"book_title"`
	RequesterID uint64 `json:"requester_id"`
	OwnerID     uint64 `json:"owner_id,omitempty"`
	Type        string `json:"type"` // REQUESTED, APPROVED, REJECTED, CANCELLED, EXTENDED, RETURNED
	DueDate     string `json:"due_date,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}
