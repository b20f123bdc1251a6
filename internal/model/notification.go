package model

import "time"

// Notification types mirror the lifecycle events a requester can be
// told about.  CANCELLED covers both sibling auto-cancels and a
// requester withdrawing their own request.
const (
	NotifyApproved  = "APPROVED"
	NotifyRejected  = "REJECTED"
	NotifyCancelled = "CANCELLED"
	NotifyExtended  = "EXTENDED"
	NotifyReturned  = "RETURNED"
)

// BorrowNotification is an append-only row in `borrow_notifications`
// recording a lifecycle event for the requester's inbox.  Rows are
// created as a side effect of owner decisions and never mutated.
type BorrowNotification struct {
	ID        uint64    `json:"id"`
	RequestID uint64    `json:"request_id"`
	Type      string    `json:"type"`
	Message   *string   `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
