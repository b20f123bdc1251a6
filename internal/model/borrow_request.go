package model

import "time"

// Borrow request states.  A request starts PENDING and either advances
// to APPROVED (and later RETURNED) or terminates as REJECTED or
// CANCELLED.  REJECTED, CANCELLED and RETURNED are terminal.
const (
	RequestPending   = "PENDING"
	RequestApproved  = "APPROVED"
	RequestRejected  = "REJECTED"
	RequestCancelled = "CANCELLED"
	RequestReturned  = "RETURNED"
)

// BorrowRequest represents a row in the `borrow_requests` table.  A
// request is created by the requester and decided by the book owner;
// rows are never deleted so the lending history stays complete.
//
// Fields:
//  ID              – primary key identifier.
//  BookID          – requested book.
//  RequesterID     – user asking to borrow.
//  Status          – one of the Request* constants above.
//  Message         – optional note from the requester to the owner.
//  OwnerMessage    – optional note recorded with the owner's decision.
//  OwnerDecisionAt – when the owner approved or rejected the request.
//  WhatsAppURL     – generated deep link used to contact the owner.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type BorrowRequest struct {
	ID              uint64     `json:"id"`
	BookID          uint64     `json:"book_id"`
	RequesterID     uint64     `json:"requester_id"`
	Status          string     `json:"status"`
	Message         *string    `json:"message,omitempty"`
	OwnerMessage    *string    `json:"owner_message,omitempty"`
	OwnerDecisionAt *time.Time `json:"owner_decision_at,omitempty"`
	WhatsAppURL     *string    `json:"whatsapp_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
