// Package borrow implements the borrow-request lifecycle: the single
// allowed path a request may take (PENDING -> APPROVED -> RETURNED, or
// PENDING -> REJECTED/CANCELLED) and the book availability bookkeeping
// attached to every transition.  Persistence is injected through the
// Store and TxRunner interfaces so the state machine can be exercised
// without a database; the SQL adapter lives in internal/repository.
package borrow

import (
	"context"
	"errors"
	"time"

	"github.com/meetread/meetread/internal/model"
	"github.com/meetread/meetread/internal/utils"
)

// Sentinel errors returned by lifecycle operations.  Handlers map
// them onto the HTTP taxonomy: not-found -> 404, ownership -> 403,
// validation and wrong-state -> 400, availability conflicts -> 409.
var (
	ErrBookNotFound     = errors.New("book not found")
	ErrRequestNotFound  = errors.New("borrow request not found")
	ErrOwnBook          = errors.New("cannot request your own book")
	ErrNoOwner          = errors.New("book has no owner to request from")
	ErrOwnerUnreachable = errors.New("book owner has no phone number")
	ErrNotAvailable     = errors.New("book is not available for borrowing")
	ErrDuplicatePending = errors.New("a pending request for this book already exists")
	ErrNotOwner         = errors.New("only the book owner may decide this request")
	ErrNotRequester     = errors.New("only the requester may cancel this request")
	ErrAlreadyProcessed = errors.New("request has already been processed")
	ErrNotApproved      = errors.New("request is not approved")
	ErrPastDueDate      = errors.New("due date must be in the future")
)

// Store is the persistence surface a lifecycle transition needs.  All
// methods operate inside the transaction the TxRunner opened; reads
// must lock the rows they return so concurrent transitions serialize
// on the store's isolation, the only concurrency control in play.
type Store interface {
	// BookByID returns a book or ErrBookNotFound.
	BookByID(ctx context.Context, id uint64) (*model.Book, error)
	// UserByID returns a user row; needed for owner phone numbers and
	// requester names when building the contact link.
	UserByID(ctx context.Context, id uint64) (*model.User, error)
	// RequestByID returns a borrow request or ErrRequestNotFound.
	RequestByID(ctx context.Context, id uint64) (*model.BorrowRequest, error)
	// HasPendingRequest reports whether the requester already has a
	// PENDING request for the book.
	HasPendingRequest(ctx context.Context, bookID, requesterID uint64) (bool, error)
	// CountPendingForBook counts PENDING requests on a book excluding
	// the given request ID.
	CountPendingForBook(ctx context.Context, bookID, exceptRequestID uint64) (int, error)
	// InsertRequest persists a new request and fills in its ID.
	InsertRequest(ctx context.Context, req *model.BorrowRequest) error
	// UpdateRequestDecision records an owner decision: new status,
	// optional owner message and the decision timestamp.
	UpdateRequestDecision(ctx context.Context, id uint64, status string, ownerMessage *string, decidedAt time.Time) error
	// UpdateRequestStatus moves a request to a new status without
	// touching decision metadata.
	UpdateRequestStatus(ctx context.Context, id uint64, status string) error
	// CancelSiblings transitions every other PENDING request on the
	// book to CANCELLED with the given owner message and returns the
	// IDs of the requests it cancelled.
	CancelSiblings(ctx context.Context, bookID, exceptRequestID uint64, ownerMessage string) ([]uint64, error)
	// MarkBookPending sets the book status to PENDING.
	MarkBookPending(ctx context.Context, bookID uint64) error
	// MarkBookBorrowed sets status BORROWED, records borrower and due
	// date, and decrements available_copies floored at zero.
	MarkBookBorrowed(ctx context.Context, bookID, borrowerID uint64, due time.Time) error
	// ReleaseBook clears borrower/due date and sets the given status.
	// When restock is true it also increments available_copies capped
	// at total_copies.
	ReleaseBook(ctx context.Context, bookID uint64, status string, restock bool) error
	// SetBookDueDate updates only the book's due date.
	SetBookDueDate(ctx context.Context, bookID uint64, due time.Time) error
	// InsertNotification appends a row to the requester's inbox.
	InsertNotification(ctx context.Context, requestID uint64, typ string, message *string) error
}

// TxRunner executes fn against a Store bound to a single transaction.
// A non-nil error from fn rolls every mutation back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(Store) error) error
}

// Service drives the borrow-request lifecycle.  It holds no state of
// its own; each operation is one transaction against the store.
type Service struct {
	tx  TxRunner
	now func() time.Time
}

// New returns a Service using the given transaction runner.
func New(tx TxRunner) *Service {
	return &Service{tx: tx, now: func() time.Time { return time.Now().UTC() }}
}

// NewAt is New with an injectable clock, used by tests.
func NewAt(tx TxRunner, now func() time.Time) *Service {
	return &Service{tx: tx, now: now}
}

// Create registers a new PENDING request for requesterID on bookID.
// Preconditions: the book exists, has an owner with a phone number,
// is not the requester's own, is AVAILABLE, and the requester has no
// other PENDING request for it.  On success the book moves to PENDING
// and the returned request carries the generated WhatsApp link.
func (s *Service) Create(ctx context.Context, requesterID, bookID uint64, message *string) (*model.BorrowRequest, error) {
	var created *model.BorrowRequest
	err := s.tx.RunInTx(ctx, func(st Store) error {
		book, err := st.BookByID(ctx, bookID)
		if err != nil {
			return err
		}
		if book.OwnerID == nil {
			return ErrNoOwner
		}
		if *book.OwnerID == requesterID {
			return ErrOwnBook
		}
		owner, err := st.UserByID(ctx, *book.OwnerID)
		if err != nil {
			return err
		}
		if owner.PhoneNumber == nil || utils.NormalizePhone(*owner.PhoneNumber) == "" {
			return ErrOwnerUnreachable
		}
		if book.Status != model.BookAvailable {
			return ErrNotAvailable
		}
		dup, err := st.HasPendingRequest(ctx, bookID, requesterID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicatePending
		}
		requester, err := st.UserByID(ctx, requesterID)
		if err != nil {
			return err
		}
		note := ""
		if message != nil {
			note = *message
		}
		link := utils.WhatsAppLink(*owner.PhoneNumber, requester.Name, book.Title, note)
		req := &model.BorrowRequest{
			BookID:      bookID,
			RequesterID: requesterID,
			Status:      model.RequestPending,
			Message:     message,
			WhatsAppURL: &link,
		}
		if err := st.InsertRequest(ctx, req); err != nil {
			return err
		}
		if err := st.MarkBookPending(ctx, bookID); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Approve records the owner's approval of a PENDING request.  In one
// transaction the request becomes APPROVED, the book becomes BORROWED
// with the requester as borrower and available_copies decremented
// (floored at zero), and every competing PENDING request on the book
// is cancelled.  The model tracks a single borrower slot, so rival
// requests cannot stay queued once one is approved.
func (s *Service) Approve(ctx context.Context, ownerID, requestID uint64, due time.Time, message *string) (*model.BorrowRequest, error) {
	if !due.After(s.now()) {
		return nil, ErrPastDueDate
	}
	var approved *model.BorrowRequest
	err := s.tx.RunInTx(ctx, func(st Store) error {
		req, book, err := s.loadForOwner(ctx, st, ownerID, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.RequestPending {
			return ErrAlreadyProcessed
		}
		decidedAt := s.now()
		if err := st.UpdateRequestDecision(ctx, req.ID, model.RequestApproved, message, decidedAt); err != nil {
			return err
		}
		if err := st.MarkBookBorrowed(ctx, book.ID, req.RequesterID, due); err != nil {
			return err
		}
		cancelled, err := st.CancelSiblings(ctx, book.ID, req.ID, "The owner approved another request for this book.")
		if err != nil {
			return err
		}
		if err := st.InsertNotification(ctx, req.ID, model.NotifyApproved, message); err != nil {
			return err
		}
		reason := "The owner approved another request for this book."
		for _, sibID := range cancelled {
			if err := st.InsertNotification(ctx, sibID, model.NotifyCancelled, &reason); err != nil {
				return err
			}
		}
		req.Status = model.RequestApproved
		req.OwnerMessage = message
		req.OwnerDecisionAt = &decidedAt
		approved = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// Reject records the owner's rejection of a PENDING request.  When no
// other PENDING request remains on the book it reverts to UNAVAILABLE,
// AVAILABLE or RESERVED depending on lendable flag and copy count,
// with borrower and due date cleared.
func (s *Service) Reject(ctx context.Context, ownerID, requestID uint64, message *string) (*model.BorrowRequest, error) {
	var rejected *model.BorrowRequest
	err := s.tx.RunInTx(ctx, func(st Store) error {
		req, book, err := s.loadForOwner(ctx, st, ownerID, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.RequestPending {
			return ErrAlreadyProcessed
		}
		decidedAt := s.now()
		if err := st.UpdateRequestDecision(ctx, req.ID, model.RequestRejected, message, decidedAt); err != nil {
			return err
		}
		remaining, err := st.CountPendingForBook(ctx, book.ID, req.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := st.ReleaseBook(ctx, book.ID, book.ReleasedStatus(), false); err != nil {
				return err
			}
		}
		if err := st.InsertNotification(ctx, req.ID, model.NotifyRejected, message); err != nil {
			return err
		}
		req.Status = model.RequestRejected
		req.OwnerMessage = message
		req.OwnerDecisionAt = &decidedAt
		rejected = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// Complete marks an APPROVED request RETURNED.  The book gets one copy
// back (capped at total_copies), its status is recomputed and the
// borrower slot is cleared.
func (s *Service) Complete(ctx context.Context, ownerID, requestID uint64, message *string) (*model.BorrowRequest, error) {
	var completed *model.BorrowRequest
	err := s.tx.RunInTx(ctx, func(st Store) error {
		req, book, err := s.loadForOwner(ctx, st, ownerID, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.RequestApproved {
			return ErrNotApproved
		}
		if err := st.UpdateRequestStatus(ctx, req.ID, model.RequestReturned); err != nil {
			return err
		}
		// Recompute status with the returned copy restocked.
		restocked := *book
		if restocked.AvailableCopies < restocked.TotalCopies {
			restocked.AvailableCopies++
		}
		if err := st.ReleaseBook(ctx, book.ID, restocked.ReleasedStatus(), true); err != nil {
			return err
		}
		if err := st.InsertNotification(ctx, req.ID, model.NotifyReturned, message); err != nil {
			return err
		}
		req.Status = model.RequestReturned
		completed = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// Extend moves the due date of an APPROVED loan forward.  Only the
// book's due date changes; the request stays APPROVED.  The requester
// is notified with an EXTENDED event.
func (s *Service) Extend(ctx context.Context, ownerID, requestID uint64, due time.Time, message *string) (*model.BorrowRequest, error) {
	if !due.After(s.now()) {
		return nil, ErrPastDueDate
	}
	var extended *model.BorrowRequest
	err := s.tx.RunInTx(ctx, func(st Store) error {
		req, book, err := s.loadForOwner(ctx, st, ownerID, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.RequestApproved {
			return ErrNotApproved
		}
		if err := st.SetBookDueDate(ctx, book.ID, due); err != nil {
			return err
		}
		if err := st.InsertNotification(ctx, req.ID, model.NotifyExtended, message); err != nil {
			return err
		}
		extended = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return extended, nil
}

// Cancel lets a requester withdraw their own PENDING request.  The
// book is released by the same recompute rule as Reject when no other
// PENDING request remains.
func (s *Service) Cancel(ctx context.Context, requesterID, requestID uint64) (*model.BorrowRequest, error) {
	var cancelled *model.BorrowRequest
	err := s.tx.RunInTx(ctx, func(st Store) error {
		req, err := st.RequestByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RequesterID != requesterID {
			return ErrNotRequester
		}
		if req.Status != model.RequestPending {
			return ErrAlreadyProcessed
		}
		book, err := st.BookByID(ctx, req.BookID)
		if err != nil {
			return err
		}
		if err := st.UpdateRequestStatus(ctx, req.ID, model.RequestCancelled); err != nil {
			return err
		}
		remaining, err := st.CountPendingForBook(ctx, book.ID, req.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := st.ReleaseBook(ctx, book.ID, book.ReleasedStatus(), false); err != nil {
				return err
			}
		}
		req.Status = model.RequestCancelled
		cancelled = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// loadForOwner fetches a request and its book and verifies the caller
// owns the book.
func (s *Service) loadForOwner(ctx context.Context, st Store, ownerID, requestID uint64) (*model.BorrowRequest, *model.Book, error) {
	req, err := st.RequestByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	book, err := st.BookByID(ctx, req.BookID)
	if err != nil {
		return nil, nil, err
	}
	if book.OwnerID == nil || *book.OwnerID != ownerID {
		return nil, nil, ErrNotOwner
	}
	return req, book, nil
}
