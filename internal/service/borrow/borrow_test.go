package borrow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetread/meetread/internal/model"
)

// fakeStore is an in-memory Store mirroring the SQL adapter's
// semantics closely enough to drive the state machine.
type fakeStore struct {
	books    map[uint64]*model.Book
	users    map[uint64]*model.User
	requests map[uint64]*model.BorrowRequest
	notes    []fakeNote
	nextID   uint64
}

type fakeNote struct {
	RequestID uint64
	Type      string
	Message   *string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		books:    map[uint64]*model.Book{},
		users:    map[uint64]*model.User{},
		requests: map[uint64]*model.BorrowRequest{},
		nextID:   1,
	}
}

func (f *fakeStore) BookByID(_ context.Context, id uint64) (*model.Book, error) {
	b, ok := f.books[id]
	if !ok {
		return nil, ErrBookNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) UserByID(_ context.Context, id uint64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errUserMissing
	}
	cp := *u
	return &cp, nil
}

var errUserMissing = errors.New("fake store: no such user")

func (f *fakeStore) RequestByID(_ context.Context, id uint64) (*model.BorrowRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) HasPendingRequest(_ context.Context, bookID, requesterID uint64) (bool, error) {
	for _, r := range f.requests {
		if r.BookID == bookID && r.RequesterID == requesterID && r.Status == model.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CountPendingForBook(_ context.Context, bookID, exceptRequestID uint64) (int, error) {
	n := 0
	for _, r := range f.requests {
		if r.BookID == bookID && r.ID != exceptRequestID && r.Status == model.RequestPending {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertRequest(_ context.Context, req *model.BorrowRequest) error {
	req.ID = f.nextID
	f.nextID++
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateRequestDecision(_ context.Context, id uint64, status string, ownerMessage *string, decidedAt time.Time) error {
	r := f.requests[id]
	r.Status = status
	r.OwnerMessage = ownerMessage
	r.OwnerDecisionAt = &decidedAt
	return nil
}

func (f *fakeStore) UpdateRequestStatus(_ context.Context, id uint64, status string) error {
	f.requests[id].Status = status
	return nil
}

func (f *fakeStore) CancelSiblings(_ context.Context, bookID, exceptRequestID uint64, ownerMessage string) ([]uint64, error) {
	var ids []uint64
	for _, r := range f.requests {
		if r.BookID == bookID && r.ID != exceptRequestID && r.Status == model.RequestPending {
			r.Status = model.RequestCancelled
			msg := ownerMessage
			r.OwnerMessage = &msg
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) MarkBookPending(_ context.Context, bookID uint64) error {
	f.books[bookID].Status = model.BookPending
	return nil
}

func (f *fakeStore) MarkBookBorrowed(_ context.Context, bookID, borrowerID uint64, due time.Time) error {
	b := f.books[bookID]
	b.Status = model.BookBorrowed
	b.BorrowerID = &borrowerID
	b.DueDate = &due
	if b.AvailableCopies > 0 {
		b.AvailableCopies--
	}
	return nil
}

func (f *fakeStore) ReleaseBook(_ context.Context, bookID uint64, status string, restock bool) error {
	b := f.books[bookID]
	b.Status = status
	b.BorrowerID = nil
	b.DueDate = nil
	if restock && b.AvailableCopies < b.TotalCopies {
		b.AvailableCopies++
	}
	return nil
}

func (f *fakeStore) SetBookDueDate(_ context.Context, bookID uint64, due time.Time) error {
	f.books[bookID].DueDate = &due
	return nil
}

func (f *fakeStore) InsertNotification(_ context.Context, requestID uint64, typ string, message *string) error {
	f.notes = append(f.notes, fakeNote{RequestID: requestID, Type: typ, Message: message})
	return nil
}

// fakeTx runs fn directly against the fake store and restores a
// snapshot when fn fails, matching a rolled back SQL transaction.
type fakeTx struct{ st *fakeStore }

func (t *fakeTx) RunInTx(ctx context.Context, fn func(Store) error) error {
	snap := t.snapshot()
	if err := fn(t.st); err != nil {
		t.restore(snap)
		return err
	}
	return nil
}

func (t *fakeTx) snapshot() *fakeStore {
	cp := newFakeStore()
	cp.nextID = t.st.nextID
	for id, b := range t.st.books {
		b2 := *b
		cp.books[id] = &b2
	}
	for id, u := range t.st.users {
		u2 := *u
		cp.users[id] = &u2
	}
	for id, r := range t.st.requests {
		r2 := *r
		cp.requests[id] = &r2
	}
	cp.notes = append(cp.notes, t.st.notes...)
	return cp
}

func (t *fakeTx) restore(snap *fakeStore) { *t.st = *snap }

func strptr(s string) *string { return &s }
func u64ptr(v uint64) *uint64 { return &v }

// fixture seeds an owner (id 1, with phone), a requester (id 2) and a
// lendable single-copy book (id 10) owned by user 1.
func fixture() (*fakeStore, *Service) {
	st := newFakeStore()
	st.users[1] = &model.User{ID: 1, Name: "Olivia Owner", PhoneNumber: strptr("+49 170 1234567")}
	st.users[2] = &model.User{ID: 2, Name: "Rami Reader"}
	st.users[3] = &model.User{ID: 3, Name: "Third Reader"}
	st.books[10] = &model.Book{
		ID: 10, Title: "The Go Programming Language", Author: "Donovan & Kernighan",
		TotalCopies: 1, AvailableCopies: 1, Lendable: true,
		OwnerID: u64ptr(1), Status: model.BookAvailable,
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewAt(&fakeTx{st: st}, func() time.Time { return now })
	return st, svc
}

func futureDue() time.Time {
	return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
}

func TestCreateRequest(t *testing.T) {
	st, svc := fixture()

	req, err := svc.Create(context.Background(), 2, 10, strptr("weekend read?"))
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, req.Status)
	require.NotNil(t, req.WhatsAppURL)
	assert.True(t, strings.HasPrefix(*req.WhatsAppURL, "https://wa.me/491701234567?text="))
	assert.Contains(t, *req.WhatsAppURL, "text=")
	assert.Equal(t, model.BookPending, st.books[10].Status)
	// Copies are untouched until approval.
	assert.Equal(t, 1, st.books[10].AvailableCopies)
}

func TestCreateRequestPreconditions(t *testing.T) {
	t.Run("missing book", func(t *testing.T) {
		_, svc := fixture()
		_, err := svc.Create(context.Background(), 2, 99, nil)
		assert.ErrorIs(t, err, ErrBookNotFound)
	})

	t.Run("own book", func(t *testing.T) {
		_, svc := fixture()
		_, err := svc.Create(context.Background(), 1, 10, nil)
		assert.ErrorIs(t, err, ErrOwnBook)
	})

	t.Run("catalog book without owner", func(t *testing.T) {
		st, svc := fixture()
		st.books[10].OwnerID = nil
		_, err := svc.Create(context.Background(), 2, 10, nil)
		assert.ErrorIs(t, err, ErrNoOwner)
	})

	t.Run("owner without phone", func(t *testing.T) {
		st, svc := fixture()
		st.users[1].PhoneNumber = nil
		_, err := svc.Create(context.Background(), 2, 10, nil)
		assert.ErrorIs(t, err, ErrOwnerUnreachable)
	})

	t.Run("book not available", func(t *testing.T) {
		st, svc := fixture()
		st.books[10].Status = model.BookBorrowed
		_, err := svc.Create(context.Background(), 2, 10, nil)
		assert.ErrorIs(t, err, ErrNotAvailable)
	})

	t.Run("duplicate pending", func(t *testing.T) {
		st, svc := fixture()
		_, err := svc.Create(context.Background(), 2, 10, nil)
		require.NoError(t, err)
		// Requesting again while the first request is still pending.
		st.books[10].Status = model.BookAvailable
		_, err = svc.Create(context.Background(), 2, 10, nil)
		assert.ErrorIs(t, err, ErrDuplicatePending)
	})
}

func TestApprove(t *testing.T) {
	st, svc := fixture()
	req, err := svc.Create(context.Background(), 2, 10, nil)
	require.NoError(t, err)

	note := strptr("enjoy")
	approved, err := svc.Approve(context.Background(), 1, req.ID, futureDue(), note)
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, approved.Status)
	require.NotNil(t, approved.OwnerDecisionAt)

	b := st.books[10]
	assert.Equal(t, model.BookBorrowed, b.Status)
	require.NotNil(t, b.BorrowerID)
	assert.Equal(t, uint64(2), *b.BorrowerID)
	assert.Equal(t, 0, b.AvailableCopies)
	require.NotNil(t, b.DueDate)
	assert.Equal(t, futureDue(), *b.DueDate)

	require.Len(t, st.notes, 1)
	assert.Equal(t, model.NotifyApproved, st.notes[0].Type)
}

func TestApproveErrors(t *testing.T) {
	t.Run("past due date", func(t *testing.T) {
		_, svc := fixture()
		past := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		_, err := svc.Approve(context.Background(), 1, 1, past, nil)
		assert.ErrorIs(t, err, ErrPastDueDate)
	})

	t.Run("not the owner", func(t *testing.T) {
		_, svc := fixture()
		req, err := svc.Create(context.Background(), 2, 10, nil)
		require.NoError(t, err)
		_, err = svc.Approve(context.Background(), 2, req.ID, futureDue(), nil)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("already processed", func(t *testing.T) {
		_, svc := fixture()
		req, err := svc.Create(context.Background(), 2, 10, nil)
		require.NoError(t, err)
		_, err = svc.Approve(context.Background(), 1, req.ID, futureDue(), nil)
		require.NoError(t, err)
		_, err = svc.Approve(context.Background(), 1, req.ID, futureDue(), nil)
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})

	t.Run("missing request", func(t *testing.T) {
		_, svc := fixture()
		_, err := svc.Approve(context.Background(), 1, 404, futureDue(), nil)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestApproveCancelsSiblings(t *testing.T) {
	st, svc := fixture()
	// Two pending requests on the same single-copy book, as left
	// behind by racing creates.
	st.requests[1] = &model.BorrowRequest{ID: 1, BookID: 10, RequesterID: 2, Status: model.RequestPending}
	st.requests[2] = &model.BorrowRequest{ID: 2, BookID: 10, RequesterID: 3, Status: model.RequestPending}
	st.nextID = 3
	st.books[10].Status = model.BookPending

	_, err := svc.Approve(context.Background(), 1, 1, futureDue(), nil)
	require.NoError(t, err)

	assert.Equal(t, model.RequestApproved, st.requests[1].Status)
	assert.Equal(t, model.RequestCancelled, st.requests[2].Status)
	require.NotNil(t, st.requests[2].OwnerMessage)
	assert.Contains(t, *st.requests[2].OwnerMessage, "approved another request")

	// One APPROVED notification plus one CANCELLED for the loser.
	require.Len(t, st.notes, 2)
	assert.Equal(t, model.NotifyApproved, st.notes[0].Type)
	assert.Equal(t, model.NotifyCancelled, st.notes[1].Type)
	assert.Equal(t, uint64(2), st.notes[1].RequestID)
}

func TestReject(t *testing.T) {
	st, svc := fixture()
	req, err := svc.Create(context.Background(), 2, 10, strptr("please"))
	require.NoError(t, err)

	reason := strptr("lent it to a friend already")
	rejected, err := svc.Reject(context.Background(), 1, req.ID, reason)
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, rejected.Status)
	assert.Equal(t, reason, rejected.OwnerMessage)

	// Last pending request gone: single available copy, so AVAILABLE.
	b := st.books[10]
	assert.Equal(t, model.BookAvailable, b.Status)
	assert.Equal(t, 1, b.AvailableCopies)
	assert.Nil(t, b.BorrowerID)
	assert.Nil(t, b.DueDate)

	require.Len(t, st.notes, 1)
	assert.Equal(t, model.NotifyRejected, st.notes[0].Type)
}

func TestRejectKeepsBookPendingWhileSiblingsRemain(t *testing.T) {
	st, svc := fixture()
	st.requests[1] = &model.BorrowRequest{ID: 1, BookID: 10, RequesterID: 2, Status: model.RequestPending}
	st.requests[2] = &model.BorrowRequest{ID: 2, BookID: 10, RequesterID: 3, Status: model.RequestPending}
	st.nextID = 3
	st.books[10].Status = model.BookPending

	_, err := svc.Reject(context.Background(), 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookPending, st.books[10].Status)
	assert.Equal(t, model.RequestPending, st.requests[2].Status)
}

func TestRejectNotLendableBookGoesUnavailable(t *testing.T) {
	st, svc := fixture()
	req, err := svc.Create(context.Background(), 2, 10, nil)
	require.NoError(t, err)

	// Owner switched lending off while the request was pending.
	st.books[10].Lendable = false
	_, err = svc.Reject(context.Background(), 1, req.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookUnavailable, st.books[10].Status)
}

func TestComplete(t *testing.T) {
	st, svc := fixture()
	req, err := svc.Create(context.Background(), 2, 10, nil)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), 1, req.ID, futureDue(), nil)
	require.NoError(t, err)

	completed, err := svc.Complete(context.Background(), 1, req.ID, strptr("thanks for returning"))
	require.NoError(t, err)
	assert.Equal(t, model.RequestReturned, completed.Status)

	b := st.books[10]
	assert.Equal(t, model.BookAvailable, b.Status)
	assert.Equal(t, 1, b.AvailableCopies)
	assert.Nil(t, b.BorrowerID)
	assert.Nil(t, b.DueDate)

	last := st.notes[len(st.notes)-1]
	assert.Equal(t, model.NotifyReturned, last.Type)
}

func TestCompleteRequiresApproved(t *testing.T) {
	_, svc := fixture()
	req, err := svc.Create(context.Background(), 2, 10, nil)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), 1, req.ID, nil)
	assert.ErrorIs(t, err, ErrNotApproved)
}

func TestCompleteCapsRestockAtTotal(t *testing.T) {
	st, svc := fixture()
	req, err := svc.Create(context.Background(), 2, 10, nil)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), 1, req.ID, futureDue(), nil)
	require.NoError(t, err)

	// Copies already back at total, e.g. after a manual correction.
	st.books[10].AvailableCopies = st.books[10].TotalCopies
	_, err = svc.Complete(context.Background(), 1, req.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, st.books[10].TotalCopies, st.books[10].AvailableCopies)
}

func TestApproveFloorsCopiesAtZero(t *testing.T) {
	st, svc := fixture()
	st.requests[1] = &model.BorrowRequest{ID: 1, BookID: 10, RequesterID: 2, Status: model.RequestPending}
	st.nextID = 2
	st.books[10].Status = model.BookPending
	st.books[10].AvailableCopies = 0

	_, err := svc.Approve(context.Background(), 1, 1, futureDue(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, st.books[10].AvailableCopies)
}

func TestExtend(t *testing.T) {
	st, svc := fixture()
	req, err := svc.Create(context.Background(), 2, 10, nil)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), 1, req.ID, futureDue(), nil)
	require.NoError(t, err)

	later := futureDue().AddDate(0, 0, 14)
	extended, err := svc.Extend(context.Background(), 1, req.ID, later, strptr("two more weeks"))
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, extended.Status)

	b := st.books[10]
	require.NotNil(t, b.DueDate)
	assert.Equal(t, later, *b.DueDate)
	assert.Equal(t, model.BookBorrowed, b.Status)

	last := st.notes[len(st.notes)-1]
	assert.Equal(t, model.NotifyExtended, last.Type)
}

func TestExtendErrors(t *testing.T) {
	t.Run("past due date", func(t *testing.T) {
		_, svc := fixture()
		past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err := svc.Extend(context.Background(), 1, 1, past, nil)
		assert.ErrorIs(t, err, ErrPastDueDate)
	})

	t.Run("not approved", func(t *testing.T) {
		_, svc := fixture()
		req, err := svc.Create(context.Background(), 2, 10, nil)
		require.NoError(t, err)
		_, err = svc.Extend(context.Background(), 1, req.ID, futureDue(), nil)
		assert.ErrorIs(t, err, ErrNotApproved)
	})
}

func TestCancel(t *testing.T) {
	st, svc := fixture()
	req, err := svc.Create(context.Background(), 2, 10, nil)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), 2, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestCancelled, cancelled.Status)
	assert.Equal(t, model.BookAvailable, st.books[10].Status)
	// Withdrawing your own request does not notify anyone.
	assert.Empty(t, st.notes)
}

func TestCancelErrors(t *testing.T) {
	t.Run("someone else's request", func(t *testing.T) {
		_, svc := fixture()
		req, err := svc.Create(context.Background(), 2, 10, nil)
		require.NoError(t, err)
		_, err = svc.Cancel(context.Background(), 3, req.ID)
		assert.ErrorIs(t, err, ErrNotRequester)
	})

	t.Run("already processed", func(t *testing.T) {
		_, svc := fixture()
		req, err := svc.Create(context.Background(), 2, 10, nil)
		require.NoError(t, err)
		_, err = svc.Approve(context.Background(), 1, req.ID, futureDue(), nil)
		require.NoError(t, err)
		_, err = svc.Cancel(context.Background(), 2, req.ID)
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})
}

// The canonical single-copy round trip: AVAILABLE -> PENDING ->
// BORROWED -> AVAILABLE with the copy count restored.
func TestSingleCopyRoundTrip(t *testing.T) {
	st, svc := fixture()

	req, err := svc.Create(context.Background(), 2, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookPending, st.books[10].Status)

	_, err = svc.Approve(context.Background(), 1, req.ID, futureDue(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookBorrowed, st.books[10].Status)
	assert.Equal(t, 0, st.books[10].AvailableCopies)

	_, err = svc.Complete(context.Background(), 1, req.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookAvailable, st.books[10].Status)
	assert.Equal(t, 1, st.books[10].AvailableCopies)
	assert.Equal(t, model.RequestReturned, st.requests[req.ID].Status)
}

// A failing precondition inside the transaction must leave no partial
// state behind.
func TestFailedTransitionRollsBack(t *testing.T) {
	st, svc := fixture()
	req, err := svc.Create(context.Background(), 2, 10, nil)
	require.NoError(t, err)

	// Wrong owner fails after the request row was already read.
	_, err = svc.Approve(context.Background(), 3, req.ID, futureDue(), nil)
	require.ErrorIs(t, err, ErrNotOwner)

	assert.Equal(t, model.RequestPending, st.requests[req.ID].Status)
	assert.Equal(t, model.BookPending, st.books[10].Status)
	assert.Equal(t, 1, st.books[10].AvailableCopies)
	assert.Empty(t, st.notes)
}
