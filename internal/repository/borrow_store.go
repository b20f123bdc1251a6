package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/meetread/meetread/internal/model"
	"github.com/meetread/meetread/internal/service/borrow"
)

// BorrowTxRunner adapts *sql.DB to the lifecycle service's TxRunner:
// it opens a transaction, hands the service a Store bound to it, and
// commits or rolls back depending on the callback's error.  The
// database's transaction isolation is the only guard against
// concurrent transitions; SELECT ... FOR UPDATE in the store methods
// serializes rival approvals on the same book row.
type BorrowTxRunner struct{ DB *sql.DB }

func NewBorrowTxRunner(db *sql.DB) *BorrowTxRunner { return &BorrowTxRunner{DB: db} }

// RunInTx executes fn against a transaction-bound store.  Any error
// from fn rolls back every mutation; there is no partial-success state
// for a lifecycle transition.
func (r *BorrowTxRunner) RunInTx(ctx context.Context, fn func(borrow.Store) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&borrowStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// borrowStore implements borrow.Store over a single transaction.
type borrowStore struct{ tx *sql.Tx }

func (s *borrowStore) BookByID(ctx context.Context, id uint64) (*model.Book, error) {
	b, err := scanBook(s.tx.QueryRowContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE id=? LIMIT 1 FOR UPDATE", id))
	if err == sql.ErrNoRows {
		return nil, borrow.ErrBookNotFound
	}
	return b, err
}

func (s *borrowStore) UserByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(s.tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *borrowStore) RequestByID(ctx context.Context, id uint64) (*model.BorrowRequest, error) {
	req, err := scanRequest(s.tx.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM borrow_requests r WHERE r.id=? LIMIT 1 FOR UPDATE", id))
	if err == sql.ErrNoRows {
		return nil, borrow.ErrRequestNotFound
	}
	return req, err
}

func (s *borrowStore) HasPendingRequest(ctx context.Context, bookID, requesterID uint64) (bool, error) {
	var n int
	err := s.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM borrow_requests WHERE book_id=? AND requester_id=? AND status=?",
		bookID, requesterID, model.RequestPending).Scan(&n)
	return n > 0, err
}

func (s *borrowStore) CountPendingForBook(ctx context.Context, bookID, exceptRequestID uint64) (int, error) {
	var n int
	err := s.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM borrow_requests WHERE book_id=? AND status=? AND id<>?",
		bookID, model.RequestPending, exceptRequestID).Scan(&n)
	return n, err
}

func (s *borrowStore) InsertRequest(ctx context.Context, req *model.BorrowRequest) error {
	res, err := s.tx.ExecContext(ctx,
		`INSERT INTO borrow_requests (book_id, requester_id, status, message, whatsapp_url)
		 VALUES (?,?,?,?,?)`,
		req.BookID, req.RequesterID, req.Status, req.Message, req.WhatsAppURL)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	return nil
}

func (s *borrowStore) UpdateRequestDecision(ctx context.Context, id uint64, status string, ownerMessage *string, decidedAt time.Time) error {
	_, err := s.tx.ExecContext(ctx,
		"UPDATE borrow_requests SET status=?, owner_message=?, owner_decision_at=? WHERE id=?",
		status, ownerMessage, decidedAt, id)
	return err
}

func (s *borrowStore) UpdateRequestStatus(ctx context.Context, id uint64, status string) error {
	_, err := s.tx.ExecContext(ctx,
		"UPDATE borrow_requests SET status=? WHERE id=?", status, id)
	return err
}

func (s *borrowStore) CancelSiblings(ctx context.Context, bookID, exceptRequestID uint64, ownerMessage string) ([]uint64, error) {
	rows, err := s.tx.QueryContext(ctx,
		"SELECT id FROM borrow_requests WHERE book_id=? AND status=? AND id<>? FOR UPDATE",
		bookID, model.RequestPending, exceptRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = s.tx.ExecContext(ctx,
		"UPDATE borrow_requests SET status=?, owner_message=? WHERE book_id=? AND status=? AND id<>?",
		model.RequestCancelled, ownerMessage, bookID, model.RequestPending, exceptRequestID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *borrowStore) MarkBookPending(ctx context.Context, bookID uint64) error {
	_, err := s.tx.ExecContext(ctx,
		"UPDATE books SET status=? WHERE id=?", model.BookPending, bookID)
	return err
}

func (s *borrowStore) MarkBookBorrowed(ctx context.Context, bookID, borrowerID uint64, due time.Time) error {
	_, err := s.tx.ExecContext(ctx,
		`UPDATE books SET status=?, borrower_id=?, due_date=?,
		 available_copies = GREATEST(available_copies - 1, 0) WHERE id=?`,
		model.BookBorrowed, borrowerID, due, bookID)
	return err
}

func (s *borrowStore) ReleaseBook(ctx context.Context, bookID uint64, status string, restock bool) error {
	q := "UPDATE books SET status=?, borrower_id=NULL, due_date=NULL WHERE id=?"
	if restock {
		q = `UPDATE books SET status=?, borrower_id=NULL, due_date=NULL,
		     available_copies = LEAST(available_copies + 1, total_copies) WHERE id=?`
	}
	_, err := s.tx.ExecContext(ctx, q, status, bookID)
	return err
}

func (s *borrowStore) SetBookDueDate(ctx context.Context, bookID uint64, due time.Time) error {
	_, err := s.tx.ExecContext(ctx,
		"UPDATE books SET due_date=? WHERE id=?", due, bookID)
	return err
}

func (s *borrowStore) InsertNotification(ctx context.Context, requestID uint64, typ string, message *string) error {
	_, err := s.tx.ExecContext(ctx,
		"INSERT INTO borrow_notifications (request_id, type, message) VALUES (?,?,?)",
		requestID, typ, message)
	return err
}
