package repository

import (
	"context"
	"database/sql"

	"github.com/meetread/meetread/internal/model"
)

// RequestRepo provides read access to borrow requests for listing
// endpoints.  All writes happen inside the lifecycle transaction via
// BorrowStore.
type RequestRepo struct{ DB *sql.DB }

func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{DB: db} }

const requestColumns = `r.id, r.book_id, r.requester_id, r.status, r.message, r.owner_message,
r.owner_decision_at, r.whatsapp_url, r.created_at, r.updated_at`

// RequestDetail is a borrow request joined with the book and the
// counterpart user, shaped for list responses.
type RequestDetail struct {
	model.BorrowRequest
	BookTitle     string  `json:"book_title"`
	BookAuthor    string  `json:"book_author"`
	RequesterName *string `json:"requester_name,omitempty"`
	OwnerName     *string `json:"owner_name,omitempty"`
}

// GetByID fetches a single request or ErrRequestNotFound.
func (r *RequestRepo) GetByID(ctx context.Context, id uint64) (*model.BorrowRequest, error) {
	req, err := scanRequest(r.DB.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM borrow_requests r WHERE r.id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListByRequester returns the user's outgoing requests, newest first.
func (r *RequestRepo) ListByRequester(ctx context.Context, requesterID uint64) ([]RequestDetail, error) {
	const q = `SELECT ` + requestColumns + `, b.title, b.author, u.name
	           FROM borrow_requests r
	           JOIN books b ON b.id = r.book_id
	           LEFT JOIN users u ON u.id = b.owner_id
	           WHERE r.requester_id = ?
	           ORDER BY r.created_at DESC`
	rows, err := r.DB.QueryContext(ctx, q, requesterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]RequestDetail, 0)
	for rows.Next() {
		var d RequestDetail
		var ownerName sql.NullString
		req, err := scanRequestInto(rows, &d.BookTitle, &d.BookAuthor, &ownerName)
		if err != nil {
			return nil, err
		}
		d.BorrowRequest = *req
		if ownerName.Valid {
			v := ownerName.String
			d.OwnerName = &v
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ListIncoming returns requests targeting books the given user owns,
// newest first.  These are the requests the owner decides on.
func (r *RequestRepo) ListIncoming(ctx context.Context, ownerID uint64) ([]RequestDetail, error) {
	const q = `SELECT ` + requestColumns + `, b.title, b.author, u.name
	           FROM borrow_requests r
	           JOIN books b ON b.id = r.book_id
	           JOIN users u ON u.id = r.requester_id
	           WHERE b.owner_id = ?
	           ORDER BY r.created_at DESC`
	rows, err := r.DB.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]RequestDetail, 0)
	for rows.Next() {
		var d RequestDetail
		var requesterName sql.NullString
		req, err := scanRequestInto(rows, &d.BookTitle, &d.BookAuthor, &requesterName)
		if err != nil {
			return nil, err
		}
		d.BorrowRequest = *req
		if requesterName.Valid {
			v := requesterName.String
			d.RequesterName = &v
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func scanRequest(row rowScanner) (*model.BorrowRequest, error) {
	return scanRequestInto(row)
}

// scanRequestInto scans the shared request columns and then any extra
// destinations appended by a joined query.
func scanRequestInto(row rowScanner, extra ...interface{}) (*model.BorrowRequest, error) {
	var req model.BorrowRequest
	var message, ownerMessage, waURL sql.NullString
	var decidedAt sql.NullTime
	dest := []interface{}{&req.ID, &req.BookID, &req.RequesterID, &req.Status,
		&message, &ownerMessage, &decidedAt, &waURL, &req.CreatedAt, &req.UpdatedAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if message.Valid {
		v := message.String
		req.Message = &v
	}
	if ownerMessage.Valid {
		v := ownerMessage.String
		req.OwnerMessage = &v
	}
	if decidedAt.Valid {
		v := decidedAt.Time
		req.OwnerDecisionAt = &v
	}
	if waURL.Valid {
		v := waURL.String
		req.WhatsAppURL = &v
	}
	return &req, nil
}
