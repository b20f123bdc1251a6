package repository

import (
	"context"
	"database/sql"

	"github.com/meetread/meetread/internal/model"
)

// NotificationRepo reads the requester inbox.  Rows are inserted only
// by the lifecycle transaction (BorrowStore) and never mutated.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// NotificationDetail joins a notification with its request's book
// title for display.
type NotificationDetail struct {
	model.BorrowNotification
	BookTitle string `json:"book_title"`
}

// ListForUser returns notifications for every request the user has
// made, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID uint64) ([]NotificationDetail, error) {
	const q = `SELECT n.id, n.request_id, n.type, n.message, n.created_at, b.title
	           FROM borrow_notifications n
	           JOIN borrow_requests r ON r.id = n.request_id
	           JOIN books b ON b.id = r.book_id
	           WHERE r.requester_id = ?
	           ORDER BY n.created_at DESC`
	rows, err := r.DB.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]NotificationDetail, 0)
	for rows.Next() {
		var d NotificationDetail
		var message sql.NullString
		if err := rows.Scan(&d.ID, &d.RequestID, &d.Type, &message, &d.CreatedAt, &d.BookTitle); err != nil {
			return nil, err
		}
		if message.Valid {
			v := message.String
			d.Message = &v
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
