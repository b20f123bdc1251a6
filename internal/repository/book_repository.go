package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/meetread/meetread/internal/model"
)

// BookRepo provides CRUD operations for the 'books' table.  Lifecycle
// transitions that touch books together with borrow requests go
// through the transactional BorrowStore instead; this repository
// covers catalog browsing and owner/admin management.
type BookRepo struct{ DB *sql.DB }

func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{DB: db} }

const bookColumns = `id,title,author,category,isbn,published_year,total_copies,available_copies,
cover_image_url,description,lendable,owner_id,status,borrower_id,due_date,created_at,updated_at`

// Create inserts a new book.  For user collections ownerID references
// the owner; admin catalog books pass nil.  New books start with all
// copies available and status derived from the lendable flag.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	status := model.BookAvailable
	if !b.Lendable {
		status = model.BookUnavailable
	}
	if b.TotalCopies <= 0 {
		b.TotalCopies = 1
	}
	b.AvailableCopies = b.TotalCopies
	b.Status = status
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO books (title, author, category, isbn, published_year, total_copies,
		 available_copies, cover_image_url, description, lendable, owner_id, status)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.Title, b.Author, b.Category, b.ISBN, b.PublishedYear, b.TotalCopies,
		b.AvailableCopies, b.CoverImageURL, b.Description, b.Lendable, b.OwnerID, status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID fetches a single book or ErrBookNotFound.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
	b, err := scanBook(r.DB.QueryRowContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// BrowseFilter narrows the public catalog listing.  Empty fields match
// everything.
type BrowseFilter struct {
	Query    string // substring match on title or author
	Category string // exact category match
	Status   string // exact status match
}

// List returns catalog books matching the filter, newest first.
func (r *BookRepo) List(ctx context.Context, f BrowseFilter) ([]model.Book, error) {
	q := "SELECT " + bookColumns + " FROM books"
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if s := strings.TrimSpace(f.Query); s != "" {
		conds = append(conds, "(title LIKE ? OR author LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	if s := strings.TrimSpace(f.Category); s != "" {
		conds = append(conds, "category = ?")
		args = append(args, s)
	}
	if s := strings.TrimSpace(f.Status); s != "" {
		conds = append(conds, "status = ?")
		args = append(args, strings.ToUpper(s))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBooks(rows)
}

// ListByOwner returns the books of one owner's collection.
func (r *BookRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Book, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE owner_id=? ORDER BY created_at DESC", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBooks(rows)
}

// ListCatalog returns admin-owned catalog books (owner_id IS NULL).
func (r *BookRepo) ListCatalog(ctx context.Context) ([]model.Book, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE owner_id IS NULL ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBooks(rows)
}

// Update rewrites the descriptive fields of a book.  Availability
// bookkeeping is preserved: available_copies is adjusted by the same
// delta as total_copies and clamped to the valid range.  When ownerID
// is non-nil the update only applies to that owner's book, otherwise
// (admin) ownership is not checked.
func (r *BookRepo) Update(ctx context.Context, b *model.Book, ownerID *uint64) error {
	cur, err := r.GetByID(ctx, b.ID)
	if err != nil {
		return err
	}
	if ownerID != nil && (cur.OwnerID == nil || *cur.OwnerID != *ownerID) {
		return ErrForbidden
	}
	if b.TotalCopies <= 0 {
		b.TotalCopies = cur.TotalCopies
	}
	avail := cur.AvailableCopies + (b.TotalCopies - cur.TotalCopies)
	if avail < 0 {
		avail = 0
	}
	if avail > b.TotalCopies {
		avail = b.TotalCopies
	}
	_, err = r.DB.ExecContext(ctx,
		`UPDATE books SET title=?, author=?, category=?, isbn=?, published_year=?,
		 total_copies=?, available_copies=?, cover_image_url=?, description=? WHERE id=?`,
		b.Title, b.Author, b.Category, b.ISBN, b.PublishedYear,
		b.TotalCopies, avail, b.CoverImageURL, b.Description, b.ID)
	return err
}

// SetLendable flips the owner-controlled lendable flag.  A book with
// no request holding it follows the flag immediately: lending off
// forces UNAVAILABLE, lending on restores AVAILABLE/RESERVED from the
// copy count.  Books in PENDING or BORROWED keep their status; the
// lifecycle recomputes it when the outstanding request resolves.
func (r *BookRepo) SetLendable(ctx context.Context, id, ownerID uint64, lendable bool) (*model.Book, error) {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.OwnerID == nil || *cur.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	cur.Lendable = lendable
	status := cur.Status
	if cur.Status != model.BookPending && cur.Status != model.BookBorrowed {
		status = cur.ReleasedStatus()
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE books SET lendable=?, status=? WHERE id=?", lendable, status, id)
	if err != nil {
		return nil, err
	}
	cur.Status = status
	return cur, nil
}

// Delete removes a book.  Books with any borrow request history are
// kept for audit and reported as ErrConflict.  When ownerID is non-nil
// only that owner's book may be deleted.
func (r *BookRepo) Delete(ctx context.Context, id uint64, ownerID *uint64) error {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ownerID != nil && (cur.OwnerID == nil || *cur.OwnerID != *ownerID) {
		return ErrForbidden
	}
	var n int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM borrow_requests WHERE book_id=?", id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	_, err = r.DB.ExecContext(ctx, "DELETE FROM books WHERE id=?", id)
	return err
}

func collectBooks(rows *sql.Rows) ([]model.Book, error) {
	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

func scanBook(row rowScanner) (*model.Book, error) {
	var b model.Book
	var category, isbn, cover, desc sql.NullString
	var year sql.NullInt64
	var ownerID, borrowerID sql.NullInt64
	var due sql.NullTime
	err := row.Scan(&b.ID, &b.Title, &b.Author, &category, &isbn, &year,
		&b.TotalCopies, &b.AvailableCopies, &cover, &desc, &b.Lendable,
		&ownerID, &b.Status, &borrowerID, &due, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		v := category.String
		b.Category = &v
	}
	if isbn.Valid {
		v := isbn.String
		b.ISBN = &v
	}
	if year.Valid {
		v := int(year.Int64)
		b.PublishedYear = &v
	}
	if cover.Valid {
		v := cover.String
		b.CoverImageURL = &v
	}
	if desc.Valid {
		v := desc.String
		b.Description = &v
	}
	if ownerID.Valid {
		v := uint64(ownerID.Int64)
		b.OwnerID = &v
	}
	if borrowerID.Valid {
		v := uint64(borrowerID.Int64)
		b.BorrowerID = &v
	}
	if due.Valid {
		v := due.Time
		b.DueDate = &v
	}
	return &b, nil
}
