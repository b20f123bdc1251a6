package model

import "time"

// Book status values.  A book's status must stay consistent with its
// lendable flag, its copy counts and any outstanding borrow requests:
// AVAILABLE means it can be requested, PENDING means a request is
// awaiting the owner's decision, BORROWED means an approved borrower
// currently holds it, RESERVED means all copies are out, and
// UNAVAILABLE means the owner has withdrawn it from lending.
const (
	BookAvailable   = "AVAILABLE"
	BookPending     = "PENDING"
	BookReserved    = "RESERVED"
	BookBorrowed    = "BORROWED"
	BookUnavailable = "UNAVAILABLE"
)

// Book represents a row in the `books` table.  Catalog books seeded by
// an administrator carry a NULL owner_id; user-registered books always
// reference their owner.  AvailableCopies never exceeds TotalCopies.
//
// Fields:
//  ID              – primary key identifier.
//  Title           – book title.
//  Author          – book author.
//  Category        – optional category label.
//  ISBN            – optional ISBN string.
//  PublishedYear   – optional year of publication.
//  TotalCopies     – number of physical copies registered (>= 0).
//  AvailableCopies – copies currently on the shelf (0..TotalCopies).
//  CoverImageURL   – optional cover image link.
//  Description     – optional free-form description.
//  Lendable        – whether the owner currently offers the book.
//  OwnerID         – owning user, nil for admin catalog books.
//  Status          – one of the Book* status constants above.
//  BorrowerID      – user holding the book while BORROWED, else nil.
//  DueDate         – return deadline while BORROWED, else nil.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Book struct {
	ID              uint64     `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	Category        *string    `json:"category,omitempty"`
	ISBN            *string    `json:"isbn,omitempty"`
	PublishedYear   *int       `json:"published_year,omitempty"`
	TotalCopies     int        `json:"total_copies"`
	AvailableCopies int        `json:"available_copies"`
	CoverImageURL   *string    `json:"cover_image_url,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Lendable        bool       `json:"lendable"`
	OwnerID         *uint64    `json:"owner_id,omitempty"`
	Status          string     `json:"status"`
	BorrowerID      *uint64    `json:"borrower_id,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ReleasedStatus computes the status a book reverts to once no request
// holds it: UNAVAILABLE when the owner has switched lending off,
// AVAILABLE while copies remain on the shelf, RESERVED otherwise.
func (b *Book) ReleasedStatus() string {
	if !b.Lendable {
		return BookUnavailable
	}
	if b.AvailableCopies > 0 {
		return BookAvailable
	}
	return BookReserved
}
