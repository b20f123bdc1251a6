// Package repository implements the MySQL data access layer.  This
// file defines sentinel errors shared across repositories so handlers
// can map failure scenarios onto HTTP status codes without inspecting
// driver-specific errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update or delete cannot proceed
// because of dependent state, such as deleting a book that still has
// borrow requests.  Handlers translate this into 409.
var ErrConflict = errors.New("conflict")

// ErrBookNotFound is returned when no book row matches the query.
var ErrBookNotFound = errors.New("book not found")

// ErrRequestNotFound is returned when no borrow request row matches.
var ErrRequestNotFound = errors.New("borrow request not found")

// ErrUserNotFound is returned when no user row matches the query.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering with a taken email.
var ErrEmailExists = errors.New("email already exists")
