package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/meetread/meetread/internal/model"
	"github.com/meetread/meetread/internal/repository"
)

// BookHandler serves a user's personal collection: the books they have
// registered for lending.
type BookHandler struct {
	Books *repository.BookRepo
}

func NewBookHandler(books *repository.BookRepo) *BookHandler {
	if books == nil {
		panic("nil repository passed to NewBookHandler")
	}
	return &BookHandler{Books: books}
}

type bookReq struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Category      *string `json:"category"`
	ISBN          *string `json:"isbn"`
	PublishedYear *int    `json:"published_year"`
	TotalCopies   int     `json:"total_copies"`
	CoverImageURL *string `json:"cover_image_url"`
	Description   *string `json:"description"`
	Lendable      *bool   `json:"lendable"`
}

func (r *bookReq) validate() string {
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
	if r.Title == "" {
		return "title is required"
	}
	if r.Author == "" {
		return "author is required"
	}
	if r.TotalCopies < 0 {
		return "total_copies cannot be negative"
	}
	return ""
}

// MyBooks handles GET /v1/my-books.
func (h *BookHandler) MyBooks(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Books.ListByOwner(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreateBook handles POST /v1/books: registers a book in the caller's
// collection.
func (h *BookHandler) CreateBook(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	lendable := true
	if req.Lendable != nil {
		lendable = *req.Lendable
	}
	b := &model.Book{
		Title:         req.Title,
		Author:        req.Author,
		Category:      req.Category,
		ISBN:          req.ISBN,
		PublishedYear: req.PublishedYear,
		TotalCopies:   req.TotalCopies,
		CoverImageURL: req.CoverImageURL,
		Description:   req.Description,
		Lendable:      lendable,
		OwnerID:       &userID,
	}
	if err := h.Books.Create(c.Request().Context(), b); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create book"})
	}
	return c.JSON(http.StatusCreated, b)
}

// UpdateBook handles PUT /v1/books/:id for the book's owner.
func (h *BookHandler) UpdateBook(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	b := &model.Book{
		ID:            id,
		Title:         req.Title,
		Author:        req.Author,
		Category:      req.Category,
		ISBN:          req.ISBN,
		PublishedYear: req.PublishedYear,
		TotalCopies:   req.TotalCopies,
		CoverImageURL: req.CoverImageURL,
		Description:   req.Description,
	}
	if err := h.Books.Update(c.Request().Context(), b, &userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your book"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	updated, err := h.Books.GetByID(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, updated)
}

// SetLendable handles PATCH /v1/books/:id/lendable.
func (h *BookHandler) SetLendable(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	var req struct {
		Lendable *bool `json:"lendable"`
	}
	if err := c.Bind(&req); err != nil || req.Lendable == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lendable is required"})
	}
	b, err := h.Books.SetLendable(c.Request().Context(), id, userID, *req.Lendable)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBookNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your book"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, b)
}

// DeleteBook handles DELETE /v1/books/:id.  Books with request
// history are refused with 409 to keep the lending audit trail whole.
func (h *BookHandler) DeleteBook(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	if err := h.Books.Delete(c.Request().Context(), id, &userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your book"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "book has borrow requests"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
