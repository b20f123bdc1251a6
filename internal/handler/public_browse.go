package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meetread/meetread/internal/repository"
)

// PublicHandler exposes the unauthenticated catalog browse endpoints.
// These routes sit behind the Redis response cache.
type PublicHandler struct {
	Books *repository.BookRepo
}

func NewPublicHandler(books *repository.BookRepo) *PublicHandler {
	if books == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{Books: books}
}

// ListBooks handles GET /v1/books.  Optional query parameters:
// ?category= filters by category and ?status= by book status.
func (h *PublicHandler) ListBooks(c echo.Context) error {
	items, err := h.Books.List(c.Request().Context(), repository.BrowseFilter{
		Category: c.QueryParam("category"),
		Status:   c.QueryParam("status"),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetBook handles GET /v1/books/:id.
func (h *PublicHandler) GetBook(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	b, err := h.Books.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, b)
}

// SearchBooks handles GET /v1/search/books?q=&category=.  The q term
// matches title or author substrings.
func (h *PublicHandler) SearchBooks(c echo.Context) error {
	items, err := h.Books.List(c.Request().Context(), repository.BrowseFilter{
		Query:    c.QueryParam("q"),
		Category: c.QueryParam("category"),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
