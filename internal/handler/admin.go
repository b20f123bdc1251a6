package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meetread/meetread/internal/model"
	"github.com/meetread/meetread/internal/repository"
)

// AdminHandler manages the shared catalog (books without an owner) and
// user accounts.  Routes mounting it sit behind the ADMIN role check.
type AdminHandler struct {
	Books *repository.BookRepo
	Users *repository.UserRepo
}

func NewAdminHandler(books *repository.BookRepo, users *repository.UserRepo) *AdminHandler {
	if books == nil || users == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{Books: books, Users: users}
}

// ListCatalog handles GET /v1/admin/books.
func (h *AdminHandler) ListCatalog(c echo.Context) error {
	items, err := h.Books.ListCatalog(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreateCatalogBook handles POST /v1/admin/books.  Catalog books carry
// no owner and are not part of any user collection.
func (h *AdminHandler) CreateCatalogBook(c echo.Context) error {
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
	}
	if err := h.Books.Create(c.Request().Context(), b); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create book"})
	}
	return c.JSON(http.StatusCreated, b)
}

// UpdateCatalogBook handles PUT /v1/admin/books/:id.  Admins may edit
// any book regardless of ownership.
func (h *AdminHandler) UpdateCatalogBook(c echo.Context) error {
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
	if err := h.Books.Update(c.Request().Context(), b, nil); err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	updated, err := h.Books.GetByID(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteCatalogBook handles DELETE /v1/admin/books/:id.
func (h *AdminHandler) DeleteCatalogBook(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	if err := h.Books.Delete(c.Request().Context(), id, nil); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "book has borrow requests"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListUsers handles GET /v1/admin/users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	items, err := h.Users.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// UpdateUserRole handles PATCH /v1/admin/users/:id/role.
func (h *AdminHandler) UpdateUserRole(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Role != model.RoleUser && req.Role != model.RoleAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be USER or ADMIN"})
	}
	if err := h.Users.UpdateRole(c.Request().Context(), id, req.Role); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"id": id, "role": req.Role}})
}

// DeleteUser handles DELETE /v1/admin/users/:id.  Users referenced by
// books or borrow requests are refused with 409.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if err := h.Users.Delete(c.Request().Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "user has books or borrow history"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
