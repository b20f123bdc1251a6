package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/meetread/meetread/internal/model"
	"github.com/meetread/meetread/internal/queue"
	"github.com/meetread/meetread/internal/repository"
	"github.com/meetread/meetread/internal/service/borrow"
)

// BorrowLifecycle is the slice of the borrow service the handler
// needs.  Declared here so handler tests can stub it.
type BorrowLifecycle interface {
	Create(ctx context.Context, requesterID, bookID uint64, message *string) (*model.BorrowRequest, error)
	Approve(ctx context.Context, ownerID, requestID uint64, due time.Time, message *string) (*model.BorrowRequest, error)
	Reject(ctx context.Context, ownerID, requestID uint64, message *string) (*model.BorrowRequest, error)
	Complete(ctx context.Context, ownerID, requestID uint64, message *string) (*model.BorrowRequest, error)
	Extend(ctx context.Context, ownerID, requestID uint64, due time.Time, message *string) (*model.BorrowRequest, error)
	Cancel(ctx context.Context, requesterID, requestID uint64) (*model.BorrowRequest, error)
}

// EventPublisher forwards lifecycle events to the message broker.  A
// nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.BorrowEvent) error
}

// BorrowHandler exposes the borrow-request lifecycle over HTTP.  The
// lifecycle service owns all state transitions; the handler binds
// payloads, maps service errors to status codes and publishes
// best-effort events after a transition commits.
type BorrowHandler struct {
	Lifecycle BorrowLifecycle
	Requests  *repository.RequestRepo
	Books     *repository.BookRepo
	Events    EventPublisher
}

func NewBorrowHandler(lc BorrowLifecycle, requests *repository.RequestRepo, books *repository.BookRepo, events EventPublisher) *BorrowHandler {
	if lc == nil || requests == nil || books == nil {
		panic("nil dependency passed to NewBorrowHandler")
	}
	return &BorrowHandler{Lifecycle: lc, Requests: requests, Books: books, Events: events}
}

type createBorrowReq struct {
	BookID  uint64  `json:"book_id"`
	Message *string `json:"message"`
}
type decisionReq struct {
	DueDate string  `json:"due_date"`
	Message *string `json:"message"`
}

// CreateRequest handles POST /v1/borrow/request.
func (h *BorrowHandler) CreateRequest(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBorrowReq
	if err := c.Bind(&req); err != nil || req.BookID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "book_id is required"})
	}
	created, err := h.Lifecycle.Create(c.Request().Context(), userID, req.BookID, req.Message)
	if err != nil {
		return borrowError(c, err)
	}
	h.publish(c, created, "REQUESTED", "")
	return c.JSON(http.StatusCreated, echo.Map{
		"data": echo.Map{"id": created.ID, "status": created.Status, "whatsapp_url": created.WhatsAppURL},
	})
}

// Approve handles POST /v1/borrow/requests/:id/approve.
func (h *BorrowHandler) Approve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	due, ok := parseDueDate(req.DueDate)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "due_date is required (RFC3339 or YYYY-MM-DD)"})
	}
	approved, err := h.Lifecycle.Approve(c.Request().Context(), userID, id, due, req.Message)
	if err != nil {
		return borrowError(c, err)
	}
	h.publish(c, approved, model.NotifyApproved, due.Format(time.RFC3339))
	return c.JSON(http.StatusOK, echo.Map{
		"data": echo.Map{"id": approved.ID, "status": approved.Status, "due_date": due.Format(time.RFC3339)},
	})
}

// Reject handles POST /v1/borrow/requests/:id/reject.
func (h *BorrowHandler) Reject(c echo.Context) error {
	return h.decide(c, model.NotifyRejected, h.Lifecycle.Reject)
}

// Complete handles POST /v1/borrow/requests/:id/complete.
func (h *BorrowHandler) Complete(c echo.Context) error {
	return h.decide(c, model.NotifyReturned, h.Lifecycle.Complete)
}

// decide factors the shared shape of reject and complete.
func (h *BorrowHandler) decide(c echo.Context, event string,
	op func(context.Context, uint64, uint64, *string) (*model.BorrowRequest, error)) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := op(c.Request().Context(), userID, id, req.Message)
	if err != nil {
		return borrowError(c, err)
	}
	h.publish(c, res, event, "")
	return c.JSON(http.StatusOK, echo.Map{
		"data": echo.Map{"id": res.ID, "status": res.Status},
	})
}

// Extend handles POST /v1/borrow/requests/:id/extend.
func (h *BorrowHandler) Extend(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	due, ok := parseDueDate(req.DueDate)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "due_date is required (RFC3339 or YYYY-MM-DD)"})
	}
	extended, err := h.Lifecycle.Extend(c.Request().Context(), userID, id, due, req.Message)
	if err != nil {
		return borrowError(c, err)
	}
	h.publish(c, extended, model.NotifyExtended, due.Format(time.RFC3339))
	return c.JSON(http.StatusOK, echo.Map{
		"data": echo.Map{"id": extended.ID, "due_date": due.Format(time.RFC3339)},
	})
}

// Cancel handles POST /v1/borrow/requests/:id/cancel: a requester
// withdrawing their own pending request.
func (h *BorrowHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	cancelled, err := h.Lifecycle.Cancel(c.Request().Context(), userID, id)
	if err != nil {
		return borrowError(c, err)
	}
	h.publish(c, cancelled, model.NotifyCancelled, "")
	return c.JSON(http.StatusOK, echo.Map{
		"data": echo.Map{"id": cancelled.ID, "status": cancelled.Status},
	})
}

// MyRequests handles GET /v1/borrow/my-requests.
func (h *BorrowHandler) MyRequests(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Requests.ListByRequester(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Incoming handles GET /v1/borrow/incoming: requests awaiting the
// caller's decision as a book owner.
func (h *BorrowHandler) Incoming(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Requests.ListIncoming(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// publish sends a best-effort lifecycle event.  Failures are already
// logged by the publisher and never surface to the client.
func (h *BorrowHandler) publish(c echo.Context, req *model.BorrowRequest, typ, due string) {
	if h.Events == nil || req == nil {
		return
	}
	ev := queue.BorrowEvent{
		RequestID:   req.ID,
		BookID:      req.BookID,
		RequesterID: req.RequesterID,
		Type:        typ,
		DueDate:     due,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if b, err := h.Books.GetByID(c.Request().Context(), req.BookID); err == nil {
		ev.BookTitle = b.Title
		if b.OwnerID != nil {
			ev.OwnerID = *b.OwnerID
		}
	}
	_ = h.Events.Publish(c.Request().Context(), ev)
}

// parseDueDate accepts RFC3339 timestamps or plain dates.  Plain
// dates are taken as end of that day UTC so "today" still counts as a
// future due date during the day.
func parseDueDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC().Add(24*time.Hour - time.Second), true
	}
	return time.Time{}, false
}

// borrowError maps lifecycle errors onto the HTTP taxonomy.
func borrowError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, borrow.ErrBookNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
	case errors.Is(err, borrow.ErrRequestNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "borrow request not found"})
	case errors.Is(err, borrow.ErrNotOwner):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the book owner"})
	case errors.Is(err, borrow.ErrNotRequester):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your request"})
	case errors.Is(err, borrow.ErrNotAvailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "book is not available"})
	case errors.Is(err, borrow.ErrDuplicatePending):
		return c.JSON(http.StatusConflict, echo.Map{"error": "you already have a pending request for this book"})
	case errors.Is(err, borrow.ErrOwnBook),
		errors.Is(err, borrow.ErrNoOwner),
		errors.Is(err, borrow.ErrOwnerUnreachable),
		errors.Is(err, borrow.ErrAlreadyProcessed),
		errors.Is(err, borrow.ErrNotApproved),
		errors.Is(err, borrow.ErrPastDueDate):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}
