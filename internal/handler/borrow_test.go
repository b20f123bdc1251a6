package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetread/meetread/internal/model"
	"github.com/meetread/meetread/internal/service/borrow"
)

// stubLifecycle returns canned results so the handler's binding and
// error mapping can be exercised without a database.
type stubLifecycle struct {
	req *model.BorrowRequest
	err error
}

func (s *stubLifecycle) Create(context.Context, uint64, uint64, *string) (*model.BorrowRequest, error) {
	return s.req, s.err
}
func (s *stubLifecycle) Approve(context.Context, uint64, uint64, time.Time, *string) (*model.BorrowRequest, error) {
	return s.req, s.err
}
func (s *stubLifecycle) Reject(context.Context, uint64, uint64, *string) (*model.BorrowRequest, error) {
	return s.req, s.err
}
func (s *stubLifecycle) Complete(context.Context, uint64, uint64, *string) (*model.BorrowRequest, error) {
	return s.req, s.err
}
func (s *stubLifecycle) Extend(context.Context, uint64, uint64, time.Time, *string) (*model.BorrowRequest, error) {
	return s.req, s.err
}
func (s *stubLifecycle) Cancel(context.Context, uint64, uint64) (*model.BorrowRequest, error) {
	return s.req, s.err
}

func newBorrowCtx(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint64(2))
	c.Set("role", model.RoleUser)
	return c, rec
}

func TestCreateRequestReturnsLink(t *testing.T) {
	link := "https://wa.me/491701234567?text=hi"
	h := &BorrowHandler{Lifecycle: &stubLifecycle{req: &model.BorrowRequest{
		ID: 7, Status: model.RequestPending, WhatsAppURL: &link,
	}}}

	c, rec := newBorrowCtx(t, http.MethodPost, "/v1/borrow/request", `{"book_id":10}`)
	require.NoError(t, h.CreateRequest(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data struct {
			ID          uint64 `json:"id"`
			Status      string `json:"status"`
			WhatsAppURL string `json:"whatsapp_url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(7), resp.Data.ID)
	assert.Equal(t, model.RequestPending, resp.Data.Status)
	assert.Equal(t, link, resp.Data.WhatsAppURL)
}

func TestCreateRequestRequiresBookID(t *testing.T) {
	h := &BorrowHandler{Lifecycle: &stubLifecycle{}}
	c, rec := newBorrowCtx(t, http.MethodPost, "/v1/borrow/request", `{}`)
	require.NoError(t, h.CreateRequest(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBorrowErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{borrow.ErrBookNotFound, http.StatusNotFound},
		{borrow.ErrRequestNotFound, http.StatusNotFound},
		{borrow.ErrNotOwner, http.StatusForbidden},
		{borrow.ErrNotRequester, http.StatusForbidden},
		{borrow.ErrNotAvailable, http.StatusConflict},
		{borrow.ErrDuplicatePending, http.StatusConflict},
		{borrow.ErrOwnBook, http.StatusBadRequest},
		{borrow.ErrNoOwner, http.StatusBadRequest},
		{borrow.ErrOwnerUnreachable, http.StatusBadRequest},
		{borrow.ErrAlreadyProcessed, http.StatusBadRequest},
		{borrow.ErrNotApproved, http.StatusBadRequest},
		{borrow.ErrPastDueDate, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			h := &BorrowHandler{Lifecycle: &stubLifecycle{err: tc.err}}
			c, rec := newBorrowCtx(t, http.MethodPost, "/v1/borrow/request", `{"book_id":10}`)
			require.NoError(t, h.CreateRequest(c))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestApproveRequiresDueDate(t *testing.T) {
	h := &BorrowHandler{Lifecycle: &stubLifecycle{}}
	c, rec := newBorrowCtx(t, http.MethodPost, "/v1/borrow/requests/5/approve", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Approve(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveEnvelope(t *testing.T) {
	h := &BorrowHandler{Lifecycle: &stubLifecycle{req: &model.BorrowRequest{
		ID: 5, Status: model.RequestApproved,
	}}}
	c, rec := newBorrowCtx(t, http.MethodPost, "/v1/borrow/requests/5/approve",
		`{"due_date":"2026-10-01T00:00:00Z"}`)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.Approve(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Status  string `json:"status"`
			DueDate string `json:"due_date"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.RequestApproved, resp.Data.Status)
	assert.Equal(t, "2026-10-01T00:00:00Z", resp.Data.DueDate)
}

func TestParseDueDate(t *testing.T) {
	_, ok := parseDueDate("")
	assert.False(t, ok)

	_, ok = parseDueDate("next tuesday")
	assert.False(t, ok)

	got, ok := parseDueDate("2026-10-01T15:04:05Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 1, 15, 4, 5, 0, time.UTC), got)

	// Plain dates land at the end of the day.
	got, ok = parseDueDate("2026-10-01")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 1, 23, 59, 59, 0, time.UTC), got)
}
