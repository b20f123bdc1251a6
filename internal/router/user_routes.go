package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/meetread/meetread/internal/config"
	"github.com/meetread/meetread/internal/handler"
	"github.com/meetread/meetread/internal/middleware"
)

// RegisterUser registers the authenticated member surface: personal
// collections, the borrow-request lifecycle and the notification
// inbox.  Creating a borrow request is rate limited per user so a
// single account cannot flood an owner's WhatsApp.
func RegisterUser(e *echo.Echo, b *handler.BookHandler, br *handler.BorrowHandler,
	n *handler.NotificationHandler, jwtSecret string, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("USER", "ADMIN"))

	// Personal collection.
	g.GET("/my-books", b.MyBooks)
	g.POST("/books", b.CreateBook)
	g.PUT("/books/:id", b.UpdateBook)
	g.PATCH("/books/:id/lendable", b.SetLendable)
	g.DELETE("/books/:id", b.DeleteBook)

	// Borrow lifecycle.  The request endpoint carries the token-bucket
	// limiter; decision endpoints are owner-gated in the service.
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	g.POST("/borrow/request", br.CreateRequest, rl)
	g.POST("/borrow/requests/:id/approve", br.Approve)
	g.POST("/borrow/requests/:id/reject", br.Reject)
	g.POST("/borrow/requests/:id/complete", br.Complete)
	g.POST("/borrow/requests/:id/extend", br.Extend)
	g.POST("/borrow/requests/:id/cancel", br.Cancel)
	g.GET("/borrow/my-requests", br.MyRequests)
	g.GET("/borrow/incoming", br.Incoming)

	// Notification inbox.
	g.GET("/notifications", n.List)
}
