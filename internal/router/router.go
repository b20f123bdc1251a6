package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/meetread/meetread/internal/config"
	"github.com/meetread/meetread/internal/handler"
	"github.com/meetread/meetread/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check for load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints and the
// account routes protected by a JWT.  Unauthenticated operations live
// under /v1/auth; the profile endpoints live under /v1 behind the
// JWTAuth middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token; refresh-access issues a new
	// access token and leaves the refresh token untouched.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout takes the refresh token in the body, so it does not need
	// a valid access token.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("USER", "ADMIN"))
	auth.GET("/me", a.Me)
	auth.PUT("/me", a.UpdateMe)
}

// RegisterPublic registers the guest-facing catalog browse endpoints.
// No JWT is applied so visitors can explore books before signing up.
// GET responses are cached in Redis and the search endpoint is rate
// limited per client.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, rdb *redis.Client) {
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	e.GET("/v1/books", p.ListBooks, middleware.NewRedisCache(cacheCfg, rdb))
	e.GET("/v1/books/:id", p.GetBook, middleware.NewRedisCache(cacheCfg, rdb))
	e.GET("/v1/search/books", p.SearchBooks, middleware.NewTokenBucket(rlCfg, rdb))
}
