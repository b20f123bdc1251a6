package router

import (
	"github.com/labstack/echo/v4"

	"github.com/meetread/meetread/internal/handler"
	"github.com/meetread/meetread/internal/middleware"
)

// RegisterAdmin registers catalog and user management under
// /v1/admin.  Every route requires a valid JWT carrying the ADMIN
// role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))

	g.GET("/books", a.ListCatalog)
	g.POST("/books", a.CreateCatalogBook)
	g.PUT("/books/:id", a.UpdateCatalogBook)
	g.DELETE("/books/:id", a.DeleteCatalogBook)

	g.GET("/users", a.ListUsers)
	g.PATCH("/users/:id/role", a.UpdateUserRole)
	g.DELETE("/users/:id", a.DeleteUser)
}
