package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/servimarket/api/handlers"
	"github.com/servimarket/api/middleware"
)

func AdminRoutes(app *fiber.App, h *handlers.DirectoryHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(jwtSecret), middleware.AdminRequired())
	admin.Get("/companies/:companyId/tree", h.CompanyTree)
}
