package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkellner/bookshop/app/controllers"
	"github.com/mkellner/bookshop/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	app.Get("/admin/login", controllers.HandleAdminLoginPage)
	app.Post("/admin/login", controllers.HandleAdminLogin)

	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminDashboard)
	adminGroup.Post("/logout", controllers.HandleAdminLogout)

	// Book management
	adminGroup.Get("/books", controllers.HandleAdminBooks)
	adminGroup.Get("/books/create", controllers.HandleAdminBookCreate)
	adminGroup.Post("/books/store", controllers.HandleAdminBookStore)
	adminGroup.Get("/books/edit/:id", controllers.HandleAdminBookEdit)
	adminGroup.Post("/books/update/:id", controllers.HandleAdminBookUpdate)
	adminGroup.Post("/books/delete/:id", controllers.HandleAdminBookDelete)

	// Batch cover intake
	adminGroup.Get("/covers/batch", controllers.HandleBatchCoverUploadPage)
	adminGroup.Post("/covers/batch", controllers.HandleBatchCoverUpload)
	adminGroup.Get("/covers/batch/:id", controllers.HandleBatchCoverResult)

	// Order management
	adminGroup.Get("/orders", controllers.HandleAdminOrders)
	adminGroup.Post("/orders/fulfill/:id", controllers.HandleAdminOrderFulfill)
}
