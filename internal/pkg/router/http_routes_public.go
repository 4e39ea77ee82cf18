package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkellner/bookshop/app/controllers"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/", controllers.HandleBookList)
	app.Get("/books/:id", controllers.HandleBookDetail)
	app.Post("/books/:id/purchase", controllers.HandleBookPurchase)

	app.Get("/checkout/success", controllers.HandleCheckoutSuccess)
	app.Get("/checkout/cancel", controllers.HandleCheckoutCancel)

	// Signed payment notifications. No auth middleware: the signature check
	// inside the handler is the authentication.
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}
