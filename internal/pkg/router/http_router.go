package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkellner/bookshop/app/controllers"
	"github.com/mkellner/bookshop/app/repository"
	"github.com/mkellner/bookshop/internal/pkg/covers"
	"github.com/mkellner/bookshop/internal/pkg/database"
	"github.com/mkellner/bookshop/internal/pkg/env"
	"github.com/mkellner/bookshop/internal/pkg/mail"
	"github.com/mkellner/bookshop/internal/pkg/orders"
	"github.com/mkellner/bookshop/internal/pkg/payments"
	"github.com/mkellner/bookshop/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Shared infrastructure for the controllers
	repository.InitializeFactory(database.GetDB())
	client := payments.NewClientFromEnv()
	finalizer := orders.NewService(
		orders.NewStore(database.GetDB()),
		client,
		mail.NewSMTPMailer(),
		orders.Options{
			OperatorEmail: env.GetEnv("ADMIN_EMAIL", ""),
			ShopName:      env.GetEnv("SHOP_NAME", "bookshop"),
		},
	)

	controllers.InitializeBookController()
	controllers.InitializeCheckoutController(client)
	controllers.InitializeWebhookController(client, finalizer)
	controllers.InitializeAdminController()
	controllers.InitializeAdminCoversController(covers.NewAnalyzerFromEnv())

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
