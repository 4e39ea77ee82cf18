package controllers

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/mkellner/bookshop/app/repository"
	"github.com/mkellner/bookshop/internal/pkg/env"
	"github.com/mkellner/bookshop/internal/pkg/payments"
)

// CheckoutController starts hosted-checkout purchases and serves the return
// pages. It never mutates inventory: the availability check here is a
// courtesy, the webhook finalizer holds the authoritative lock.
type CheckoutController struct {
	bookRepo repository.BookRepository
	client   *payments.Client
}

var checkoutController *CheckoutController

// InitializeCheckoutController wires the checkout controller with its
// repository and payment client.
func InitializeCheckoutController(client *payments.Client) {
	factory := repository.GetGlobalFactory()
	checkoutController = &CheckoutController{
		bookRepo: factory.GetBookRepository(),
		client:   client,
	}
}

// HandleBookPurchase creates a hosted checkout session for one book and
// redirects the buyer to the provider's payment page.
func HandleBookPurchase(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		fm := fiber.Map{"type": "error", "message": "This book does not exist."}
		return flash.WithError(c, fm).Redirect("/")
	}

	book, err := checkoutController.bookRepo.GetByID(uint(id))
	if err != nil {
		fm := fiber.Map{"type": "error", "message": "This book does not exist."}
		return flash.WithError(c, fm).Redirect("/")
	}
	if !book.IsAvailable {
		fm := fiber.Map{"type": "error", "message": "Sorry, this book has already been sold."}
		return flash.WithError(c, fm).Redirect("/")
	}

	baseURL := env.GetEnv("APP_BASE_URL", "http://localhost:4000")
	session, err := checkoutController.client.CreateCheckoutSession(c.Context(), payments.CheckoutSessionParams{
		ProductName:        book.Title,
		ProductDescription: fmt.Sprintf("by %s", book.Author),
		AmountCents:        book.PriceCents,
		Currency:           "gbp",
		SuccessURL:         baseURL + "/checkout/success",
		CancelURL:          baseURL + "/checkout/cancel",
		Metadata: map[string]string{
			"book_id": fmt.Sprintf("%d", book.ID),
		},
		ShippingCountries: []string{"GB"},
	})
	if err != nil {
		log.Printf("Failed to create checkout session for book %d: %v", book.ID, err)
		fm := fiber.Map{"type": "error", "message": "Could not start the checkout. Please try again."}
		return flash.WithError(c, fm).Redirect("/")
	}

	return c.Redirect(session.URL, fiber.StatusSeeOther)
}

// HandleCheckoutSuccess renders the thank-you page. Fulfillment state comes
// from the webhook, not from reaching this page.
func HandleCheckoutSuccess(c *fiber.Ctx) error {
	return c.Render("checkout/success", fiber.Map{})
}

// HandleCheckoutCancel renders the page shown when the buyer abandons payment.
func HandleCheckoutCancel(c *fiber.Ctx) error {
	return c.Render("checkout/cancel", fiber.Map{})
}
