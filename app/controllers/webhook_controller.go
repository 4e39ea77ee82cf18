package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/mkellner/bookshop/internal/pkg/orders"
	"github.com/mkellner/bookshop/internal/pkg/payments"
)

// WebhookController receives signed payment notifications. The response code
// is the retry protocol: 400 rejects forgeries and garbage for good, 500 asks
// the provider to redeliver, 200 means the event needs no further delivery.
type WebhookController struct {
	webhookSecret string
	finalizer     *orders.Service
}

var webhookController *WebhookController

// InitializeWebhookController wires the webhook controller with the shared
// payment client and order finalizer.
func InitializeWebhookController(client *payments.Client, finalizer *orders.Service) {
	webhookController = &WebhookController{
		webhookSecret: client.WebhookSecret,
		finalizer:     finalizer,
	}
}

// HandleStripeWebhook processes one signed notification delivery.
func HandleStripeWebhook(c *fiber.Ctx) error {
	wc := webhookController

	if wc.webhookSecret == "" {
		// Misconfiguration on our side. Answer 500 so the provider keeps the
		// event and redelivers once the secret is in place.
		log.Printf("STRIPE_WEBHOOK_SECRET is not configured - rejecting webhook")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Webhook secret not configured",
		})
	}

	header := c.Get("Stripe-Signature")
	payload := c.Body()

	event, err := payments.ConstructEvent(payload, header, wc.webhookSecret, payments.DefaultTolerance)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrMissingSignature):
			log.Printf("Webhook rejected: missing signature header")
		case errors.Is(err, payments.ErrInvalidSignature):
			log.Printf("Webhook rejected: invalid signature")
		default:
			log.Printf("Webhook rejected: %v", err)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid webhook",
		})
	}

	if event.Type != payments.EventTypeCheckoutCompleted {
		// Unrecognized types are acknowledged so the provider can add event
		// kinds without breaking us.
		log.Printf("Ignoring event type %s (id: %s)", event.Type, event.ID)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "success",
			"message": "Event received",
		})
	}

	session, err := event.CheckoutSession()
	if err != nil {
		log.Printf("Webhook rejected: undecodable checkout session (event: %s): %v", event.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid webhook",
		})
	}

	result := wc.finalizer.ProcessCheckoutCompleted(c.Context(), session)
	return c.Status(result.HTTPStatus()).JSON(fiber.Map{
		"status":  result.Status,
		"message": result.Message,
	})
}
