package orders

import "github.com/gofiber/fiber/v2"

// Disposition tells the HTTP layer whether the provider should retry.
// The retry decision is an explicit value, never an exception type.
type Disposition int

const (
	// DispositionOK: processed, or a benign no-op (duplicate delivery,
	// handled sold-out race). Always acknowledged with 200.
	DispositionOK Disposition = iota
	// DispositionAcknowledged: a permanent defect in the payload (missing
	// metadata, vanished book). Acknowledged with 200 so the provider stops
	// retrying; retrying cannot produce a different payload.
	DispositionAcknowledged
	// DispositionRetry: a transient infrastructure failure. Surfaced as 500
	// so the provider retries; idempotency makes the retry safe.
	DispositionRetry
)

// Result is the outcome of processing one checkout-completion event.
type Result struct {
	Disposition Disposition
	Status      string
	Message     string
}

// HTTPStatus maps the disposition to the webhook response code.
func (r Result) HTTPStatus() int {
	if r.Disposition == DispositionRetry {
		return fiber.StatusInternalServerError
	}
	return fiber.StatusOK
}

func resultProcessed(message string) Result {
	return Result{Disposition: DispositionOK, Status: "success", Message: message}
}

func resultPermanent(message string) Result {
	return Result{Disposition: DispositionAcknowledged, Status: "error", Message: message}
}

func resultTransient(message string) Result {
	return Result{Disposition: DispositionRetry, Status: "error", Message: message}
}
