package orders

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/mkellner/bookshop/app/models"
	"github.com/mkellner/bookshop/internal/pkg/payments"
)

// Refunder issues refunds against the payment provider.
type Refunder interface {
	CreateRefund(ctx context.Context, paymentIntentID string) (*payments.Refund, error)
}

// Mailer delivers a single plain-text email. Sends are best-effort from the
// finalizer's perspective: failures are logged, never propagated.
type Mailer interface {
	Send(to, subject, body string) error
}

// Options carries the non-dependency knobs of the finalizer.
type Options struct {
	// OperatorEmail receives internal alerts (new orders, sold-out races).
	// Empty disables operator notifications.
	OperatorEmail string
	// ShopName prefixes email subjects, e.g. "[bookshop] Order Confirmation".
	ShopName string
}

// Service turns verified checkout-completion events into consistent inventory
// and order state. All inventory decisions happen inside one transaction with
// an exclusive lock on the book row; refunds and emails run strictly after
// commit so slow external calls never extend the lock's hold time.
type Service struct {
	store    Store
	refunder Refunder
	mailer   Mailer
	opts     Options
}

// NewService creates an order finalizer from injected collaborators.
func NewService(store Store, refunder Refunder, mailer Mailer, opts Options) *Service {
	if opts.ShopName == "" {
		opts.ShopName = "bookshop"
	}
	return &Service{store: store, refunder: refunder, mailer: mailer, opts: opts}
}

// soldOut captures everything the compensation flow needs, copied before the
// locking transaction ends.
type soldOut struct {
	bookID        uint
	bookTitle     string
	bookAuthor    string
	sessionID     string
	paymentIntent string
	customerEmail string
	amountCents   int64
}

// ProcessCheckoutCompleted finalizes one completed checkout session.
//
// The returned Result encodes the retry contract: permanent payload defects
// are acknowledged so the provider stops retrying, transient failures are
// surfaced so it retries, and every handled outcome (including the sold-out
// race) is a success.
func (s *Service) ProcessCheckoutCompleted(ctx context.Context, session *payments.CheckoutSession) Result {
	sessionID := session.ID
	if sessionID == "" {
		sessionID = "unknown"
	}

	bookID, err := bookIDFromMetadata(session.Metadata)
	if err != nil {
		log.Printf("Missing or invalid book_id in session metadata (session: %s): %v", sessionID, err)
		return resultPermanent("Missing book_id in metadata")
	}

	customerEmail := session.CustomerEmail()
	if customerEmail == "" {
		log.Printf("Missing customer email in session (session: %s)", sessionID)
		return resultPermanent("Missing customer email")
	}

	if session.AmountTotal == nil {
		log.Printf("Missing amount_total in session (session: %s)", sessionID)
		return resultPermanent("Missing amount_total")
	}
	amountCents := *session.AmountTotal

	// Idempotency pre-check: a redelivered event for an already-recorded
	// session is the normal shape of provider retries, not a failure.
	exists, err := s.store.OrderExists(ctx, sessionID)
	if err != nil {
		log.Printf("Failed idempotency lookup (session: %s): %v", sessionID, err)
		return resultTransient("Order processing failed")
	}
	if exists {
		log.Printf("Order already processed for session %s", sessionID)
		return resultProcessed("Order already processed")
	}

	var (
		order *models.Order
		race  *soldOut
	)

	err = s.store.Finalize(ctx, func(tx FinalizeTx) error {
		book, err := tx.LockBook(bookID)
		if err != nil {
			return err
		}

		if !book.IsAvailable {
			// Sold-out race: another completion won the copy. Capture the
			// snapshot now; compensation runs after the lock is released.
			race = &soldOut{
				bookID:        book.ID,
				bookTitle:     book.Title,
				bookAuthor:    book.Author,
				sessionID:     sessionID,
				paymentIntent: session.PaymentIntent,
				customerEmail: customerEmail,
				amountCents:   amountCents,
			}
			return nil
		}

		// The provider's amount is authoritative for what was charged; price
		// drift is recorded, not rejected.
		if amountCents != book.PriceCents {
			log.Printf("Price mismatch for book %d (session: %s): expected %s, received %s",
				book.ID, sessionID, models.FormatPence(book.PriceCents), models.FormatPence(amountCents))
		}

		if err := tx.MarkBookSold(book.ID); err != nil {
			return err
		}
		log.Printf("Marked book %d as unavailable", book.ID)

		order = buildOrderSnapshot(book, session, sessionID, customerEmail, amountCents)
		if err := tx.CreateOrder(order); err != nil {
			return err
		}
		log.Printf("Created order %d for book %d", order.ID, book.ID)
		return nil
	})

	switch {
	case err == nil:
		// fall through
	case err == ErrBookNotFound:
		log.Printf("Book not found: %d (session: %s)", bookID, sessionID)
		return resultPermanent(fmt.Sprintf("Book %d not found", bookID))
	case err == ErrDuplicateSession:
		// Concurrent duplicate delivery slipped past the pre-check; the
		// unique index on session id was the final arbiter.
		log.Printf("Order for session %s already exists (duplicate webhook)", sessionID)
		return resultProcessed("Order already processed")
	default:
		log.Printf("Failed to process order (session: %s): %v", sessionID, err)
		return resultTransient("Order processing failed")
	}

	if race != nil {
		return s.compensate(ctx, race)
	}

	s.dispatchOrderEmails(order)
	return resultProcessed("Order processed successfully")
}

func bookIDFromMetadata(metadata map[string]string) (uint, error) {
	raw, ok := metadata["book_id"]
	if !ok || raw == "" {
		return 0, fmt.Errorf("book_id absent")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("book_id %q is not a valid id", raw)
	}
	return uint(id), nil
}

func buildOrderSnapshot(book *models.Book, session *payments.CheckoutSession, sessionID, customerEmail string, amountCents int64) *models.Order {
	order := &models.Order{
		BookTitle:       book.Title,
		BookAuthor:      book.Author,
		BookISBN:        book.ISBN,
		BookPriceCents:  book.PriceCents,
		StripeSessionID: sessionID,
		CustomerEmail:   customerEmail,
		AmountPaidCents: amountCents,
	}

	if shipping := session.Shipping(); shipping != nil {
		order.ShippingName = shipping.Name
		if addr := shipping.Address; addr != nil {
			order.ShippingAddressLine1 = addr.Line1
			order.ShippingAddressLine2 = addr.Line2
			order.ShippingCity = addr.City
			order.ShippingState = addr.State
			order.ShippingPostalCode = addr.PostalCode
			order.ShippingCountry = addr.Country
		}
	}
	return order
}

// dispatchOrderEmails sends the confirmation and the operator alert for a
// freshly committed order. Each send is independent; a failure in one neither
// suppresses the other nor changes the webhook response.
func (s *Service) dispatchOrderEmails(order *models.Order) {
	subject, body := s.purchaseConfirmationEmail(order)
	if err := s.mailer.Send(order.CustomerEmail, subject, body); err != nil {
		log.Printf("Failed to send confirmation email for order %d: %v", order.ID, err)
	} else {
		log.Printf("Sent purchase confirmation for order %d", order.ID)
	}

	if s.opts.OperatorEmail == "" {
		return
	}
	subject, body = s.adminNewOrderEmail(order)
	if err := s.mailer.Send(s.opts.OperatorEmail, subject, body); err != nil {
		log.Printf("Failed to send admin notification for order %d: %v", order.ID, err)
	} else {
		log.Printf("Sent admin notification for order %d", order.ID)
	}
}
