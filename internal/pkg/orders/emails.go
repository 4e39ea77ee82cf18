package orders

import (
	"fmt"
	"strings"

	"github.com/mkellner/bookshop/app/models"
)

func (s *Service) purchaseConfirmationEmail(order *models.Order) (subject, body string) {
	subject = fmt.Sprintf("[%s] Order Confirmation #%d - %s", s.opts.ShopName, order.ID, order.BookTitle)

	isbnLine := ""
	if order.BookISBN != "" {
		isbnLine = fmt.Sprintf("ISBN: %s\n", order.BookISBN)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your purchase!\n\n")
	fmt.Fprintf(&b, "ORDER #%d\n-----\n", order.ID)
	fmt.Fprintf(&b, "Order Date: %s\n", order.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Status: Pending (we ship within 1 business day)\n\n")
	fmt.Fprintf(&b, "BOOK DETAILS\n-----\n")
	fmt.Fprintf(&b, "Title: %s\n", order.BookTitle)
	fmt.Fprintf(&b, "Author: %s\n", order.BookAuthor)
	fmt.Fprintf(&b, "%sPrice: %s\n", isbnLine, order.AmountPaidDisplay())
	b.WriteString(shippingBlock(order))
	fmt.Fprintf(&b, "\nIf you have any questions about your order just reply to this message and reference Order #%d.\n", order.ID)
	return subject, b.String()
}

func (s *Service) adminNewOrderEmail(order *models.Order) (subject, body string) {
	subject = fmt.Sprintf("[%s] New Order #%d - %s", s.opts.ShopName, order.ID, order.BookTitle)

	var b strings.Builder
	fmt.Fprintf(&b, "A new order has been placed!\n\n")
	fmt.Fprintf(&b, "ORDER #%d\n-----\n", order.ID)
	fmt.Fprintf(&b, "Order Date: %s\n", order.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Customer Email: %s\n", order.CustomerEmail)
	fmt.Fprintf(&b, "Checkout Session: %s\n\n", order.StripeSessionID)
	fmt.Fprintf(&b, "BOOK DETAILS\n-----\n")
	fmt.Fprintf(&b, "Title: %s\n", order.BookTitle)
	fmt.Fprintf(&b, "Author: %s\n", order.BookAuthor)
	fmt.Fprintf(&b, "ISBN: %s\n", order.BookISBN)
	fmt.Fprintf(&b, "Price: %s\n", order.AmountPaidDisplay())
	b.WriteString(shippingBlock(order))
	return subject, b.String()
}

func (s *Service) raceAlertEmail(race *soldOut, refundStatus string) (subject, body string) {
	subject = fmt.Sprintf("[%s] RACE CONDITION: Refund issued for sold book", s.opts.ShopName)

	var b strings.Builder
	fmt.Fprintf(&b, "A race condition occurred during checkout.\n\n")
	fmt.Fprintf(&b, "Book: %s by %s (ID: %d)\n", race.bookTitle, race.bookAuthor, race.bookID)
	fmt.Fprintf(&b, "Customer Email: %s\n", race.customerEmail)
	fmt.Fprintf(&b, "Checkout Session: %s\n", race.sessionID)
	fmt.Fprintf(&b, "Payment Intent: %s\n", race.paymentIntent)
	fmt.Fprintf(&b, "Amount: %s\n\n", models.FormatPence(race.amountCents))
	fmt.Fprintf(&b, "Refund Status: %s\n\n", refundStatus)
	fmt.Fprintf(&b, "The customer attempted to purchase a book that was already sold to another customer.\n")
	fmt.Fprintf(&b, "%s\n", refundSummaryLine(refundStatus))
	return subject, b.String()
}

func (s *Service) refundNoticeEmail(race *soldOut, refundStatus string) (subject, body string) {
	subject = fmt.Sprintf("[%s] Order Canceled - %s", s.opts.ShopName, race.bookTitle)
	amount := models.FormatPence(race.amountCents)

	var refundMessage string
	switch refundStatus {
	case refundSucceeded:
		refundMessage = fmt.Sprintf("You have been issued a full refund of %s. The refund will appear on your payment method within 5 to 10 business days, depending on your bank or card issuer.", amount)
	case refundNotAttempted:
		refundMessage = fmt.Sprintf("We were unable to process a refund automatically. Our team has been notified and will manually issue a full refund of %s to your payment method within 24 hours.", amount)
	default:
		refundMessage = fmt.Sprintf("We encountered an issue processing your refund automatically. Our team has been notified and will manually issue a full refund of %s to your payment method within 24 hours.", amount)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "We're sorry, but we were unable to complete your purchase.\n\n")
	fmt.Fprintf(&b, "BOOK DETAILS\n-----\n")
	fmt.Fprintf(&b, "Title: %s\n", race.bookTitle)
	fmt.Fprintf(&b, "Author: %s\n", race.bookAuthor)
	fmt.Fprintf(&b, "Price: %s\n\n", amount)
	fmt.Fprintf(&b, "WHAT HAPPENED\n-----\n")
	fmt.Fprintf(&b, "Unfortunately, this book was sold to another customer just moments before your order was completed. We know this is disappointing, and we sincerely apologize for the inconvenience.\n\n")
	fmt.Fprintf(&b, "REFUND INFORMATION\n-----\n")
	fmt.Fprintf(&b, "%s\n\n", refundMessage)
	fmt.Fprintf(&b, "If you have any questions or need assistance, please contact us.\n\n")
	fmt.Fprintf(&b, "Thank you for your understanding,\nThe %s Team\n", s.opts.ShopName)
	return subject, b.String()
}

func shippingBlock(order *models.Order) string {
	if order.ShippingAddressLine1 == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("\nSHIPPING ADDRESS\n-----\n")
	fmt.Fprintf(&b, "Name: %s\n", order.ShippingName)
	fmt.Fprintf(&b, "Address: %s\n", order.ShippingAddressLine1)
	if order.ShippingAddressLine2 != "" {
		fmt.Fprintf(&b, "         %s\n", order.ShippingAddressLine2)
	}
	fmt.Fprintf(&b, "City: %s\n", order.ShippingCity)
	fmt.Fprintf(&b, "State/Province: %s\n", order.ShippingState)
	fmt.Fprintf(&b, "Postal Code: %s\n", order.ShippingPostalCode)
	fmt.Fprintf(&b, "Country: %s\n", order.ShippingCountry)
	return b.String()
}
