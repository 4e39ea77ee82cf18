package orders

import (
	"context"
	"fmt"
	"log"
)

const (
	refundSucceeded    = "succeeded"
	refundNotAttempted = "not attempted"
)

// compensate handles the losing side of a sold-out race: refund the buyer,
// alert the operator, tell the customer. Each step is independently
// fault-tolerant, and the webhook is always acknowledged with success — the
// race is an expected, handled outcome, never a server error.
func (s *Service) compensate(ctx context.Context, race *soldOut) Result {
	log.Printf("Book %d is already sold (session: %s) - issuing refund", race.bookID, race.sessionID)

	refundStatus := refundNotAttempted
	if race.paymentIntent != "" {
		if _, err := s.refunder.CreateRefund(ctx, race.paymentIntent); err != nil {
			refundStatus = "failed: " + err.Error()
			log.Printf("Failed to create refund for payment_intent %s (session: %s): %v",
				race.paymentIntent, race.sessionID, err)
		} else {
			refundStatus = refundSucceeded
			log.Printf("Refund created for payment_intent %s (session: %s)",
				race.paymentIntent, race.sessionID)
		}
	}

	if s.opts.OperatorEmail != "" {
		subject, body := s.raceAlertEmail(race, refundStatus)
		if err := s.mailer.Send(s.opts.OperatorEmail, subject, body); err != nil {
			log.Printf("Failed to send admin notification: %v", err)
		} else {
			log.Printf("Admin notification sent for race condition refund")
		}
	}

	subject, body := s.refundNoticeEmail(race, refundStatus)
	if err := s.mailer.Send(race.customerEmail, subject, body); err != nil {
		log.Printf("Failed to send customer refund notification: %v", err)
	} else {
		log.Printf("Customer refund notification sent for session %s", race.sessionID)
	}

	return resultProcessed("Book already sold - refund issued")
}

func refundSummaryLine(refundStatus string) string {
	if refundStatus == refundSucceeded {
		return "A refund has been processed."
	}
	return fmt.Sprintf("A refund has been attempted (status: %s).", refundStatus)
}
