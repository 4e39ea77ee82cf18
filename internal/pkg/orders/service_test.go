package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/mkellner/bookshop/app/models"
	"github.com/mkellner/bookshop/internal/pkg/payments"
)

// memStore is an in-memory Store with the same locking shape as the real one:
// LockBook takes a per-book mutex held until the transaction finishes, and
// CreateOrder enforces a unique session id.
type memStore struct {
	mu          sync.Mutex
	books       map[uint]*models.Book
	orders      map[string]*models.Order
	nextOrderID uint

	bookLocks map[uint]*sync.Mutex

	existsErr    error
	createErr    error
	precheckMiss bool
}

func newMemStore(books ...*models.Book) *memStore {
	s := &memStore{
		books:     make(map[uint]*models.Book),
		orders:    make(map[string]*models.Order),
		bookLocks: make(map[uint]*sync.Mutex),
	}
	for _, b := range books {
		s.books[b.ID] = b
		s.bookLocks[b.ID] = &sync.Mutex{}
	}
	return s
}

func (s *memStore) OrderExists(ctx context.Context, sessionID string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	if s.precheckMiss {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.orders[sessionID]
	return ok, nil
}

func (s *memStore) Finalize(ctx context.Context, fn func(tx FinalizeTx) error) error {
	tx := &memTx{store: s}
	defer tx.unlock()

	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type memTx struct {
	store  *memStore
	locked []*sync.Mutex

	soldBookIDs []uint
	newOrders   []*models.Order
}

func (t *memTx) LockBook(id uint) (*models.Book, error) {
	t.store.mu.Lock()
	book, ok := t.store.books[id]
	lock := t.store.bookLocks[id]
	t.store.mu.Unlock()
	if !ok {
		return nil, ErrBookNotFound
	}

	lock.Lock()
	t.locked = append(t.locked, lock)

	t.store.mu.Lock()
	copied := *book
	t.store.mu.Unlock()
	return &copied, nil
}

func (t *memTx) MarkBookSold(id uint) error {
	t.soldBookIDs = append(t.soldBookIDs, id)
	return nil
}

func (t *memTx) CreateOrder(order *models.Order) error {
	if t.store.createErr != nil {
		return t.store.createErr
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, exists := t.store.orders[order.StripeSessionID]; exists {
		return ErrDuplicateSession
	}
	t.store.nextOrderID++
	order.ID = t.store.nextOrderID
	t.newOrders = append(t.newOrders, order)
	return nil
}

func (t *memTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, id := range t.soldBookIDs {
		t.store.books[id].IsAvailable = false
	}
	for _, order := range t.newOrders {
		t.store.orders[order.StripeSessionID] = order
	}
}

func (t *memTx) unlock() {
	for _, l := range t.locked {
		l.Unlock()
	}
}

type fakeRefunder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRefunder) CreateRefund(ctx context.Context, paymentIntentID string) (*payments.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, paymentIntentID)
	if f.err != nil {
		return nil, f.err
	}
	return &payments.Refund{ID: "re_1", Status: "succeeded"}, nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return f.err
}

func (f *fakeMailer) sentTo(to string) []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMail
	for _, m := range f.sent {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}

func amount(v int64) *int64 { return &v }

func testBook() *models.Book {
	return &models.Book{
		ID:          7,
		Title:       "The Moonstone",
		Author:      "Wilkie Collins",
		ISBN:        "9780141439020",
		PriceCents:  4500,
		IsAvailable: true,
	}
}

func testSession(id string) *payments.CheckoutSession {
	return &payments.CheckoutSession{
		ID:              id,
		AmountTotal:     amount(4500),
		Currency:        "gbp",
		PaymentIntent:   "pi_" + id,
		Metadata:        map[string]string{"book_id": "7"},
		CustomerDetails: &payments.CustomerDetails{Email: "reader@example.com"},
		ShippingDetails: &payments.ShippingDetails{
			Name:    "A Reader",
			Address: &payments.Address{Line1: "1 High St", City: "London", PostalCode: "N1 1AA", Country: "GB"},
		},
	}
}

func newTestService(store Store, refunder *fakeRefunder, mailer *fakeMailer) *Service {
	return NewService(store, refunder, mailer, Options{
		OperatorEmail: "owner@example.com",
		ShopName:      "bookshop",
	})
}

func TestProcessCheckoutCompletedSuccess(t *testing.T) {
	store := newMemStore(testBook())
	refunder := &fakeRefunder{}
	mailer := &fakeMailer{}
	svc := newTestService(store, refunder, mailer)

	result := svc.ProcessCheckoutCompleted(context.Background(), testSession("cs_1"))

	if result.Disposition != DispositionOK {
		t.Fatalf("expected OK disposition, got %+v", result)
	}
	if result.HTTPStatus() != 200 {
		t.Fatalf("expected 200, got %d", result.HTTPStatus())
	}
	if store.books[7].IsAvailable {
		t.Fatal("book should be marked sold")
	}

	order, ok := store.orders["cs_1"]
	if !ok {
		t.Fatal("order was not created")
	}
	if order.BookTitle != "The Moonstone" || order.BookAuthor != "Wilkie Collins" {
		t.Fatalf("order snapshot incomplete: %+v", order)
	}
	if order.AmountPaidCents != 4500 || order.BookPriceCents != 4500 {
		t.Fatalf("order amounts wrong: %+v", order)
	}
	if order.ShippingAddressLine1 != "1 High St" || order.ShippingCountry != "GB" {
		t.Fatalf("shipping snapshot missing: %+v", order)
	}

	if len(refunder.calls) != 0 {
		t.Fatalf("no refund expected, got %v", refunder.calls)
	}
	if got := mailer.sentTo("reader@example.com"); len(got) != 1 || !strings.Contains(got[0].Subject, "Order Confirmation") {
		t.Fatalf("expected one confirmation email, got %+v", got)
	}
	if got := mailer.sentTo("owner@example.com"); len(got) != 1 || !strings.Contains(got[0].Subject, "New Order") {
		t.Fatalf("expected one operator alert, got %+v", got)
	}
}

func TestProcessCheckoutCompletedIdempotentRedelivery(t *testing.T) {
	store := newMemStore(testBook())
	refunder := &fakeRefunder{}
	mailer := &fakeMailer{}
	svc := newTestService(store, refunder, mailer)

	first := svc.ProcessCheckoutCompleted(context.Background(), testSession("cs_1"))
	if first.Disposition != DispositionOK {
		t.Fatalf("first delivery failed: %+v", first)
	}
	mailCount := len(mailer.sent)

	second := svc.ProcessCheckoutCompleted(context.Background(), testSession("cs_1"))
	if second.Disposition != DispositionOK {
		t.Fatalf("redelivery should be acknowledged OK, got %+v", second)
	}
	if second.Message != "Order already processed" {
		t.Fatalf("unexpected message %q", second.Message)
	}
	if store.orderCount() != 1 {
		t.Fatalf("expected 1 order, got %d", store.orderCount())
	}
	if len(mailer.sent) != mailCount {
		t.Fatal("redelivery must not send more email")
	}
	if len(refunder.calls) != 0 {
		t.Fatal("redelivery must not refund")
	}
}

func TestProcessCheckoutCompletedDuplicateIndexBackstop(t *testing.T) {
	// The pre-check misses (concurrent redelivery window), the unique index
	// on session id catches the insert.
	store := newMemStore(testBook())
	store.orders["cs_1"] = &models.Order{ID: 1, StripeSessionID: "cs_1"}
	store.precheckMiss = true

	svc := newTestService(store, &fakeRefunder{}, &fakeMailer{})

	result := svc.ProcessCheckoutCompleted(context.Background(), testSession("cs_1"))
	if result.Disposition != DispositionOK || result.Message != "Order already processed" {
		t.Fatalf("duplicate insert should be acknowledged OK, got %+v", result)
	}
}

func TestProcessCheckoutCompletedSoldOutRace(t *testing.T) {
	book := testBook()
	book.IsAvailable = false
	store := newMemStore(book)
	refunder := &fakeRefunder{}
	mailer := &fakeMailer{}
	svc := newTestService(store, refunder, mailer)

	result := svc.ProcessCheckoutCompleted(context.Background(), testSession("cs_2"))

	if result.Disposition != DispositionOK {
		t.Fatalf("handled race must be acknowledged OK, got %+v", result)
	}
	if result.Message != "Book already sold - refund issued" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if store.orderCount() != 0 {
		t.Fatal("no order may be created for the losing session")
	}
	if len(refunder.calls) != 1 || refunder.calls[0] != "pi_cs_2" {
		t.Fatalf("expected one refund for pi_cs_2, got %v", refunder.calls)
	}

	operator := mailer.sentTo("owner@example.com")
	if len(operator) != 1 || !strings.Contains(operator[0].Subject, "RACE CONDITION") {
		t.Fatalf("expected operator race alert, got %+v", operator)
	}
	customer := mailer.sentTo("reader@example.com")
	if len(customer) != 1 || !strings.Contains(customer[0].Subject, "Order Canceled") {
		t.Fatalf("expected customer refund notice, got %+v", customer)
	}
	if !strings.Contains(customer[0].Body, "full refund of £45.00") {
		t.Fatalf("refund notice should state the amount, got %q", customer[0].Body)
	}
}

func TestProcessCheckoutCompletedRaceWithoutPaymentIntent(t *testing.T) {
	book := testBook()
	book.IsAvailable = false
	store := newMemStore(book)
	refunder := &fakeRefunder{}
	mailer := &fakeMailer{}
	svc := newTestService(store, refunder, mailer)

	session := testSession("cs_3")
	session.PaymentIntent = ""

	result := svc.ProcessCheckoutCompleted(context.Background(), session)
	if result.Disposition != DispositionOK {
		t.Fatalf("expected OK, got %+v", result)
	}
	if len(refunder.calls) != 0 {
		t.Fatal("no refund may be attempted without a payment intent")
	}
	customer := mailer.sentTo("reader@example.com")
	if len(customer) != 1 || !strings.Contains(customer[0].Body, "manually issue a full refund") {
		t.Fatalf("customer notice should promise a manual refund, got %+v", customer)
	}
}

func TestProcessCheckoutCompletedRaceRefundFailure(t *testing.T) {
	book := testBook()
	book.IsAvailable = false
	store := newMemStore(book)
	refunder := &fakeRefunder{err: errors.New("provider down")}
	mailer := &fakeMailer{}
	svc := newTestService(store, refunder, mailer)

	result := svc.ProcessCheckoutCompleted(context.Background(), testSession("cs_4"))

	// A failed refund is still a handled outcome; retrying the webhook
	// would not help because the order state is already settled.
	if result.Disposition != DispositionOK {
		t.Fatalf("expected OK despite refund failure, got %+v", result)
	}
	operator := mailer.sentTo("owner@example.com")
	if len(operator) != 1 || !strings.Contains(operator[0].Body, "failed: provider down") {
		t.Fatalf("operator alert should carry the refund failure, got %+v", operator)
	}
}

func TestProcessCheckoutCompletedPermanentDefects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*payments.CheckoutSession)
		message string
	}{
		{
			name:    "missing metadata",
			mutate:  func(s *payments.CheckoutSession) { s.Metadata = nil },
			message: "Missing book_id in metadata",
		},
		{
			name:    "non-numeric book id",
			mutate:  func(s *payments.CheckoutSession) { s.Metadata["book_id"] = "abc" },
			message: "Missing book_id in metadata",
		},
		{
			name:    "missing customer email",
			mutate:  func(s *payments.CheckoutSession) { s.CustomerDetails = nil },
			message: "Missing customer email",
		},
		{
			name:    "missing amount",
			mutate:  func(s *payments.CheckoutSession) { s.AmountTotal = nil },
			message: "Missing amount_total",
		},
		{
			name:    "vanished book",
			mutate:  func(s *payments.CheckoutSession) { s.Metadata["book_id"] = "99" },
			message: "Book 99 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(testBook())
			refunder := &fakeRefunder{}
			mailer := &fakeMailer{}
			svc := newTestService(store, refunder, mailer)

			session := testSession("cs_bad")
			tt.mutate(session)

			result := svc.ProcessCheckoutCompleted(context.Background(), session)
			if result.Disposition != DispositionAcknowledged {
				t.Fatalf("expected acknowledged defect, got %+v", result)
			}
			if result.HTTPStatus() != 200 {
				t.Fatalf("permanent defects must answer 200, got %d", result.HTTPStatus())
			}
			if result.Message != tt.message {
				t.Fatalf("message = %q, want %q", result.Message, tt.message)
			}
			if store.orderCount() != 0 {
				t.Fatal("no order may be created")
			}
			if len(mailer.sent) != 0 || len(refunder.calls) != 0 {
				t.Fatal("no side effects allowed for rejected payloads")
			}
		})
	}
}

func TestProcessCheckoutCompletedTransientFailures(t *testing.T) {
	t.Run("idempotency lookup fails", func(t *testing.T) {
		store := newMemStore(testBook())
		store.existsErr = errors.New("connection refused")
		svc := newTestService(store, &fakeRefunder{}, &fakeMailer{})

		result := svc.ProcessCheckoutCompleted(context.Background(), testSession("cs_5"))
		if result.Disposition != DispositionRetry || result.HTTPStatus() != 500 {
			t.Fatalf("expected retryable 500, got %+v", result)
		}
	})

	t.Run("order insert fails", func(t *testing.T) {
		store := newMemStore(testBook())
		store.createErr = errors.New("deadlock")
		svc := newTestService(store, &fakeRefunder{}, &fakeMailer{})

		result := svc.ProcessCheckoutCompleted(context.Background(), testSession("cs_6"))
		if result.Disposition != DispositionRetry {
			t.Fatalf("expected retry, got %+v", result)
		}
		if !store.books[7].IsAvailable {
			t.Fatal("failed transaction must not mark the book sold")
		}
	})
}

func TestProcessCheckoutCompletedPriceDriftProceeds(t *testing.T) {
	store := newMemStore(testBook())
	svc := newTestService(store, &fakeRefunder{}, &fakeMailer{})

	session := testSession("cs_7")
	session.AmountTotal = amount(3900) // shelf price is 4500

	result := svc.ProcessCheckoutCompleted(context.Background(), session)
	if result.Disposition != DispositionOK {
		t.Fatalf("price drift must not block the order, got %+v", result)
	}
	order := store.orders["cs_7"]
	if order.AmountPaidCents != 3900 {
		t.Fatalf("order must record the charged amount, got %d", order.AmountPaidCents)
	}
	if order.BookPriceCents != 4500 {
		t.Fatalf("order must snapshot the shelf price, got %d", order.BookPriceCents)
	}
}

func TestProcessCheckoutCompletedConcurrentSameBook(t *testing.T) {
	store := newMemStore(testBook())
	refunder := &fakeRefunder{}
	mailer := &fakeMailer{}
	svc := newTestService(store, refunder, mailer)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, sid := range []string{"cs_a", "cs_b"} {
		wg.Add(1)
		go func(i int, sid string) {
			defer wg.Done()
			results[i] = svc.ProcessCheckoutCompleted(context.Background(), testSession(sid))
		}(i, sid)
	}
	wg.Wait()

	if store.orderCount() != 1 {
		t.Fatalf("exactly one order may win the copy, got %d", store.orderCount())
	}
	if store.books[7].IsAvailable {
		t.Fatal("book must end up sold")
	}
	if len(refunder.calls) != 1 {
		t.Fatalf("exactly one refund for the loser, got %v", refunder.calls)
	}
	for i, r := range results {
		if r.Disposition != DispositionOK {
			t.Fatalf("result %d not acknowledged: %+v", i, r)
		}
	}
}

func TestProcessCheckoutCompletedConcurrentDifferentBooks(t *testing.T) {
	other := &models.Book{ID: 8, Title: "Cold Comfort Farm", Author: "Stella Gibbons", PriceCents: 1500, IsAvailable: true}
	store := newMemStore(testBook(), other)
	refunder := &fakeRefunder{}
	mailer := &fakeMailer{}
	svc := newTestService(store, refunder, mailer)

	sessionA := testSession("cs_a")
	sessionB := testSession("cs_b")
	sessionB.Metadata["book_id"] = "8"
	sessionB.AmountTotal = amount(1500)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, s := range []*payments.CheckoutSession{sessionA, sessionB} {
		wg.Add(1)
		go func(i int, s *payments.CheckoutSession) {
			defer wg.Done()
			results[i] = svc.ProcessCheckoutCompleted(context.Background(), s)
		}(i, s)
	}
	wg.Wait()

	if store.orderCount() != 2 {
		t.Fatalf("both purchases should succeed, got %d orders", store.orderCount())
	}
	if len(refunder.calls) != 0 {
		t.Fatalf("no refunds expected, got %v", refunder.calls)
	}
	for i, r := range results {
		if r.Disposition != DispositionOK || r.Message != "Order processed successfully" {
			t.Fatalf("result %d: %+v", i, r)
		}
	}
}

func TestProcessCheckoutCompletedMailFailureDoesNotChangeResult(t *testing.T) {
	store := newMemStore(testBook())
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc := newTestService(store, &fakeRefunder{}, mailer)

	result := svc.ProcessCheckoutCompleted(context.Background(), testSession("cs_8"))
	if result.Disposition != DispositionOK {
		t.Fatalf("email failures are best-effort, got %+v", result)
	}
	if store.orderCount() != 1 {
		t.Fatal("order must still be recorded")
	}
}
