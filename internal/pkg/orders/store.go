package orders

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mkellner/bookshop/app/models"
)

var (
	// ErrBookNotFound means the book referenced by the event no longer exists.
	ErrBookNotFound = errors.New("orders: book not found")
	// ErrDuplicateSession means an order for this session id already exists;
	// the unique index is the final backstop against concurrent redelivery.
	ErrDuplicateSession = errors.New("orders: order already exists for session")
)

// FinalizeTx is the transactional surface the finalizer runs against. LockBook
// must take an exclusive row lock held until the enclosing transaction ends.
type FinalizeTx interface {
	LockBook(id uint) (*models.Book, error)
	MarkBookSold(id uint) error
	CreateOrder(order *models.Order) error
}

// Store provides the persistence operations of the order finalizer.
type Store interface {
	OrderExists(ctx context.Context, sessionID string) (bool, error)
	// Finalize runs fn inside a single transaction; returning an error rolls
	// everything back.
	Finalize(ctx context.Context, fn func(tx FinalizeTx) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a Store backed by GORM.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) OrderExists(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("stripe_session_id = ?", sessionID).Count(&count).Error
	return count > 0, err
}

func (s *gormStore) Finalize(ctx context.Context, fn func(tx FinalizeTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormFinalizeTx{tx: tx})
	})
}

type gormFinalizeTx struct {
	tx *gorm.DB
}

// LockBook loads the book under SELECT ... FOR UPDATE. Concurrent completions
// for the same book serialize here; the first committer wins the copy.
func (t *gormFinalizeTx) LockBook(id uint) (*models.Book, error) {
	var book models.Book
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

func (t *gormFinalizeTx) MarkBookSold(id uint) error {
	return t.tx.Model(&models.Book{}).Where("id = ?", id).
		Update("is_available", false).Error
}

func (t *gormFinalizeTx) CreateOrder(order *models.Order) error {
	if err := t.tx.Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSession
		}
		return err
	}
	return nil
}
