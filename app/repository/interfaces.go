package repository

import (
	"github.com/mkellner/bookshop/app/models"
	"gorm.io/gorm"
)

// BookRepository defines the interface for book-related database operations
type BookRepository interface {
	Create(book *models.Book) error
	GetByID(id uint) (*models.Book, error)
	GetAvailable() ([]models.Book, error)
	GetAll() ([]models.Book, error)
	Update(book *models.Book) error
	Delete(id uint) error
	Count() (int64, error)
	Search(query string) ([]models.Book, error)
}

// OrderRepository defines the interface for order-related database operations.
// Order creation is intentionally absent here: orders are only ever created by
// the checkout finalizer inside its locked transaction (internal/pkg/orders).
type OrderRepository interface {
	GetByID(id uint) (*models.Order, error)
	GetBySessionID(sessionID string) (*models.Order, error)
	GetAll(offset, limit int) ([]models.Order, error)
	GetUnfulfilled() ([]models.Order, error)
	Count() (int64, error)
	Update(order *models.Order) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Book  BookRepository
	Order OrderRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Book:  NewBookRepository(db),
		Order: NewOrderRepository(db),
	}
}
