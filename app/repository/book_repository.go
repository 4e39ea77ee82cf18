package repository

import (
	"github.com/mkellner/bookshop/app/models"
	"gorm.io/gorm"
)

// bookRepository implements the BookRepository interface
type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository instance
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

// Create stores a new book in the database
func (r *bookRepository) Create(book *models.Book) error {
	return r.db.Create(book).Error
}

// GetByID retrieves a book by its ID
func (r *bookRepository) GetByID(id uint) (*models.Book, error) {
	var book models.Book
	err := r.db.First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetAvailable retrieves all purchasable books ordered by title
func (r *bookRepository) GetAvailable() ([]models.Book, error) {
	var books []models.Book
	err := r.db.Where("is_available = ?", true).Order("title ASC").Find(&books).Error
	return books, err
}

// GetAll retrieves every book, including sold ones, for the admin list
func (r *bookRepository) GetAll() ([]models.Book, error) {
	var books []models.Book
	err := r.db.Order("title ASC").Find(&books).Error
	return books, err
}

// Update saves changes to an existing book
func (r *bookRepository) Update(book *models.Book) error {
	return r.db.Save(book).Error
}

// Delete removes a book by its ID
func (r *bookRepository) Delete(id uint) error {
	return r.db.Delete(&models.Book{}, id).Error
}

// Count returns the total number of books
func (r *bookRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Book{}).Count(&count).Error
	return count, err
}

// Search finds books whose title, author or ISBN matches the query
func (r *bookRepository) Search(query string) ([]models.Book, error) {
	var books []models.Book
	like := "%" + query + "%"
	err := r.db.Where("title LIKE ? OR author LIKE ? OR isbn LIKE ?", like, like, like).
		Order("title ASC").Find(&books).Error
	return books, err
}
