package repository

import (
	"github.com/mkellner/bookshop/app/models"
	"gorm.io/gorm"
)

// orderRepository implements the OrderRepository interface
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// GetByID retrieves an order by its ID
func (r *orderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetBySessionID retrieves an order by its checkout session id
func (r *orderRepository) GetBySessionID(sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("stripe_session_id = ?", sessionID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetAll retrieves orders newest first with pagination
func (r *orderRepository) GetAll(offset, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error
	return orders, err
}

// GetUnfulfilled retrieves orders awaiting shipment, oldest first
func (r *orderRepository) GetUnfulfilled() ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("fulfilled = ?", false).Order("created_at ASC").Find(&orders).Error
	return orders, err
}

// Count returns the total number of orders
func (r *orderRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Order{}).Count(&count).Error
	return count, err
}

// Update saves changes to an existing order (fulfillment flags)
func (r *orderRepository) Update(order *models.Order) error {
	return r.db.Save(order).Error
}
