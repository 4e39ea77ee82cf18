package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Order records a completed sale. The book fields are a snapshot taken at
// purchase time so later edits or deletion of the Book never rewrite history.
// StripeSessionID carries a unique index: it is the idempotency key that makes
// duplicate webhook deliveries collapse into a single order at the storage
// layer.
type Order struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Book snapshot (copied at time of purchase)
	BookTitle      string `gorm:"type:varchar(200);not null" json:"book_title"`
	BookAuthor     string `gorm:"type:varchar(200);not null" json:"book_author"`
	BookISBN       string `gorm:"type:varchar(13);default:''" json:"book_isbn"`
	BookPriceCents int64  `gorm:"not null" json:"book_price_cents"`

	// Order details
	StripeSessionID string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_orders_stripe_session_id" json:"stripe_session_id"`
	CustomerEmail   string    `gorm:"type:varchar(255);not null" json:"customer_email" validate:"required,email"`
	AmountPaidCents int64     `gorm:"not null" json:"amount_paid_cents"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Fulfillment tracking
	Fulfilled   bool       `gorm:"default:false" json:"fulfilled"`
	FulfilledAt *time.Time `gorm:"default:null" json:"fulfilled_at,omitempty"`

	// Shipping details
	ShippingName         string `gorm:"type:varchar(255);default:''" json:"shipping_name"`
	ShippingAddressLine1 string `gorm:"type:varchar(255);default:''" json:"shipping_address_line1"`
	ShippingAddressLine2 string `gorm:"type:varchar(255);default:''" json:"shipping_address_line2"`
	ShippingCity         string `gorm:"type:varchar(100);default:''" json:"shipping_city"`
	ShippingState        string `gorm:"type:varchar(100);default:''" json:"shipping_state"`
	ShippingPostalCode   string `gorm:"type:varchar(20);default:''" json:"shipping_postal_code"`
	ShippingCountry      string `gorm:"type:varchar(2);default:''" json:"shipping_country"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

func (o *Order) Validate() error {
	v := validator.New()
	return v.Struct(o)
}

// BeforeSave stamps FulfilledAt the first time Fulfilled flips to true.
// The timestamp is never cleared afterwards.
func (o *Order) BeforeSave(tx *gorm.DB) error {
	if o.Fulfilled && o.FulfilledAt == nil {
		now := time.Now()
		o.FulfilledAt = &now
	}
	return nil
}

// AmountPaidDisplay formats the captured amount in pounds.
func (o *Order) AmountPaidDisplay() string {
	return FormatPence(o.AmountPaidCents)
}
