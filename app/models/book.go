package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Book is a single physical copy offered for sale. IsAvailable is the sole
// purchasability gate: the order finalizer flips it to false exactly once,
// under a row lock, in the same transaction that creates the Order.
type Book struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=1,max=200"`
	Author         string    `gorm:"type:varchar(200);not null" json:"author" validate:"required,min=1,max=200"`
	ISBN           string    `gorm:"type:varchar(13);default:''" json:"isbn" validate:"omitempty,max=13"`
	Description    string    `gorm:"type:text" json:"description"`
	PublishedYear  int       `gorm:"default:0" json:"published_year"`
	PriceCents     int64     `gorm:"not null;default:1000" json:"price_cents" validate:"gte=0"`
	IsAvailable    bool      `gorm:"default:true;index" json:"is_available"`
	CoverImagePath string    `gorm:"type:varchar(255);default:''" json:"cover_image_path"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Book model
func (Book) TableName() string {
	return "books"
}

func (b *Book) Validate() error {
	v := validator.New()
	return v.Struct(b)
}

// PriceDisplay formats the price in pounds for templates and emails.
func (b *Book) PriceDisplay() string {
	return FormatPence(b.PriceCents)
}

// FormatPence renders an amount of minor currency units as £x.xx.
func FormatPence(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s£%d.%02d", sign, cents/100, cents%100)
}

// ParsePounds converts a decimal amount like "12.50" into pence. At most two
// decimal places are accepted; amounts never round silently.
func ParsePounds(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "£"))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	whole, frac, _ := strings.Cut(s, ".")
	pounds, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	var pence int64
	switch len(frac) {
	case 0:
	case 1:
		frac += "0"
		fallthrough
	case 2:
		pence, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	default:
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	if pounds < 0 {
		return 0, fmt.Errorf("negative amount %q", s)
	}
	return pounds*100 + pence, nil
}

// FindAvailableBooks returns all books currently purchasable, ordered by title.
func FindAvailableBooks(db *gorm.DB) ([]Book, error) {
	var books []Book
	err := db.Where("is_available = ?", true).Order("title ASC").Find(&books).Error
	return books, err
}
