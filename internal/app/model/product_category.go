package model

import (
	"time"
)

// ProductCategory links a product to a category. A product has at most one
// primary link; a partial unique index on (product_id) WHERE is_primary
// enforces this at the database level (see internal/db/migrate.go).
type ProductCategory struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ProductID  uint      `gorm:"uniqueIndex:idx_product_categories_pair;index;not null" json:"product_id"`
	CategoryID uint      `gorm:"uniqueIndex:idx_product_categories_pair;index;not null" json:"category_id"`
	IsPrimary  bool      `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt  time.Time `json:"created_at"`

	Product  Product  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Category Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"category,omitempty"`
}

func (ProductCategory) TableName() string {
	return "product_categories"
}
