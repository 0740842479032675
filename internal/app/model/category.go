package model

import (
	"time"
)

// Category groups products. Categories are hard-deleted; links to products
// are cleaned up by the association layer before a delete goes through.
type Category struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex:idx_categories_name;not null" json:"name"`
	Slug        string    `gorm:"type:varchar(120);uniqueIndex" json:"slug"`
	Description string    `gorm:"type:varchar(500)" json:"description"`
	ImageURL    string    `json:"image_url"`
	Active      bool      `gorm:"not null" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Links []ProductCategory `gorm:"foreignKey:CategoryID" json:"-"`
}

func (Category) TableName() string {
	return "categories"
}
