package models

import "time"

// Product represents a product in the store.
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Title       string    `json:"title" gorm:"type:varchar(255)" bson:"title"`
	Gender      string    `json:"gender" gorm:"type:varchar(10);index:idx_products_gender_sub" bson:"gender"`
	Category    string    `json:"category" gorm:"type:varchar(50)" bson:"category"`
	Subcategory string    `json:"subcategory" gorm:"type:varchar(50);index:idx_products_gender_sub" bson:"subcategory"`
	Price       float64   `json:"price" gorm:"index" bson:"price"`
	Description string    `json:"description,omitempty" gorm:"type:text" bson:"description,omitempty"`
	Images      []string  `json:"images" gorm:"type:text;serializer:json" bson:"images"`
	Available   bool      `json:"available" bson:"available"`
	CreatedAt   time.Time `json:"created_at" gorm:"index" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Gender      string
	Subcategory string
	MinPrice    *float64
	MaxPrice    *float64
	Skip        int
	Limit       int
	SortBy      string
	SortDir     int // 1 ascending, -1 descending
}
