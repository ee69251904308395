package models

import "time"

// Payment is an append-only audit row written once per verified payment.
type Payment struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	OrderID   string         `json:"order_id" gorm:"type:varchar(64);index" bson:"order_id"`
	PaymentID string         `json:"payment_id" gorm:"type:varchar(64)" bson:"payment_id"`
	Signature string         `json:"signature" gorm:"type:varchar(128)" bson:"signature"`
	Meta      map[string]any `json:"meta,omitempty" gorm:"type:text;serializer:json" bson:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}
