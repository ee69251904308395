package models

import "time"

// PaymentStatus tracks the payment axis of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING_PAYMENT"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// FulfillmentStatus tracks the shipping axis of an order.
type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "PENDING"
	FulfillmentProcessing FulfillmentStatus = "PROCESSING"
	FulfillmentShipped    FulfillmentStatus = "SHIPPED"
	FulfillmentDelivered  FulfillmentStatus = "DELIVERED"
	FulfillmentCancelled  FulfillmentStatus = "CANCELLED"
)

// OrderItem represents a single item within an order.
type OrderItem struct {
	ProductID string  `json:"product_id" bson:"product_id"`
	Name      string  `json:"name" bson:"name"`
	Price     float64 `json:"price" bson:"price"` // Price at the time of order
	Quantity  int     `json:"quantity" bson:"quantity"`
	Size      string  `json:"size,omitempty" bson:"size,omitempty"`
	Image     string  `json:"image,omitempty" bson:"image,omitempty"`
}

// ShippingAddress is where the order is delivered.
type ShippingAddress struct {
	FullName     string `json:"full_name" bson:"full_name" validate:"required"`
	Phone        string `json:"phone" bson:"phone" validate:"required"`
	Pincode      string `json:"pincode" bson:"pincode" validate:"required"`
	AddressLine1 string `json:"address_line1" bson:"address_line1" validate:"required"`
	AddressLine2 string `json:"address_line2,omitempty" bson:"address_line2,omitempty"`
	City         string `json:"city" bson:"city" validate:"required"`
	State        string `json:"state" bson:"state" validate:"required"`
	Country      string `json:"country" bson:"country" validate:"required"`
	Landmark     string `json:"landmark,omitempty" bson:"landmark,omitempty"`
}

// Order represents a customer order.
type Order struct {
	ID                string            `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Email             string            `json:"email" gorm:"type:varchar(255);index" bson:"email"`
	CustomerName      string            `json:"customer_name,omitempty" gorm:"type:varchar(255)" bson:"customer_name,omitempty"`
	Items             []OrderItem       `json:"items" gorm:"type:text;serializer:json" bson:"items"`
	Amount            float64           `json:"amount" bson:"amount"`
	ShippingAddress   ShippingAddress   `json:"shipping_address" gorm:"type:text;serializer:json" bson:"shipping_address"`
	RazorpayOrderID   string            `json:"razorpay_order_id" gorm:"type:varchar(64);index" bson:"razorpay_order_id"`
	RazorpayPaymentID string            `json:"razorpay_payment_id,omitempty" gorm:"type:varchar(64)" bson:"razorpay_payment_id,omitempty"`
	PaymentStatus     PaymentStatus     `json:"payment_status" gorm:"type:varchar(20)" bson:"payment_status"`
	Status            FulfillmentStatus `json:"status" gorm:"type:varchar(20)" bson:"status"`
	TrackingURL       string            `json:"tracking_url,omitempty" gorm:"type:text" bson:"tracking_url,omitempty"`
	TrackingID        string            `json:"tracking_id,omitempty" gorm:"type:varchar(128)" bson:"tracking_id,omitempty"`
	CourierName       string            `json:"courier_name,omitempty" gorm:"type:varchar(128)" bson:"courier_name,omitempty"`
	CreatedAt         time.Time         `json:"created_at" gorm:"index" bson:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" bson:"updated_at"`
}

// OrderStats aggregates order counts and revenue for the dashboard.
type OrderStats struct {
	Total        int64   `json:"total"`
	Today        int64   `json:"today"`
	Revenue      float64 `json:"total_revenue"`
	TodayRevenue float64 `json:"today_revenue"`
}
