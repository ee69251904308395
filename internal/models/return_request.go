package models

import "time"

// ReturnStatus is the lifecycle state of a return request.
type ReturnStatus string

const (
	ReturnPending         ReturnStatus = "pending"
	ReturnPickupScheduled ReturnStatus = "pickup-scheduled"
	ReturnRefunding       ReturnStatus = "refunding"
	ReturnApproved        ReturnStatus = "approved"
	ReturnRefunded        ReturnStatus = "refunded"
	ReturnRejected        ReturnStatus = "rejected"
)

// ReturnRequest is a customer's request to return one line item of a delivered order.
type ReturnRequest struct {
	ID                string       `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	OrderID           string       `json:"order_id" gorm:"type:varchar(36);index" bson:"order_id"`
	ProductID         string       `json:"product_id" gorm:"type:varchar(36)" bson:"product_id"`
	CustomerEmail     string       `json:"customer_email" gorm:"type:varchar(255);index" bson:"customer_email"`
	Reason            string       `json:"reason" gorm:"type:text" bson:"reason"`
	Photos            []string     `json:"photos" gorm:"type:text;serializer:json" bson:"photos"`
	Status            ReturnStatus `json:"status" gorm:"type:varchar(20);index" bson:"status"`
	RequestedAt       time.Time    `json:"requested_at" gorm:"index" bson:"requested_at"`
	AdminActionAt     *time.Time   `json:"admin_action_at,omitempty" bson:"admin_action_at,omitempty"`
	RefundAmount      int64        `json:"refund_amount" bson:"refund_amount"` // paise
	RazorpayPaymentID string       `json:"razorpay_payment_id,omitempty" gorm:"type:varchar(64)" bson:"razorpay_payment_id,omitempty"`
	RazorpayRefundID  string       `json:"razorpay_refund_id,omitempty" gorm:"type:varchar(64)" bson:"razorpay_refund_id,omitempty"`
	AdminNote         string       `json:"admin_note,omitempty" gorm:"type:text" bson:"admin_note,omitempty"`

	// LineKey is set while the request is open and cleared on rejection;
	// storage keeps it unique so one line item has at most one open request.
	LineKey *string `json:"-" gorm:"type:varchar(80);uniqueIndex" bson:"line_key,omitempty"`
}

// ReturnLineKey builds the uniqueness key for an (order, product) pair.
func ReturnLineKey(orderID, productID string) string {
	return orderID + "|" + productID
}
