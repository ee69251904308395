package notify

// Template names understood by the Renderer.
const (
	TemplateOrderConfirmed = "order_confirmed"
	TemplateOrderShipped   = "order_shipped"
	TemplateOrderDelivered = "order_delivered"
	TemplateOrderCancelled = "order_cancelled"
	TemplateReturnRefunded = "return_refunded"
	TemplateReturnRejected = "return_rejected"
	TemplatePasswordReset  = "password_reset"
)

// Job is one email to render and send.
type Job struct {
	Template string         `json:"template"`
	To       string         `json:"to"`
	Data     map[string]any `json:"data"`
}

// Dispatcher schedules jobs for delivery. Dispatch never blocks on delivery
// and never reports delivery failures to the caller.
type Dispatcher interface {
	Dispatch(job Job)
}
