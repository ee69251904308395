package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"jlrp/internal/mailer"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var subjects = map[string]string{
	TemplateOrderConfirmed: "Order {{.order_id}} confirmed",
	TemplateOrderShipped:   "Your order {{.order_id}} has shipped",
	TemplateOrderDelivered: "Your order {{.order_id}} has been delivered",
	TemplateOrderCancelled: "Your order {{.order_id}} has been cancelled",
	TemplateReturnRefunded: "Refund issued for order {{.order_id}}",
	TemplateReturnRejected: "Update on your return for order {{.order_id}}",
	TemplatePasswordReset:  "Reset your {{.brand}} password",
}

// Renderer turns jobs into email messages. HTML bodies are auto-escaped;
// every template also has a plain-text version.
type Renderer struct {
	brand    string
	html     *htmltemplate.Template
	text     *texttemplate.Template
	subjects *texttemplate.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer(brand string) (*Renderer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text templates: %w", err)
	}
	subj := texttemplate.New("subjects")
	for name, s := range subjects {
		if _, err := subj.New(name).Parse(s); err != nil {
			return nil, fmt.Errorf("failed to parse subject %s: %w", name, err)
		}
	}
	return &Renderer{brand: brand, html: html, text: text, subjects: subj}, nil
}

// Render produces the message for job.
func (r *Renderer) Render(job Job) (mailer.Message, error) {
	if _, ok := subjects[job.Template]; !ok {
		return mailer.Message{}, fmt.Errorf("unknown email template %q", job.Template)
	}
	if job.To == "" {
		return mailer.Message{}, fmt.Errorf("email %s has no recipient", job.Template)
	}

	data := make(map[string]any, len(job.Data)+2)
	for k, v := range job.Data {
		data[k] = v
	}
	data["brand"] = r.brand
	if name, _ := data["customer_name"].(string); strings.TrimSpace(name) == "" {
		data["customer_name"] = "Customer"
	}

	var subject, text, html bytes.Buffer
	if err := r.subjects.ExecuteTemplate(&subject, job.Template, data); err != nil {
		return mailer.Message{}, fmt.Errorf("render subject %s: %w", job.Template, err)
	}
	if err := r.text.ExecuteTemplate(&text, job.Template+".txt", data); err != nil {
		return mailer.Message{}, fmt.Errorf("render text %s: %w", job.Template, err)
	}
	if err := r.html.ExecuteTemplate(&html, job.Template+".html", data); err != nil {
		return mailer.Message{}, fmt.Errorf("render html %s: %w", job.Template, err)
	}
	return mailer.Message{
		To:      job.To,
		Subject: subject.String(),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// FormatINR formats a rupee amount for display, e.g. ₹1,299.50.
func FormatINR(amount float64) string {
	s := decimal.NewFromFloat(amount).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := "₹" + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// FormatPaise formats an amount in paise for display.
func FormatPaise(paise int64) string {
	f, _ := decimal.New(paise, -2).Float64()
	return FormatINR(f)
}
