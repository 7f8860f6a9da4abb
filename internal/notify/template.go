package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/service/checkout"

	"github.com/shopspring/decimal"
)

const confirmationHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
<div style="max-width: 600px; margin: auto; background-color: #fff; padding: 20px; border-radius: 8px;">
{{if .Admin}}
  <h2>New order {{.Order.Code}}</h2>
  <p>{{.Contact.FullName}} &middot; {{.Contact.Phone}}{{with .Contact.Email}} &middot; {{.}}{{end}}</p>
{{else}}
  <h2>Thank you for your order</h2>
  <p>Hi {{.Contact.FullName}}, we received order <strong>{{.Order.Code}}</strong>.</p>
{{end}}
  <table style="width: 100%; border-collapse: collapse; margin: 16px 0;">
    <thead>
      <tr style="background-color: #f0f0f0;">
        <th style="padding: 8px; text-align: left;">Item</th>
        <th style="padding: 8px; text-align: right;">Qty</th>
        <th style="padding: 8px; text-align: right;">Price</th>
        <th style="padding: 8px; text-align: right;">Total</th>
      </tr>
    </thead>
    <tbody>
    {{range .Order.Items}}
      <tr>
        <td style="padding: 8px;">{{if .Title}}{{.Title}}{{else}}{{.ProductID}}{{end}}</td>
        <td style="padding: 8px; text-align: right;">{{.Quantity}}</td>
        <td style="padding: 8px; text-align: right;">{{money .UnitPriceCents $.Order.Currency}}</td>
        <td style="padding: 8px; text-align: right;">{{money .LineTotalCents $.Order.Currency}}</td>
      </tr>
    {{end}}
    </tbody>
  </table>
  <p>Subtotal: {{money .Order.SubtotalCents .Order.Currency}}<br>
  Shipping ({{.ShippingTier}}): {{money .Order.ShippingFeeCents .Order.Currency}}<br>
  Tax: {{money .Order.TaxCents .Order.Currency}}<br>
  <strong>Total: {{money .Order.TotalCents .Order.Currency}}</strong></p>
  <p>Payment: {{paymentLabel .Order.Payment}}</p>
{{with .OrderURL}}  <p><a href="{{.}}">View your order</a></p>
{{end}}  <p>Ship to: {{.Shipping.FirstName}} {{.Shipping.LastName}}, {{.Shipping.Address1}}{{with .Shipping.Address2}}, {{.}}{{end}}, {{.Shipping.City}}{{with .Shipping.PostalCode}} {{.}}{{end}}</p>
</div>
</body>
</html>`

var confirmationTmpl = template.Must(template.New("confirmation").Funcs(template.FuncMap{
	"money":        formatMoney,
	"paymentLabel": paymentLabel,
}).Parse(confirmationHTML))

type confirmationView struct {
	checkout.PlacedOrder
	Admin    bool
	OrderURL string
}

// RenderConfirmation renders the order email for the customer, or for the
// shop admin when admin is true. An empty baseURL omits the order link.
func RenderConfirmation(p checkout.PlacedOrder, admin bool, baseURL string) (Message, error) {
	view := confirmationView{PlacedOrder: p, Admin: admin}
	if baseURL != "" {
		view.OrderURL = strings.TrimRight(baseURL, "/") + "/orders/" + url.PathEscape(p.Order.Code)
	}
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, view); err != nil {
		return Message{}, fmt.Errorf("render confirmation: %w", err)
	}
	subject := fmt.Sprintf("Order %s confirmed", p.Order.Code)
	if admin {
		subject = fmt.Sprintf("New order %s (%s)", p.Order.Code, formatMoney(p.Order.TotalCents, p.Order.Currency))
	}
	return Message{Subject: subject, HTML: buf.String()}, nil
}

func formatMoney(cents int64, currency string) string {
	return decimal.New(cents, -2).StringFixed(2) + " " + currency
}

func paymentLabel(p *domain.Payment) string {
	if p == nil {
		return "-"
	}
	switch p.Provider {
	case domain.PaymentProviderCOD:
		return "Cash on delivery"
	case domain.PaymentProviderQR:
		return "QR transfer, awaiting confirmation"
	}
	return string(p.Provider)
}
