package notifications

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/CourseFox/internal/pkg/catalog"
)

// Content is a rendered confirmation email.
type Content struct {
	Subject string
	HTML    string
	Text    string
}

// FormatAmount renders minor units as "INR 499.00".
func FormatAmount(minor int64, currency string) string {
	return strings.ToUpper(currency) + " " + decimal.New(minor, -2).StringFixed(2)
}

// BuildOrderConfirmation renders the enrollment email. The output depends
// only on d, so every send path produces the same message.
func BuildOrderConfirmation(d *OrderDetails) Content {
	itemName := catalog.DisplayName(d.Order.ItemID)

	amount := d.Order.PayableAmount
	currency := d.Order.Currency
	paymentID := "-"
	paidAt := d.Order.UpdatedAt
	if d.Payment != nil {
		amount = d.Payment.Amount
		currency = d.Payment.Currency
		paymentID = d.Payment.GatewayPaymentID
		paidAt = d.Payment.CreatedAt
	}
	amountText := FormatAmount(amount, currency)

	name := strings.TrimSpace(d.User.Name)
	if name == "" {
		name = "there"
	}

	var nextClass string
	if at, ok := catalog.NextLiveClass(d.Order.ItemID, paidAt); ok {
		nextClass = at.Format("Monday, 02 Jan 2006 at 3:04 PM") + " IST"
	}

	subject := "Enrollment confirmed: " + itemName

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n", name)
	fmt.Fprintf(&text, "Your enrollment in %s is confirmed.\n\n", itemName)
	fmt.Fprintf(&text, "Order ID: %d\n", d.Order.ID)
	fmt.Fprintf(&text, "Amount paid: %s\n", amountText)
	fmt.Fprintf(&text, "Payment ID: %s\n", paymentID)
	if nextClass != "" {
		fmt.Fprintf(&text, "Next live class: %s\n", nextClass)
	}
	text.WriteString("\nSee you in class!\n")

	var b strings.Builder
	b.WriteString(`<html>
  <body style="font-family: sans-serif;">
    <h2>Enrollment confirmed</h2>
`)
	fmt.Fprintf(&b, "    <p>Hi %s,</p>\n", html.EscapeString(name))
	fmt.Fprintf(&b, "    <p>Your enrollment in <strong>%s</strong> is confirmed.</p>\n", html.EscapeString(itemName))
	fmt.Fprintf(&b, "    <p><strong>Order ID:</strong> %d</p>\n", d.Order.ID)
	fmt.Fprintf(&b, "    <p><strong>Amount paid:</strong> %s</p>\n", html.EscapeString(amountText))
	fmt.Fprintf(&b, "    <p><strong>Payment ID:</strong> %s</p>\n", html.EscapeString(paymentID))
	if nextClass != "" {
		fmt.Fprintf(&b, "    <p><strong>Next live class:</strong> %s</p>\n", html.EscapeString(nextClass))
	}
	b.WriteString(`    <p>See you in class!</p>
  </body>
</html>
`)

	return Content{Subject: subject, HTML: b.String(), Text: text.String()}
}
