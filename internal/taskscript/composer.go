// File: internal/taskscript/composer.go

// Package taskscript turns a target URL and a locale profile into the
// natural-language task handed to the remote browsing provider. The output is
// deterministic: same inputs, same script, byte for byte.
package taskscript

import (
	"fmt"
	"strings"

	"github.com/nullwave7/gatescout/api/schemas"
)

// OutputKeys lists, in reporting order, the exact field prefixes the task
// instructs the agent to emit. The extractor parses these same keys.
var OutputKeys = []string{
	"CHECKOUT_URL",
	"PAYMENT_URL",
	"PAYMENT_GATEWAY",
	"PAYMENT_PROVIDERS",
	"PRODUCT_ADDED",
	"WEBSITE_NAME",
	"STEPS_COMPLETED",
	"ISSUES_ENCOUNTERED",
	"SCREENSHOT_READY",
}

const headerTemplate = `You are controlling a web browser. Your goal is to walk through the online store at %s until you reach the final payment page, then stop and report. Work through the steps below in order and do not skip ahead.`

const dataHeader = `Use exactly these values whenever a form asks for customer details. Do not invent or vary them:`

const stopCondition = `HARD STOP: the task is finished the moment you can see fields asking for a card number, expiry date, or CVC/CVV code. Never type anything into those fields, never submit a payment, and never click any button that would charge money. Reaching that page IS the success condition.`

const outputHeader = `When you stop (for any reason), report what you found as plain text with one field per line, using exactly this format and these uppercase keys:`

const outputFooter = `If you do not know a value, write NONE after the key rather than leaving the line out. Do not wrap the report in markdown or code fences.`

// step describes one ordered action in the checkout plan.
type step struct {
	title  string
	detail string
}

// buildPlan assembles the ordered checkout plan with the profile's literal
// button labels baked in, so the agent can match them on localized pages.
func buildPlan(p schemas.LocaleProfile) []step {
	return []step{
		{
			title:  "Open the store",
			detail: "Load the page. If a cookie or consent banner blocks the view, accept it (the button may read \"Accept\", \"Accept all\", \"OK\", or a local equivalent).",
		},
		{
			title:  "Find a product",
			detail: "Browse to any in-stock product using the menu, a category page, or the search box. Pick something cheap and unremarkable.",
		},
		{
			title:  "Add it to the cart",
			detail: "On the product page, choose any required options such as size or color, then add the item to the cart or basket.",
		},
		{
			title:  "Open the cart",
			detail: "Go to the cart page and confirm the item is in it.",
		},
		{
			title:  "Start checkout",
			detail: fmt.Sprintf("Proceed to checkout. The button may be labeled \"Checkout\", %q, or similar. If the store offers guest checkout, choose it; never create an account.", p.PayLabel),
		},
		{
			title:  "Fill in customer details",
			detail: "Complete every contact, billing, and shipping form using only the customer data listed below, exactly as written.",
		},
		{
			title:  "Pick shipping",
			detail: "If asked, select the cheapest or default shipping option.",
		},
		{
			title:  "Reach the payment step",
			detail: fmt.Sprintf("Continue until the page asks for card details. Card payment may be labeled %q. This is where you stop.", p.CardLabel),
		},
		{
			title:  "Identify the payment setup",
			detail: "Before reporting, note the payment gateway and the accepted payment methods from logos, labels, or URLs visible on the payment page.",
		},
	}
}

// Compose renders the full task script for the target URL with the given
// profile.
func Compose(targetURL string, p schemas.LocaleProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, headerTemplate, targetURL)
	b.WriteString("\n\n")

	for i, s := range buildPlan(p) {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, s.title, s.detail)
	}
	b.WriteString("\n")

	b.WriteString(dataHeader)
	b.WriteString("\n")
	writeDataBlock(&b, p)
	b.WriteString("\n")

	b.WriteString(stopCondition)
	b.WriteString("\n\n")

	b.WriteString(outputHeader)
	b.WriteString("\n")
	for _, key := range OutputKeys {
		fmt.Fprintf(&b, "%s: %s\n", key, keyHint(key))
	}
	b.WriteString("\n")
	b.WriteString(outputFooter)
	b.WriteString("\n")

	return b.String()
}

func writeDataBlock(b *strings.Builder, p schemas.LocaleProfile) {
	fmt.Fprintf(b, "- First name: %s\n", p.FirstName)
	fmt.Fprintf(b, "- Last name: %s\n", p.LastName)
	fmt.Fprintf(b, "- Email: %s\n", p.Email)
	fmt.Fprintf(b, "- Phone: %s\n", p.Phone)
	fmt.Fprintf(b, "- Street address: %s\n", p.Address)
	fmt.Fprintf(b, "- Postal code: %s\n", p.PostalCode)
	fmt.Fprintf(b, "- City: %s\n", p.City)
}

// keyHint returns the placeholder description shown after each output key in
// the report template.
func keyHint(key string) string {
	switch key {
	case "CHECKOUT_URL":
		return "<full URL of the checkout page you reached>"
	case "PAYMENT_URL":
		return "<full URL of the page asking for card details, if different>"
	case "PAYMENT_GATEWAY":
		return "<name of the payment gateway, e.g. Stripe, Adyen, AltaPay>"
	case "PAYMENT_PROVIDERS":
		return "<comma-separated payment methods offered, e.g. Visa, Mastercard, PayPal>"
	case "PRODUCT_ADDED":
		return "<name of the product you added to the cart>"
	case "WEBSITE_NAME":
		return "<name of the store>"
	case "STEPS_COMPLETED":
		return "<short summary of how far you got>"
	case "ISSUES_ENCOUNTERED":
		return "<any blockers such as captchas, logins, or out-of-stock items, else NONE>"
	case "SCREENSHOT_READY":
		return "<YES if the payment page is currently visible, else NO>"
	}
	return "<value>"
}
