// File: internal/extraction/lexicon.go
package extraction

// urlKeywords rank candidate URLs during fallback extraction. A candidate
// containing any of these outranks one that merely lives on a foreign host.
var urlKeywords = []string{
	"checkout",
	"payment",
	"pay",
	"cart",
	"basket",
	"order",
	"billing",
	"secure",
	"stripe",
	"paypal",
	"klarna",
	"adyen",
	"altapay",
	"quickpay",
	"mollie",
	"worldpay",
	"braintree",
	"nets",
	"dibs",
	"payex",
	"vipps",
	"mobilepay",
}

// brandLexicon is the fixed list of card networks, wallets and gateways the
// fallback provider scan recognizes. Matches are reported in this order, so
// keep card networks first.
var brandLexicon = []string{
	"Visa",
	"Mastercard",
	"American Express",
	"Maestro",
	"Dankort",
	"PayPal",
	"Apple Pay",
	"Google Pay",
	"Klarna",
	"Stripe",
	"Adyen",
	"AltaPay",
	"QuickPay",
	"Nets",
	"Dibs",
	"Mollie",
	"Worldpay",
	"Braintree",
	"MobilePay",
	"Vipps",
	"Swish",
	"iDEAL",
	"Bancontact",
	"Giropay",
	"Sofort",
	"Trustly",
}
