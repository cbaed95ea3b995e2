// File: internal/locale/profiles.go
package locale

import "github.com/nullwave7/gatescout/api/schemas"

// profiles holds the checkout persona for every supported locale, keyed by
// the two-letter code used throughout the pipeline. Values are deliberately
// boring test personas, not real people.
var profiles = map[string]schemas.LocaleProfile{
	"en": {
		Code:           "en",
		AcceptLanguage: "en-US,en;q=0.9",
		FirstName:      "John",
		LastName:       "Smith",
		Address:        "123 Main Street",
		PostalCode:     "10001",
		City:           "New York",
		Phone:          "+12125551234",
		Email:          "john.smith@example.com",
		CardLabel:      "Credit card",
		PayLabel:       "Pay now",
	},
	"fr": {
		Code:           "fr",
		AcceptLanguage: "fr-FR,fr;q=0.9",
		FirstName:      "Jean",
		LastName:       "Dupont",
		Address:        "12 Rue de la Paix",
		PostalCode:     "75002",
		City:           "Paris",
		Phone:          "+33612345678",
		Email:          "jean.dupont@example.com",
		CardLabel:      "Carte bancaire",
		PayLabel:       "Payer maintenant",
	},
	"de": {
		Code:           "de",
		AcceptLanguage: "de-DE,de;q=0.9",
		FirstName:      "Max",
		LastName:       "Mustermann",
		Address:        "Hauptstraße 5",
		PostalCode:     "10115",
		City:           "Berlin",
		Phone:          "+4915123456789",
		Email:          "max.mustermann@example.com",
		CardLabel:      "Kreditkarte",
		PayLabel:       "Jetzt bezahlen",
	},
	"dk": {
		Code:           "dk",
		AcceptLanguage: "da-DK,da;q=0.9",
		FirstName:      "Anders",
		LastName:       "Jensen",
		Address:        "Nørregade 12",
		PostalCode:     "1165",
		City:           "København",
		Phone:          "+4520123456",
		Email:          "anders.jensen@example.com",
		CardLabel:      "Betalingskort",
		PayLabel:       "Gennemfør betaling",
	},
	"se": {
		Code:           "se",
		AcceptLanguage: "sv-SE,sv;q=0.9",
		FirstName:      "Erik",
		LastName:       "Andersson",
		Address:        "Drottninggatan 10",
		PostalCode:     "111 51",
		City:           "Stockholm",
		Phone:          "+46701234567",
		Email:          "erik.andersson@example.com",
		CardLabel:      "Kort",
		PayLabel:       "Slutför köp",
	},
	"no": {
		Code:           "no",
		AcceptLanguage: "nb-NO,no;q=0.9",
		FirstName:      "Ola",
		LastName:       "Nordmann",
		Address:        "Karl Johans gate 1",
		PostalCode:     "0154",
		City:           "Oslo",
		Phone:          "+4741234567",
		Email:          "ola.nordmann@example.com",
		CardLabel:      "Kort",
		PayLabel:       "Fullfør kjøp",
	},
	"nl": {
		Code:           "nl",
		AcceptLanguage: "nl-NL,nl;q=0.9",
		FirstName:      "Jan",
		LastName:       "de Vries",
		Address:        "Kalverstraat 1",
		PostalCode:     "1012 NX",
		City:           "Amsterdam",
		Phone:          "+31612345678",
		Email:          "jan.devries@example.com",
		CardLabel:      "Creditcard",
		PayLabel:       "Nu betalen",
	},
	"es": {
		Code:           "es",
		AcceptLanguage: "es-ES,es;q=0.9",
		FirstName:      "Carlos",
		LastName:       "García",
		Address:        "Calle Mayor 8",
		PostalCode:     "28013",
		City:           "Madrid",
		Phone:          "+34612345678",
		Email:          "carlos.garcia@example.com",
		CardLabel:      "Tarjeta de crédito",
		PayLabel:       "Pagar ahora",
	},
	"it": {
		Code:           "it",
		AcceptLanguage: "it-IT,it;q=0.9",
		FirstName:      "Marco",
		LastName:       "Rossi",
		Address:        "Via Roma 15",
		PostalCode:     "00184",
		City:           "Roma",
		Phone:          "+393331234567",
		Email:          "marco.rossi@example.com",
		CardLabel:      "Carta di credito",
		PayLabel:       "Paga ora",
	},
	"fi": {
		Code:           "fi",
		AcceptLanguage: "fi-FI,fi;q=0.9",
		FirstName:      "Matti",
		LastName:       "Virtanen",
		Address:        "Mannerheimintie 3",
		PostalCode:     "00100",
		City:           "Helsinki",
		Phone:          "+358401234567",
		Email:          "matti.virtanen@example.com",
		CardLabel:      "Maksukortti",
		PayLabel:       "Maksa nyt",
	},
}

// aliases maps ISO language codes onto the profile keys above where the two
// differ (Danish is "da" but the store lives under ".dk", and so on).
var aliases = map[string]string{
	"da": "dk",
	"sv": "se",
	"nb": "no",
	"nn": "no",
}

// Default returns the profile used when nothing about the URL identifies a
// locale.
func Default() schemas.LocaleProfile {
	return profiles["en"]
}

// Supported reports the locale codes with a profile, for diagnostics.
func Supported() []string {
	codes := make([]string, 0, len(profiles))
	for code := range profiles {
		codes = append(codes, code)
	}
	return codes
}
