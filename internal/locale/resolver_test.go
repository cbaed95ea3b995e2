// File: internal/locale/resolver_test.go
package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		wantCode string
	}{
		{"French TLD", "https://boutique.example.fr/panier", "fr"},
		{"Danish TLD", "https://shop.example.dk/checkout", "dk"},
		{"German TLD", "https://laden.example.de", "de"},
		{"Subdomain prefix", "https://fr.example.com/products", "fr"},
		{"Path segment", "https://example.com/es/productos", "es"},
		{"Path segment with region", "https://example.com/en-gb/cart", "en"},
		{"Query parameter", "https://example.com/shop?lang=it", "it"},
		{"Query parameter with region", "https://example.com/?locale=sv_SE", "se"},
		{"Danish language alias", "https://example.com/?lang=da", "dk"},
		{"Norwegian bokmål alias", "https://example.com/?lang=nb", "no"},
		{"Plain com domain", "https://example.com/checkout", "en"},
		{"Unsupported TLD", "https://example.jp/cart", "en"},
		{"No reply path does not match Norwegian", "https://example.com/no-reply/inbox", "en"},
		{"Malformed URL", "://///nonsense", "en"},
		{"Not a URL at all", "not-a-url", "en"},
		{"Empty string", "", "en"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.url)
			assert.Equal(t, tc.wantCode, got.Code)
		})
	}
}

func TestResolveFrenchProfile(t *testing.T) {
	got := Resolve("https://boutique.example.fr/panier")

	assert.Equal(t, "fr", got.Code)
	assert.Equal(t, "Carte bancaire", got.CardLabel)
	assert.Equal(t, "Payer maintenant", got.PayLabel)
	assert.Equal(t, "fr-FR,fr;q=0.9", got.AcceptLanguage)
	assert.Equal(t, "Jean", got.FirstName)
}

func TestResolvePrecedence(t *testing.T) {
	t.Run("query parameter beats path", func(t *testing.T) {
		got := Resolve("https://example.com/de/waren?lang=fr")
		assert.Equal(t, "fr", got.Code)
	})

	t.Run("path beats subdomain", func(t *testing.T) {
		got := Resolve("https://de.example.com/it/prodotti")
		assert.Equal(t, "it", got.Code)
	})

	t.Run("subdomain beats TLD", func(t *testing.T) {
		got := Resolve("https://se.example.fr/butik")
		assert.Equal(t, "se", got.Code)
	})
}

func TestResolveIsDeterministic(t *testing.T) {
	urls := []string{
		"https://boutique.example.fr/panier",
		"https://shop.example.dk/checkout",
		"garbage input",
	}
	for _, u := range urls {
		first := Resolve(u)
		second := Resolve(u)
		require.Equal(t, first, second, "Resolve must be a pure function of its input")
	}
}

func TestDefaultProfileIsComplete(t *testing.T) {
	def := Default()
	assert.Equal(t, "en", def.Code)
	assert.NotEmpty(t, def.FirstName)
	assert.NotEmpty(t, def.LastName)
	assert.NotEmpty(t, def.Address)
	assert.NotEmpty(t, def.PostalCode)
	assert.NotEmpty(t, def.City)
	assert.NotEmpty(t, def.Phone)
	assert.NotEmpty(t, def.Email)
	assert.NotEmpty(t, def.CardLabel)
	assert.NotEmpty(t, def.PayLabel)
	assert.NotEmpty(t, def.AcceptLanguage)
}

func TestAllProfilesComplete(t *testing.T) {
	for code, p := range profiles {
		t.Run(code, func(t *testing.T) {
			assert.Equal(t, code, p.Code)
			assert.NotEmpty(t, p.AcceptLanguage)
			assert.NotEmpty(t, p.FirstName)
			assert.NotEmpty(t, p.CardLabel)
			assert.NotEmpty(t, p.PayLabel)
		})
	}
}
