package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		amount   float64
		currency string
		ok       bool
	}{
		{"dollar k suffix", "$10k", 10_000, "USD", true},
		{"dollar m suffix", "$1.5M", 1_500_000, "USD", true},
		{"bare m suffix", "1.5m", 1_500_000, "", true},
		{"code after amount", "5,000 EUR", 5_000, "EUR", true},
		{"code before amount", "USD 25,000", 25_000, "USD", true},
		{"symbol with commas", "$250,000", 250_000, "USD", true},
		{"surrounding words", "Up to $250,000 in awards", 250_000, "USD", true},
		{"pound symbol", "£2,500", 2_500, "GBP", true},
		{"rupee grouping", "₹2,00,000", 200_000, "INR", true},
		{"plain integer", "5000", 5_000, "", true},
		{"decimal", "1234.56", 1234.56, "", true},
		{"knowledge", "Knowledge", 0, "", true},
		{"swag", "Swag and stickers", 0, "", true},
		{"medals", "Medals", 0, "", true},
		{"kudos", "kudos", 0, "", true},
		{"empty", "", 0, "", false},
		{"no digits", "a generous prize", 0, "", false},
		{"code is not enough", "EUR", 0, "EUR", false},
		{"code inside word ignored", "NEURAL 5000", 5_000, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, currency, ok := ParseAmount(tt.text)
			require.Equal(t, tt.ok, ok, "ok")
			assert.Equal(t, tt.currency, currency, "currency")
			if ok {
				assert.InDelta(t, tt.amount, amount, 1e-9, "amount")
			}
		})
	}
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("5,000 EUR", "EUR"))
	assert.True(t, containsWord("EUR 5,000", "EUR"))
	assert.False(t, containsWord("NEURAL", "EUR"))
	assert.False(t, containsWord("EUROPE", "EUR"))
	assert.True(t, containsWord("NEURAL EUR", "EUR"))
}
