package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// nonMonetaryTokens are prize values some sources use for competitions
// without a cash pool. They parse as amount 0, not as a failure.
var nonMonetaryTokens = []string{"knowledge", "swag", "medal", "medals", "kudos"}

// currencySymbols maps leading symbols to ISO codes.
var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"₹": "INR",
	"¥": "JPY",
}

// currencyCodes are recognized when spelled out next to the amount.
var currencyCodes = []string{"USD", "EUR", "GBP", "INR", "JPY", "CAD", "AUD", "CHF"}

var amountPattern = regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]+)?)\s*([km])?`)

// ParseAmount extracts a prize value from free text: currency symbol or
// code, the numeric portion with thousands separators stripped, and k/m
// multipliers. Returns ok=false when no amount can be recovered. The
// currency return is empty when the text names none.
func ParseAmount(text string) (float64, string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", false
	}

	low := strings.ToLower(text)
	for _, token := range nonMonetaryTokens {
		if strings.Contains(low, token) {
			return 0, "", true
		}
	}

	currency := ""
	for sym, code := range currencySymbols {
		if strings.Contains(text, sym) {
			currency = code
			break
		}
	}
	if currency == "" {
		up := strings.ToUpper(text)
		for _, code := range currencyCodes {
			if containsWord(up, code) {
				currency = code
				break
			}
		}
	}

	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, currency, false
	}

	digits := strings.ReplaceAll(m[1], ",", "")
	value, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, currency, false
	}

	switch strings.ToLower(m[2]) {
	case "k":
		value *= 1_000
	case "m":
		value *= 1_000_000
	}

	if value < 0 {
		return 0, currency, false
	}
	return value, currency, true
}

// containsWord reports whether code appears as its own token, so "EUR"
// does not match inside "NEURAL".
func containsWord(s, code string) bool {
	idx := strings.Index(s, code)
	for idx >= 0 {
		before := idx == 0 || !isAlnum(s[idx-1])
		afterIdx := idx + len(code)
		after := afterIdx >= len(s) || !isAlnum(s[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(s[idx+1:], code)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
