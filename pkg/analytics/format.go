package analytics

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is the currency code prefixed to formatted amounts
const DefaultCurrency = "AED"

var printer = message.NewPrinter(language.English)

// FormatCurrency formats an amount as "AED 1,234.50"
func FormatCurrency(amount float64) string {
	return FormatCurrencyCode(DefaultCurrency, amount)
}

// FormatCurrencyCode formats an amount with thousands separators and exactly
// two decimals, prefixed by code. Negative amounts keep the sign after the
// code: "AED -1,234.50".
func FormatCurrencyCode(code string, amount float64) string {
	amount = roundCents(amount)
	if amount == 0 {
		// avoid "-0.00"
		amount = 0
	}
	return code + " " + printer.Sprintf("%.2f", amount)
}

// FormatPercent returns numerator/denominator as a percentage with two
// decimals, or "0.00%" when denominator is zero.
func FormatPercent(numerator, denominator int64) string {
	if denominator == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", roundCents(float64(numerator)/float64(denominator)*100))
}

// FormatRatio returns numerator/denominator with two decimals, or "0.00"
// when denominator is zero.
func FormatRatio(numerator, denominator int64) string {
	if denominator == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", roundCents(float64(numerator)/float64(denominator)))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
