package invoice

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used when a document carries no currency code.
const DefaultCurrency = "USD"

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"IDR": "Rp",
	"AUD": "A$",
	"CAD": "C$",
}

var printer = message.NewPrinter(language.English)

// Round2 rounds v to cents, half away from zero. Every displayed figure
// goes through here so the preview and the PDF agree.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// FormatAmount renders v with two decimals and thousands grouping.
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	rounded := decimal.NewFromFloat(v).Round(2)
	f, _ := rounded.Abs().Float64()
	out := printer.Sprintf("%.2f", f)
	if rounded.IsNegative() {
		return "-" + out
	}
	return out
}

// FormatMoney renders v in the given currency, e.g. "$1,080.00".
func FormatMoney(v float64, code string) string {
	code = NormalizeCurrency(code)
	amount := FormatAmount(v)
	neg := strings.HasPrefix(amount, "-")
	amount = strings.TrimPrefix(amount, "-")
	sym, ok := symbols[code]
	if !ok {
		sym = code + " "
	}
	if neg {
		return "-" + sym + amount
	}
	return sym + amount
}

// FormatQuantity renders a quantity with two decimals.
func FormatQuantity(v float64) string {
	return FormatAmount(v)
}

// NormalizeCurrency upper-cases a currency code and falls back to
// DefaultCurrency when it is not a known ISO 4217 code.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return DefaultCurrency
	}
	return unit.String()
}
