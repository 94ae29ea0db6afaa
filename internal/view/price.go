package view

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// NoStoresLabel is shown in place of a price when no offer has one.
const NoStoresLabel = "No stores selling this product near you"

// PriceFormatter renders prices with a currency symbol and locale-aware digits.
type PriceFormatter struct {
	symbol  string
	printer *message.Printer
}

// NewPriceFormatter creates a formatter. An unparseable locale falls back to
// English.
func NewPriceFormatter(symbol, locale string) *PriceFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &PriceFormatter{symbol: symbol, printer: message.NewPrinter(tag)}
}

// Amount formats p without a label, e.g. "₹12.5".
func (f *PriceFormatter) Amount(p float64) string {
	return f.symbol + f.printer.Sprintf("%v", number.Decimal(p, number.MaxFractionDigits(2)))
}

// Label returns "From <amount>" for a known price and NoStoresLabel otherwise.
func (f *PriceFormatter) Label(p *float64) string {
	if p == nil {
		return NoStoresLabel
	}
	return "From " + f.Amount(*p)
}
