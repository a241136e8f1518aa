package pricing

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format renders an amount of cents for display on the kiosk, e.g.
// "$ 12.50" for USD in en-US.  Unknown currency codes fall back to USD
// and unparsable locales to English.
func Format(cents int64, code, locale string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol(unit.Amount(float64(cents) / 100)))
}
