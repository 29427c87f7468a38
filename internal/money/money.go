// Package money renders currency amounts for user-facing content blocks,
// honoring the locale supplied in the request metadata.
package money

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLocale is used when the request metadata carries no locale.
const DefaultLocale = "en-US"

// Format renders amount as a USD string for the given BCP 47 locale, for
// example "$1,234.50" for en-US. Unparseable locales fall back to
// DefaultLocale rather than failing the dispatch.
func Format(locale string, amount float64) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	p := message.NewPrinter(tag)
	return p.Sprintf("%v", currency.NarrowSymbol(currency.USD.Amount(amount)))
}
