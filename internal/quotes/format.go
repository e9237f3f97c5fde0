package quotes

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var moneyPrinter = message.NewPrinter(language.MustParse("es-AR"))

// FormatMoney renders an amount the way the Argentinian UI shows it:
// thousands separated by dots, two decimals after a comma.
func FormatMoney(v float64) string {
	return moneyPrinter.Sprintf("$ %v",
		number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
