package shared

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a monetary amount with grouping separators at two
// decimal places, for memos and error details.
func FormatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}

// Round2 rounds a monetary amount to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
