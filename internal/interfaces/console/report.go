package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/sawpanic/cryptoquote/internal/quote"
)

const bannerWidth = 40

var banner = strings.Repeat("-", bannerWidth)

// WriteReport renders quotes in input order between two banners.
func WriteReport(w io.Writer, quotes []quote.Quote) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "\nHere are the prices of the cryptocurrencies you requested:")
	fmt.Fprintln(bw, banner)
	for _, q := range quotes {
		fmt.Fprintln(bw, FormatLine(q))
	}
	fmt.Fprintln(bw, banner)
	fmt.Fprintln(bw, "Prices are fetched from CoinGecko.")
	fmt.Fprintln(bw)
	return bw.Flush()
}

// FormatLine renders "Name: $price" for priced quotes and "Name: message"
// otherwise.
func FormatLine(q quote.Quote) string {
	value := q.Display()
	if q.Status == quote.StatusPriced {
		value = "$" + value
	}
	return TitleCase(q.Input) + ": " + value
}

// TitleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "usd-coin" becomes "Usd-Coin" and "1inch"
// becomes "1Inch".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		cased := unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
		switch {
		case cased && prevCased:
			b.WriteRune(unicode.ToLower(r))
		case cased:
			b.WriteRune(unicode.ToTitle(r))
		default:
			b.WriteRune(r)
		}
		prevCased = cased
	}
	return b.String()
}
