package market

import (
	"fmt"
	"io"
	"os"
	"strings"

	"tradebook/internal/money"
)

// nullSide is the CurrentMarketSide "null object" substituted whenever
// a side's price is absent or its top volume is zero (spec.md §4.6).
func nullSide(cache *money.Cache) Side {
	return Side{Price: cache.Intern(0), Volume: 0}
}

// Tracker composes a ProductBook's top-of-book into a Side pair,
// prints the banner, and forwards the pair to a Publisher. It
// implements book.MarketUpdater.
type Tracker struct {
	cache     *money.Cache
	publisher *Publisher
	out       io.Writer
}

// NewTracker constructs a Tracker that prints banners to out (use
// os.Stdout for the default behavior) and forwards to publisher.
func NewTracker(cache *money.Cache, publisher *Publisher, out io.Writer) *Tracker {
	if out == nil {
		out = os.Stdout
	}
	return &Tracker{cache: cache, publisher: publisher, out: out}
}

// UpdateMarket implements book.MarketUpdater. Width is sellPrice -
// buyPrice, or $0.00 if either side is absent.
func (t *Tracker) UpdateMarket(symbol string, buyPrice money.Price, buyHasPrice bool, buyVol int, sellPrice money.Price, sellHasPrice bool, sellVol int) {
	var width money.Price
	if !buyHasPrice || !sellHasPrice {
		width = t.cache.Intern(0)
	} else {
		width = t.cache.Subtract(sellPrice, buyPrice)
	}

	buy := nullSide(t.cache)
	if buyHasPrice && buyVol != 0 {
		buy = Side{Price: buyPrice, Volume: buyVol}
	}
	sell := nullSide(t.cache)
	if sellHasPrice && sellVol != 0 {
		sell = Side{Price: sellPrice, Volume: sellVol}
	}

	const banner = "***** Current Market *****"
	fmt.Fprintln(t.out, banner)
	fmt.Fprintf(t.out, "* %s %s - %s [%s]\n", symbol, buy, sell, width)
	fmt.Fprintln(t.out, strings.Repeat("*", len(banner)))

	if t.publisher != nil {
		t.publisher.Accept(symbol, buy, sell)
	}
}
