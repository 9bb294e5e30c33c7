// Package money implements an immutable, cents-denominated price type
// with a bounded flyweight cache, mirroring the pricing model of the
// matching core this module implements.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidPrice is returned for malformed price strings and invalid
// arithmetic operands.
var ErrInvalidPrice = errors.New("invalid price")

// Price is a signed integer count of cents. The zero value is $0.00.
// Two Prices compare equal iff their cents are equal.
type Price struct {
	cents int
}

// IsNegative reports whether p represents a negative amount.
func (p Price) IsNegative() bool {
	return p.cents < 0
}

// Cents returns the underlying integer cent value.
func (p Price) Cents() int {
	return p.cents
}

// Compare returns the difference in cents between p and other. A
// negative result means p < other, zero means equal, positive means
// p > other. Price is a value type and is never nil, so there is no
// null case to handle here (see SPEC_FULL.md §9 on the reference's
// compareTo(null) behavior).
func (p Price) Compare(other Price) int {
	return p.cents - other.cents
}

// Equal reports value equality.
func (p Price) Equal(other Price) bool {
	return p.cents == other.cents
}

// String formats p as "$" optional "-" dollars with thousands
// separators, ".", two-digit cents. Negative values render the sign
// after the dollar sign ("$-1,234.05"), matching the reference exactly.
func (p Price) String() string {
	absCents := p.cents
	if absCents < 0 {
		absCents = -absCents
	}
	dollars := absCents / 100
	centsPart := absCents % 100

	sign := ""
	if p.cents < 0 {
		sign = "-"
	}
	return fmt.Sprintf("$%s%s.%02d", sign, groupThousands(dollars), centsPart)
}

func groupThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// MaxEntries bounds the size of a Cache.
const MaxEntries = 10_000

var priceChars = regexp.MustCompile(`^[0-9$.,-]+$`)

// Cache is a value-keyed flyweight: it returns the canonical Price
// handle for a given cents value, bounded to MaxEntries entries,
// evicting the smallest-cents entry on overflow. It is safe to use
// from a single goroutine without locking, matching this module's
// single-threaded core (see SPEC_FULL.md §5); callers that share a
// Cache across goroutines must guard it externally.
type Cache struct {
	byCents map[int]Price
}

// NewCache constructs an empty Cache.
func NewCache() *Cache {
	return &Cache{byCents: make(map[int]Price)}
}

// Intern returns the canonical Price for cents, constructing and
// caching one if absent. Eviction may break pointer/map identity for
// previously interned equivalent values; all comparisons must use
// Equal/Compare, never identity.
func (c *Cache) Intern(cents int) Price {
	if existing, ok := c.byCents[cents]; ok {
		return existing
	}
	p := Price{cents: cents}
	c.byCents[cents] = p
	c.trimIfNeeded()
	return p
}

func (c *Cache) trimIfNeeded() {
	for len(c.byCents) > MaxEntries {
		minKey, found := 0, false
		for k := range c.byCents {
			if !found || k < minKey {
				minKey, found = k, true
			}
		}
		if !found {
			return
		}
		delete(c.byCents, minKey)
	}
}

// Len reports the current number of cached entries.
func (c *Cache) Len() int {
	return len(c.byCents)
}

// Add returns the Price for a.cents + b.cents, interned through c.
func (c *Cache) Add(a, b Price) Price {
	return c.Intern(a.cents + b.cents)
}

// Subtract returns the Price for a.cents - b.cents, interned through c.
func (c *Cache) Subtract(a, b Price) Price {
	return c.Intern(a.cents - b.cents)
}

// Multiply returns the Price for p.cents * n, interned through c.
func (c *Cache) Multiply(p Price, n int) Price {
	return c.Intern(p.cents * n)
}

// Parse interns the Price represented by s. Accepted forms: an
// optional leading "-", an optional "$", comma thousands separators,
// and either zero or exactly two digits after an optional single
// decimal point. Anything else fails with ErrInvalidPrice.
func (c *Cache) Parse(s string) (Price, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Price{}, fmt.Errorf("%w: price string cannot be empty", ErrInvalidPrice)
	}
	if !priceChars.MatchString(trimmed) {
		return Price{}, fmt.Errorf("%w: non-numeric characters in %q", ErrInvalidPrice, s)
	}

	stripped := strings.ReplaceAll(strings.ReplaceAll(trimmed, "$", ""), ",", "")

	isNeg := false
	if strings.HasPrefix(stripped, "-") {
		isNeg = true
		stripped = stripped[1:]
	}
	if stripped == "" || strings.Contains(stripped, "-") {
		return Price{}, fmt.Errorf("%w: %q is not numeric", ErrInvalidPrice, s)
	}

	parts := strings.Split(stripped, ".")
	if len(parts) > 2 {
		return Price{}, fmt.Errorf("%w: multiple decimal points in %q", ErrInvalidPrice, s)
	}

	dollars := parts[0]
	if dollars == "" {
		dollars = "0"
	}
	centsPart := "00"
	if len(parts) == 2 {
		centsPart = parts[1]
		if len(centsPart) != 2 {
			return Price{}, fmt.Errorf("%w: cents must be exactly two digits in %q", ErrInvalidPrice, s)
		}
	}

	combined := dollars + centsPart
	cents, err := strconv.Atoi(combined)
	if err != nil {
		return Price{}, fmt.Errorf("%w: %q is not numeric: %v", ErrInvalidPrice, s, err)
	}
	if isNeg {
		cents = -cents
	}
	return c.Intern(cents), nil
}
