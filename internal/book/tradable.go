// Package book implements the per-symbol order book: resting
// interest (Tradable), the price-time-priority book side
// (BookSideEngine), and the matching loop that couples both sides of
// a symbol (ProductBook).
package book

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"tradebook/internal/money"
)

// ErrDataValidation signals a malformed external-facing argument
// (symbol/user format, missing product).
var ErrDataValidation = errors.New("data validation error")

// ErrIllegalArgument signals an internal invariant violation (bad
// side, non-positive volume where one is required).
var ErrIllegalArgument = errors.New("illegal argument")

// Side is BUY or SELL.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Kind distinguishes a resting Order from one side of a two-sided
// Quote. The two differ only in textual representation and whether
// RemoveForUser considers them.
type Kind int

const (
	KindOrder Kind = iota
	KindQuoteSide
)

var userPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)
var symbolPattern = regexp.MustCompile(`^([A-Za-z0-9]{1,5}|[A-Za-z0-9]{1,4}\.[A-Za-z0-9])$`)

// ValidateUser normalizes and validates a 3-letter user code.
func ValidateUser(user string) (string, error) {
	if !userPattern.MatchString(user) {
		return "", fmt.Errorf("%w: user %q must match [A-Za-z]{3}", ErrDataValidation, user)
	}
	return strings.ToUpper(user), nil
}

// ValidateSymbol normalizes and validates a product symbol.
func ValidateSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: symbol %q must match %s", ErrDataValidation, symbol, symbolPattern)
	}
	return trimmed, nil
}

var idTick uint64

// nextTick returns a strictly increasing per-process counter used as
// the non-wall-clock component of a Tradable id (spec.md §6: "need
// not be wall-clock time; must be strictly increasing").
func nextTick() uint64 {
	return atomic.AddUint64(&idTick, 1)
}

// Tradable is a tagged sum over {Order, QuoteSide} rather than an
// inheritance hierarchy (spec.md §9): a single struct holding shared
// state plus a Kind discriminator.
type Tradable struct {
	id   string
	kind Kind

	user    string
	product string
	price   money.Price
	side    Side

	originalVolume  int
	remainingVolume int
	cancelledVolume int
	filledVolume    int
}

// NewTradable constructs resting interest of the given kind. user and
// product must already be normalized (see ValidateUser/ValidateSymbol).
// originalVolume must satisfy 0 < v < 10000.
func NewTradable(kind Kind, user, product string, price money.Price, side Side, originalVolume int) (*Tradable, error) {
	if originalVolume <= 0 || originalVolume >= 10000 {
		return nil, fmt.Errorf("%w: originalVolume %d must satisfy 0 < v < 10000", ErrIllegalArgument, originalVolume)
	}
	t := &Tradable{
		kind:            kind,
		user:            user,
		product:         product,
		price:           price,
		side:            side,
		originalVolume:  originalVolume,
		remainingVolume: originalVolume,
	}
	t.id = fmt.Sprintf("%s%s%s%d", user, product, price.String(), nextTick())
	return t, nil
}

func (t *Tradable) ID() string             { return t.id }
func (t *Tradable) Kind() Kind             { return t.kind }
func (t *Tradable) User() string           { return t.user }
func (t *Tradable) Product() string        { return t.product }
func (t *Tradable) Price() money.Price     { return t.price }
func (t *Tradable) Side() Side             { return t.side }
func (t *Tradable) OriginalVolume() int    { return t.originalVolume }
func (t *Tradable) RemainingVolume() int   { return t.remainingVolume }
func (t *Tradable) CancelledVolume() int   { return t.cancelledVolume }
func (t *Tradable) FilledVolume() int      { return t.filledVolume }

// String renders the textual form from spec.md §6 — distinct for
// ORDER vs QUOTE_SIDE kinds.
func (t *Tradable) String() string {
	if t.kind == KindQuoteSide {
		return fmt.Sprintf("%s %s side quote for %s: %s, Orig Vol: %d, Rem Vol: %d, Fill Vol: %d, CXL Vol: %d, ID: %s",
			t.user, t.side, t.product, t.price, t.originalVolume, t.remainingVolume, t.filledVolume, t.cancelledVolume, t.id)
	}
	return fmt.Sprintf("%s %s order: %s at %s, Orig Vol: %d, Rem Vol: %d, Fill Vol: %d, CXL Vol: %d, ID: %s",
		t.user, t.side, t.product, t.price, t.originalVolume, t.remainingVolume, t.filledVolume, t.cancelledVolume, t.id)
}

// fill moves take units from remaining to filled. Callers (BookSideEngine)
// must ensure 0 < take <= remainingVolume.
func (t *Tradable) fill(take int) {
	t.filledVolume += take
	t.remainingVolume -= take
}

// cancelRemaining moves all remaining volume to cancelled, used by
// BookSideEngine.Cancel.
func (t *Tradable) cancelRemaining() {
	t.cancelledVolume += t.remainingVolume
	t.remainingVolume = 0
}

// Snapshot returns an immutable copy of t's observable fields, for
// external notification and ledger storage.
func (t *Tradable) Snapshot() Snapshot {
	return Snapshot{
		User:            t.user,
		Product:         t.product,
		Price:           t.price,
		OriginalVolume:  t.originalVolume,
		RemainingVolume: t.remainingVolume,
		CancelledVolume: t.cancelledVolume,
		FilledVolume:    t.filledVolume,
		Side:            t.side,
		ID:              t.id,
	}
}

// Snapshot is an immutable copy of a Tradable's observable fields.
type Snapshot struct {
	User            string
	Product         string
	Price           money.Price
	OriginalVolume  int
	RemainingVolume int
	CancelledVolume int
	FilledVolume    int
	Side            Side
	ID              string
}

// String renders the textual form from spec.md §6.
func (s Snapshot) String() string {
	return fmt.Sprintf("Product: %s, Price: %s, OriginalVolume: %d, RemainingVolume: %d, CancelledVolume: %d, FilledVolume: %d, User: %s, Side: %s, Id: %s",
		s.Product, s.Price, s.OriginalVolume, s.RemainingVolume, s.CancelledVolume, s.FilledVolume, s.User, s.Side, s.ID)
}

// Quote is a transient construct grouping a BUY QuoteSide and a SELL
// QuoteSide for the same user and product. It is not itself a
// Tradable. Quote does no validation of its own: Sides builds both
// sides through NewTradable, so a malformed side fails the whole call
// and neither side is returned.
type Quote struct {
	User     string
	Product  string
	BuyPrice money.Price
	BuyVol   int
	SellPrice money.Price
	SellVol   int
}

// Sides constructs the BUY and SELL QuoteSide Tradables for q.
func (q Quote) Sides() (buy, sell *Tradable, err error) {
	buy, err = NewTradable(KindQuoteSide, q.User, q.Product, q.BuyPrice, Buy, q.BuyVol)
	if err != nil {
		return nil, nil, fmt.Errorf("quote buy side: %w", err)
	}
	sell, err = NewTradable(KindQuoteSide, q.User, q.Product, q.SellPrice, Sell, q.SellVol)
	if err != nil {
		return nil, nil, fmt.Errorf("quote sell side: %w", err)
	}
	return buy, sell, nil
}
