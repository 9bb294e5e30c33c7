package registry

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog/log"

	"tradebook/internal/book"
	"tradebook/internal/market"
	"tradebook/internal/money"
)

// ProductRegistry is the process-wide mapping from normalized symbol
// to ProductBook, and the facade for add/cancel/quote operations
// (spec.md §4.4). It wires each ProductBook's fill and publication
// callbacks to a shared UserRegistry and market.Tracker, replacing
// the reference implementation's singletons with explicit
// dependencies passed at construction (spec.md §9).
type ProductRegistry struct {
	books   map[string]*book.ProductBook
	cache   *money.Cache
	users   *UserRegistry
	tracker *market.Tracker
}

// NewProductRegistry constructs an empty registry wired to users and
// tracker.
func NewProductRegistry(cache *money.Cache, users *UserRegistry, tracker *market.Tracker) *ProductRegistry {
	return &ProductRegistry{
		books:   make(map[string]*book.ProductBook),
		cache:   cache,
		users:   users,
		tracker: tracker,
	}
}

// AddProduct validates symbol, constructs a ProductBook for it, and
// inserts it — a later call for the same symbol overwrites.
func (r *ProductRegistry) AddProduct(symbol string) error {
	sym, err := book.ValidateSymbol(symbol)
	if err != nil {
		return err
	}
	r.books[sym] = book.NewProductBook(sym, r.users, r.tracker)
	return nil
}

// GetProductBook returns the book for symbol, normalized, or fails
// with ErrDataValidation if none exists.
func (r *ProductRegistry) GetProductBook(symbol string) (*book.ProductBook, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	pb, ok := r.books[sym]
	if !ok {
		return nil, fmt.Errorf("%w: no product book for symbol %q", book.ErrDataValidation, symbol)
	}
	return pb, nil
}

// GetRandomProduct returns a uniformly random registered symbol, or
// fails with ErrDataValidation if none are registered.
func (r *ProductRegistry) GetRandomProduct() (string, error) {
	if len(r.books) == 0 {
		return "", fmt.Errorf("%w: no products exist to select from", book.ErrDataValidation)
	}
	symbols := make([]string, 0, len(r.books))
	for sym := range r.books {
		symbols = append(symbols, sym)
	}
	return symbols[rand.Intn(len(symbols))], nil
}

// AddTradable routes t to its product's book. The book's own ledger
// wiring mirrors the resulting snapshot into the UserRegistry.
func (r *ProductRegistry) AddTradable(t *book.Tradable) (book.Snapshot, error) {
	pb, err := r.GetProductBook(t.Product())
	if err != nil {
		return book.Snapshot{}, err
	}
	return pb.Add(t)
}

// AddQuote routes q to its product's book.
func (r *ProductRegistry) AddQuote(q book.Quote) (buySnap, sellSnap book.Snapshot, err error) {
	pb, err := r.GetProductBook(q.Product)
	if err != nil {
		return book.Snapshot{}, book.Snapshot{}, err
	}
	return pb.AddQuote(q)
}

// Cancel cancels the Tradable identified by snap's product/side/id.
// A failed cancellation is not an error: it is logged as a diagnostic
// and reported via ok=false (spec.md §7; supplemented from
// ProductManager.cancel's failure message).
func (r *ProductRegistry) Cancel(snap book.Snapshot) (book.Snapshot, bool, error) {
	pb, err := r.GetProductBook(snap.Product)
	if err != nil {
		return book.Snapshot{}, false, err
	}
	result, ok := pb.Cancel(snap.Side, snap.ID)
	if !ok {
		log.Info().
			Str("tradableID", snap.ID).
			Str("product", snap.Product).
			Str("side", snap.Side.String()).
			Msg("cancel failed: tradable not resting")
		return book.Snapshot{}, false, nil
	}
	return result, true, nil
}

// CancelQuote cancels both sides of user's resting quote on symbol.
func (r *ProductRegistry) CancelQuote(symbol, user string) (buySnap book.Snapshot, buyOK bool, sellSnap book.Snapshot, sellOK bool, err error) {
	pb, err := r.GetProductBook(symbol)
	if err != nil {
		return book.Snapshot{}, false, book.Snapshot{}, false, err
	}
	buySnap, buyOK, sellSnap, sellOK, err = pb.RemoveQuotesForUser(user)
	return
}

// String renders a registry-wide dump, concatenating each book's
// String() (supplemented from ProductManager.toString()).
func (r *ProductRegistry) String() string {
	if len(r.books) == 0 {
		return "No ProductBooks currently exist."
	}
	var b strings.Builder
	for _, pb := range r.books {
		b.WriteString(pb.String())
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
