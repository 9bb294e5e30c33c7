package book

import (
	"fmt"
	"strings"

	"tradebook/internal/money"
)

// LedgerUpdater receives the post-mutation snapshot of a Tradable
// whenever its volume changes, keyed by the owning user. ProductBook
// calls this instead of reaching into a global UserRegistry, per the
// explicit-context design described in SPEC_FULL.md §1.
type LedgerUpdater interface {
	UpdateTradable(user string, snap Snapshot)
}

// MarketUpdater receives the post-match top-of-book for a symbol.
// Either side's price may be absent (hasPrice false), matching
// BookSideEngine.TopPrice's (Price, bool) contract.
type MarketUpdater interface {
	UpdateMarket(symbol string, buyPrice money.Price, buyHasPrice bool, buyVol int, sellPrice money.Price, sellHasPrice bool, sellVol int)
}

// ProductBook couples a BUY and SELL BookSideEngine for one symbol
// and owns the matching loop (spec.md §4.3).
type ProductBook struct {
	Symbol string
	Buy    *BookSideEngine
	Sell   *BookSideEngine

	ledger LedgerUpdater
	market MarketUpdater
}

// NewProductBook constructs a ProductBook for symbol, which must
// already be normalized (see ValidateSymbol). ledger and market may
// be nil in tests that don't care about fanout.
func NewProductBook(symbol string, ledger LedgerUpdater, market MarketUpdater) *ProductBook {
	return &ProductBook{
		Symbol: symbol,
		Buy:    NewBookSideEngine(Buy),
		Sell:   NewBookSideEngine(Sell),
		ledger: ledger,
		market: market,
	}
}

func (pb *ProductBook) engineFor(side Side) *BookSideEngine {
	if side == Buy {
		return pb.Buy
	}
	return pb.Sell
}

// Add inserts t into the appropriate side, runs the matching loop,
// publishes the post-match top-of-book, and returns the post-insert
// snapshot (which may be stale with respect to matching that happened
// immediately afterward — see spec.md §4.3).
func (pb *ProductBook) Add(t *Tradable) (Snapshot, error) {
	snap, err := pb.engineFor(t.Side()).Insert(t)
	if err != nil {
		return Snapshot{}, err
	}
	pb.onFill(snap)
	pb.match()
	pb.publish()
	return snap, nil
}

// AddQuote validates and constructs both quote-sides first, then
// removes any existing quote-sides for q.User on both sides, inserts
// the new BUY and SELL quote-sides, runs the matching loop once, and
// publishes once (spec.md §4.3 and §5's "exactly once per outer call"
// rule). Validation must happen before any removal or insertion so a
// malformed replacement quote leaves the resting old quote untouched
// (spec.md §7: no operation leaves the core partially mutated).
func (pb *ProductBook) AddQuote(q Quote) (buySnap, sellSnap Snapshot, err error) {
	buySide, sellSide, err := q.Sides()
	if err != nil {
		return Snapshot{}, Snapshot{}, err
	}

	normalizedUser, err := ValidateUser(q.User)
	if err != nil {
		return Snapshot{}, Snapshot{}, err
	}

	oldBuy, buyOK, err := pb.Buy.RemoveForUser(normalizedUser)
	if err != nil {
		return Snapshot{}, Snapshot{}, err
	}
	if buyOK {
		pb.onFill(oldBuy)
	}
	oldSell, sellOK, err := pb.Sell.RemoveForUser(normalizedUser)
	if err != nil {
		return Snapshot{}, Snapshot{}, err
	}
	if sellOK {
		pb.onFill(oldSell)
	}

	buySnap, err = pb.Buy.Insert(buySide)
	if err != nil {
		return Snapshot{}, Snapshot{}, err
	}
	sellSnap, err = pb.Sell.Insert(sellSide)
	if err != nil {
		return Snapshot{}, Snapshot{}, err
	}
	pb.onFill(buySnap)
	pb.onFill(sellSnap)
	pb.match()
	pb.publish()
	return buySnap, sellSnap, nil
}

// Cancel delegates to the given side's engine, publishes, and returns
// the snapshot (ok is false if id was not resting on that side).
func (pb *ProductBook) Cancel(side Side, id string) (Snapshot, bool) {
	snap, ok := pb.engineFor(side).Cancel(id)
	if ok {
		pb.onFill(snap)
	}
	pb.publish()
	return snap, ok
}

// RemoveQuotesForUser validates user's format, calls RemoveForUser on
// each side, and publishes once. Returns early, before any mutation,
// if user fails validation.
func (pb *ProductBook) RemoveQuotesForUser(user string) (buySnap Snapshot, buyOK bool, sellSnap Snapshot, sellOK bool, err error) {
	buySnap, buyOK, err = pb.Buy.RemoveForUser(user)
	if err != nil {
		return Snapshot{}, false, Snapshot{}, false, err
	}
	sellSnap, sellOK, err = pb.Sell.RemoveForUser(user)
	if err != nil {
		return Snapshot{}, false, Snapshot{}, false, err
	}
	if buyOK {
		pb.onFill(buySnap)
	}
	if sellOK {
		pb.onFill(sellSnap)
	}
	pb.publish()
	return
}

// match is the two-phase matching loop from spec.md §4.3: the
// target volume is deliberately an over-estimate (max of the two
// tops), tolerated by re-reading both tops every iteration so
// cascading crosses at deeper levels are still picked up.
func (pb *ProductBook) match() {
	bb, bbOK := pb.Buy.TopPrice()
	ss, ssOK := pb.Sell.TopPrice()
	if !bbOK || !ssOK {
		return
	}
	if ss.Compare(bb) > 0 {
		return
	}

	target := max(pb.Buy.TopVolume(), pb.Sell.TopVolume())
	for target > 0 {
		bb, bbOK = pb.Buy.TopPrice()
		ss, ssOK = pb.Sell.TopPrice()
		if !bbOK || !ssOK || ss.Compare(bb) > 0 {
			return
		}

		take := min(pb.Buy.TopVolume(), pb.Sell.TopVolume())
		if take <= 0 {
			return
		}

		pb.Buy.TradeOut(ss, take, pb.onFill)
		pb.Sell.TradeOut(bb, take, pb.onFill)
		target -= take
	}
}

func (pb *ProductBook) onFill(snap Snapshot) {
	if pb.ledger != nil {
		pb.ledger.UpdateTradable(snap.User, snap)
	}
}

func (pb *ProductBook) publish() {
	if pb.market == nil {
		return
	}
	buyPrice, buyOK := pb.Buy.TopPrice()
	sellPrice, sellOK := pb.Sell.TopPrice()
	pb.market.UpdateMarket(pb.Symbol, buyPrice, buyOK, pb.Buy.TopVolume(), sellPrice, sellOK, pb.Sell.TopVolume())
}

// TopOfBookString renders "Top of BUY book: $122.50 x 75", or
// "Top of BUY book: $0.00 x 0" if that side is empty.
func (pb *ProductBook) TopOfBookString(side Side) string {
	engine := pb.engineFor(side)
	price, ok := engine.TopPrice()
	vol := engine.TopVolume()
	if !ok || vol <= 0 {
		return fmt.Sprintf("Top of %s book: $0.00 x 0", side)
	}
	return fmt.Sprintf("Top of %s book: %s x %d", side, price, vol)
}

// String renders the product book dump from spec.md §6.
func (pb *ProductBook) String() string {
	rule := strings.Repeat("-", 44)
	return fmt.Sprintf("%s\nProduct Book: %s\n%s\n%s%s\n", rule, pb.Symbol, pb.Buy, pb.Sell, rule)
}
