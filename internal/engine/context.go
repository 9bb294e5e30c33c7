// Package engine bundles the explicit, constructed-not-global context
// that replaces the reference implementation's singletons
// (PriceFactory, ProductManager, UserManager, CurrentMarketPublisher,
// CurrentMarketTracker) per spec.md §9's design note. A Context is
// the unit of construction for a test or for a server process.
package engine

import (
	"io"

	"tradebook/internal/book"
	"tradebook/internal/market"
	"tradebook/internal/money"
	"tradebook/internal/registry"
)

// Context owns one matching engine's full dependency graph: the price
// cache, the product and user registries, and the market fanout.
type Context struct {
	Cache     *money.Cache
	Products  *registry.ProductRegistry
	Users     *registry.UserRegistry
	Publisher *market.Publisher
	Tracker   *market.Tracker
}

// New constructs a Context. out receives the market banner text (pass
// os.Stdout for the default behavior, or nil to do the same).
func New(out io.Writer) *Context {
	cache := money.NewCache()
	users := registry.NewUserRegistry()
	publisher := market.NewPublisher()
	tracker := market.NewTracker(cache, publisher, out)
	products := registry.NewProductRegistry(cache, users, tracker)
	return &Context{
		Cache:     cache,
		Products:  products,
		Users:     users,
		Publisher: publisher,
		Tracker:   tracker,
	}
}

// InitUsers registers the given user ids, per spec.md §6's startup
// contract.
func (c *Context) InitUsers(ids []string) error {
	return c.Users.Init(ids)
}

// AddProduct registers a new, empty product book for symbol.
func (c *Context) AddProduct(symbol string) error {
	return c.Products.AddProduct(symbol)
}

// SubscribeCurrentMarket subscribes obs to symbol's top-of-book
// updates.
func (c *Context) SubscribeCurrentMarket(symbol string, obs market.Observer) {
	c.Publisher.Subscribe(symbol, obs)
}

// UnsubscribeCurrentMarket removes obs from symbol's subscriber list.
func (c *Context) UnsubscribeCurrentMarket(symbol string, obs market.Observer) {
	c.Publisher.Unsubscribe(symbol, obs)
}

// SubmitOrder constructs and inserts a resting order, running the
// match loop and publishing top-of-book exactly once.
func (c *Context) SubmitOrder(user, product string, price money.Price, side book.Side, volume int) (book.Snapshot, error) {
	normUser, err := book.ValidateUser(user)
	if err != nil {
		return book.Snapshot{}, err
	}
	normProduct, err := book.ValidateSymbol(product)
	if err != nil {
		return book.Snapshot{}, err
	}
	t, err := book.NewTradable(book.KindOrder, normUser, normProduct, price, side, volume)
	if err != nil {
		return book.Snapshot{}, err
	}
	return c.Products.AddTradable(t)
}

// SubmitQuote constructs and inserts both sides of a two-sided quote,
// replacing any prior resting quote from the same user on the same
// product.
func (c *Context) SubmitQuote(q book.Quote) (buySnap, sellSnap book.Snapshot, err error) {
	normUser, err := book.ValidateUser(q.User)
	if err != nil {
		return book.Snapshot{}, book.Snapshot{}, err
	}
	normProduct, err := book.ValidateSymbol(q.Product)
	if err != nil {
		return book.Snapshot{}, book.Snapshot{}, err
	}
	q.User, q.Product = normUser, normProduct
	return c.Products.AddQuote(q)
}

// CancelOrder cancels the resting order/quote-side identified by
// snap's product, side, and id.
func (c *Context) CancelOrder(snap book.Snapshot) (book.Snapshot, bool, error) {
	return c.Products.Cancel(snap)
}

// CancelQuote cancels both sides of user's resting quote on symbol.
func (c *Context) CancelQuote(symbol, user string) (buySnap book.Snapshot, buyOK bool, sellSnap book.Snapshot, sellOK bool, err error) {
	normUser, err := book.ValidateUser(user)
	if err != nil {
		return book.Snapshot{}, false, book.Snapshot{}, false, err
	}
	return c.Products.CancelQuote(symbol, normUser)
}

// GetCurrentMarkets renders the requesting user's most recently
// delivered top-of-book pairs, one line per subscribed symbol.
func (c *Context) GetCurrentMarkets(user string) (string, error) {
	ledger, err := c.Users.GetUser(user)
	if err != nil {
		return "", err
	}
	return ledger.GetCurrentMarkets(), nil
}

// String renders a full dump of every product book and every user
// ledger, in that order, for the "log book" / "log users" style
// diagnostic commands.
func (c *Context) String() string {
	return c.Products.String() + "\n" + c.Users.String()
}
