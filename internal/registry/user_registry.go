// Package registry implements the process-wide ProductRegistry and
// UserRegistry facades: symbol→book and user→ledger maps plus the
// operations that route through them (spec.md §4.4, §4.5).
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"tradebook/internal/book"
	"tradebook/internal/market"
)

// ErrUserNotFound is returned when a user id is not registered.
var ErrUserNotFound = errors.New("user not found")

// UserLedger is, per user, an insertion-ordered map from tradable id
// to the latest Snapshot seen for it, plus the latest top-of-book
// pair delivered to this user for each subscribed symbol (spec.md §3).
type UserLedger struct {
	id          string
	order       []string
	tradables   map[string]book.Snapshot
	marketOrder []string
	markets     map[string][2]market.Side
}

func newUserLedger(id string) *UserLedger {
	return &UserLedger{
		id:        id,
		tradables: make(map[string]book.Snapshot),
		markets:   make(map[string][2]market.Side),
	}
}

// ID returns the ledger's owning user id.
func (l *UserLedger) ID() string { return l.id }

// UpdateTradable overwrites (or inserts) the snapshot by its id. A
// no-op if snap's id is empty (spec.md §4.5).
func (l *UserLedger) UpdateTradable(snap book.Snapshot) {
	if snap.ID == "" {
		return
	}
	if _, exists := l.tradables[snap.ID]; !exists {
		l.order = append(l.order, snap.ID)
	}
	l.tradables[snap.ID] = snap
}

// UpdateCurrentMarket stores the (buy, sell) pair for sym, overwriting
// any previous pair. Implements market.Observer.
func (l *UserLedger) UpdateCurrentMarket(sym string, buy, sell market.Side) {
	if _, exists := l.markets[sym]; !exists {
		l.marketOrder = append(l.marketOrder, sym)
	}
	l.markets[sym] = [2]market.Side{buy, sell}
}

// GetCurrentMarkets renders one line per symbol: "{sym} {buy} - {sell}\n".
func (l *UserLedger) GetCurrentMarkets() string {
	var b strings.Builder
	for _, sym := range l.marketOrder {
		pair := l.markets[sym]
		fmt.Fprintf(&b, "%s %s - %s\n", sym, pair[0], pair[1])
	}
	return b.String()
}

// String renders the ledger dump from spec.md §6.
func (l *UserLedger) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  User Id: %s\n", l.id)
	for _, id := range l.order {
		fmt.Fprintf(&b, "\t%s\n", l.tradables[id])
	}
	return b.String()
}

// UserRegistry owns a UserLedger per registered user id.
type UserRegistry struct {
	ledgers map[string]*UserLedger
}

// NewUserRegistry constructs an empty registry.
func NewUserRegistry() *UserRegistry {
	return &UserRegistry{ledgers: make(map[string]*UserLedger)}
}

// Init validates and normalizes each id, creating a UserLedger for
// each. Duplicates overwrite.
func (r *UserRegistry) Init(ids []string) error {
	for _, raw := range ids {
		normalized, err := book.ValidateUser(raw)
		if err != nil {
			return err
		}
		r.ledgers[normalized] = newUserLedger(normalized)
	}
	return nil
}

// GetUser returns the ledger for id, normalized, or ErrUserNotFound.
func (r *UserRegistry) GetUser(id string) (*UserLedger, error) {
	normalized := strings.ToUpper(strings.TrimSpace(id))
	ledger, ok := r.ledgers[normalized]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, id)
	}
	return ledger, nil
}

// UpdateTradable implements book.LedgerUpdater: it looks up userID's
// ledger and forwards snap. Unknown users are ignored silently; no
// diagnostic is logged for them.
func (r *UserRegistry) UpdateTradable(userID string, snap book.Snapshot) {
	ledger, err := r.GetUser(userID)
	if err != nil {
		return
	}
	ledger.UpdateTradable(snap)
}

// String renders a registry-wide dump, one ledger block per user in
// alphabetical order (supplementing spec.md §6's per-ledger format
// with the registry-wide aggregation from UserManager.toString()).
func (r *UserRegistry) String() string {
	ids := make([]string, 0, len(r.ledgers))
	for id := range r.ledgers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		b.WriteString(r.ledgers[id].String())
		b.WriteByte('\n')
	}
	return b.String()
}
