package book

import (
	"fmt"

	"github.com/tidwall/btree"

	"tradebook/internal/money"
)

// priceLevel is one FIFO slot of resting Tradables at a single price.
type priceLevel struct {
	price money.Price
	slot  []*Tradable
}

type priceLevels = btree.BTreeG[*priceLevel]

// BookSideEngine owns the ordered price map for one side of one
// symbol's book: an ordered map from Price to a FIFO sequence of
// Tradable handles, SELL ascending and BUY descending (spec.md §3).
type BookSideEngine struct {
	side   Side
	levels *priceLevels
}

// NewBookSideEngine constructs an empty engine for the given side.
func NewBookSideEngine(side Side) *BookSideEngine {
	var less func(a, b *priceLevel) bool
	if side == Buy {
		less = func(a, b *priceLevel) bool { return a.price.Compare(b.price) > 0 }
	} else {
		less = func(a, b *priceLevel) bool { return a.price.Compare(b.price) < 0 }
	}
	return &BookSideEngine{side: side, levels: btree.NewBTreeG(less)}
}

// Side reports which side this engine represents.
func (e *BookSideEngine) Side() Side { return e.side }

// Insert appends t to the slot for its price (creating the slot if
// absent). Preconditions: t.Side() matches this engine's side and
// t.RemainingVolume() > 0.
func (e *BookSideEngine) Insert(t *Tradable) (Snapshot, error) {
	if t.Side() != e.side {
		return Snapshot{}, fmt.Errorf("%w: tradable side %s does not match book side %s", ErrIllegalArgument, t.Side(), e.side)
	}
	if t.RemainingVolume() <= 0 {
		return Snapshot{}, fmt.Errorf("%w: tradable has no remaining volume to insert", ErrIllegalArgument)
	}
	level, ok := e.levels.GetMut(&priceLevel{price: t.Price()})
	if ok {
		level.slot = append(level.slot, t)
	} else {
		e.levels.Set(&priceLevel{price: t.Price(), slot: []*Tradable{t}})
	}
	return t.Snapshot(), nil
}

// Cancel scans price levels in side-order for the first Tradable
// whose id matches. If found, its remaining volume is moved to
// cancelled, it is removed from its slot, and — once the scan has
// ended — the slot is pruned if it is now empty. Structural mutation
// of the price map (the Delete call) happens only after the scan's
// iteration has stopped (spec.md §5's deferred-mutation rule).
func (e *BookSideEngine) Cancel(id string) (Snapshot, bool) {
	var found *Tradable
	var level *priceLevel
	foundIdx := -1
	e.levels.Scan(func(lvl *priceLevel) bool {
		for i, t := range lvl.slot {
			if t.ID() == id {
				found, level, foundIdx = t, lvl, i
				return false
			}
		}
		return true
	})
	if found == nil {
		return Snapshot{}, false
	}
	found.cancelRemaining()
	snap := found.Snapshot()
	level.slot = append(level.slot[:foundIdx], level.slot[foundIdx+1:]...)
	if len(level.slot) == 0 {
		e.levels.Delete(level)
	}
	return snap, true
}

// RemoveForUser validates user's format, then scans in side-order for
// the first QUOTE_SIDE Tradable belonging to user, ignoring
// ORDER-kind entries, and cancels it (spec.md §4.2: "Validates user
// format").
func (e *BookSideEngine) RemoveForUser(user string) (Snapshot, bool, error) {
	normalized, err := ValidateUser(user)
	if err != nil {
		return Snapshot{}, false, err
	}

	var id string
	found := false
	e.levels.Scan(func(lvl *priceLevel) bool {
		for _, t := range lvl.slot {
			if t.Kind() == KindQuoteSide && t.User() == normalized {
				id, found = t.ID(), true
				return false
			}
		}
		return true
	})
	if !found {
		return Snapshot{}, false, nil
	}
	snap, ok := e.Cancel(id)
	return snap, ok, nil
}

func atOrBetter(side Side, price, threshold money.Price) bool {
	if side == Buy {
		return price.Compare(threshold) >= 0
	}
	return price.Compare(threshold) <= 0
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// TradeOut consumes up to volume of resting interest priced at or
// better than threshold, best-price-level-first. Full levels are swept
// outright; a level whose total remaining volume exceeds the
// remaining target is allocated pro-rata by remaining volume with
// ceiling rounding, redistributing rounding deficits to later FIFO
// entries within the same round (spec.md §4.2). onFill is invoked
// with the post-mutation snapshot for every Tradable whose volume
// changes, in FIFO-within-level, price-order-across-levels order.
func (e *BookSideEngine) TradeOut(threshold money.Price, volume int, onFill func(Snapshot)) {
	remaining := volume
	for {
		if remaining <= 0 {
			return
		}
		level, ok := e.levels.Min()
		if !ok {
			return
		}
		if !atOrBetter(e.side, level.price, threshold) {
			return
		}

		slotTotal := 0
		for _, t := range level.slot {
			slotTotal += t.RemainingVolume()
		}
		if slotTotal == 0 {
			e.levels.Delete(level)
			continue
		}

		if remaining >= slotTotal {
			for _, t := range level.slot {
				take := t.RemainingVolume()
				if take <= 0 {
					continue
				}
				t.fill(take)
				onFill(t.Snapshot())
			}
			level.slot = level.slot[:0]
			e.levels.Delete(level)
			remaining -= slotTotal
			continue
		}

		volumeForRound := remaining
		kept := level.slot[:0:0]
		for _, t := range level.slot {
			if remaining <= 0 {
				kept = append(kept, t)
				continue
			}
			share := ceilDiv(volumeForRound*t.RemainingVolume(), slotTotal)
			take := min(share, remaining, t.RemainingVolume())
			if take <= 0 {
				kept = append(kept, t)
				continue
			}
			t.fill(take)
			remaining -= take
			onFill(t.Snapshot())
			if t.RemainingVolume() > 0 {
				kept = append(kept, t)
			}
		}
		level.slot = kept
		if len(level.slot) == 0 {
			e.levels.Delete(level)
		}
	}
}

// TopPrice returns the best price on this side, or false if empty.
func (e *BookSideEngine) TopPrice() (money.Price, bool) {
	level, ok := e.levels.Min()
	if !ok {
		return money.Price{}, false
	}
	return level.price, true
}

// TopVolume returns the sum of remaining volume at the best price, or
// 0 if empty.
func (e *BookSideEngine) TopVolume() int {
	level, ok := e.levels.Min()
	if !ok {
		return 0
	}
	total := 0
	for _, t := range level.slot {
		total += t.RemainingVolume()
	}
	return total
}

// Depth returns snapshots of every resting Tradable, in side-order ×
// FIFO order.
func (e *BookSideEngine) Depth() []Snapshot {
	var out []Snapshot
	e.levels.Scan(func(lvl *priceLevel) bool {
		for _, t := range lvl.slot {
			out = append(out, t.Snapshot())
		}
		return true
	})
	return out
}

// OrdersAt returns snapshots of every Tradable resting at exactly p.
func (e *BookSideEngine) OrdersAt(p money.Price) []Snapshot {
	level, ok := e.levels.GetMut(&priceLevel{price: p})
	if !ok {
		return nil
	}
	out := make([]Snapshot, 0, len(level.slot))
	for _, t := range level.slot {
		out = append(out, t.Snapshot())
	}
	return out
}

// HasLevel reports whether p is present with a non-empty slot.
func (e *BookSideEngine) HasLevel(p money.Price) bool {
	level, ok := e.levels.GetMut(&priceLevel{price: p})
	return ok && len(level.slot) > 0
}

// IsEmpty reports whether no slot on this side holds any Tradable.
func (e *BookSideEngine) IsEmpty() bool {
	return e.levels.Len() == 0
}

// String renders the side dump from spec.md §6.
func (e *BookSideEngine) String() string {
	out := fmt.Sprintf("Side: %s\n", e.side)
	if e.IsEmpty() {
		return out + "\t<Empty>\n"
	}
	e.levels.Scan(func(lvl *priceLevel) bool {
		out += fmt.Sprintf("\t%s:\n", lvl.price)
		for _, t := range lvl.slot {
			out += fmt.Sprintf("\t\t%s\n", t)
		}
		return true
	})
	return out
}
